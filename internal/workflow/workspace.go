package workflow

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/logger"
)

// Workspace is a temporary directory holding the intermediate artifacts of
// one sync run: the downloaded archive, the extracted dump, or the dump being
// compressed for upload. Exactly one workspace exists per run and it is
// released on every exit path unless Keep is set.
type Workspace struct {
	// Dir is the workspace directory, named with a fresh UUID so concurrent
	// runs never collide.
	Dir string

	// Keep prevents Release from deleting the directory, for debugging
	// failed dumps.
	Keep bool

	log logger.Logger
}

// NewWorkspace creates a workspace directory under parent.
func NewWorkspace(parent string) (*Workspace, error) {
	dir := filepath.Join(parent, uuid.NewString())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't create workspace "+dir,
			"Check permissions on "+parent)
	}
	return &Workspace{
		Dir: dir,
		log: logger.NewEnvLogger("[workflow]"),
	}, nil
}

// Path returns the path of a named artifact inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Release removes the workspace and everything in it. With Keep set it only
// reports where the artifacts were left.
func (w *Workspace) Release() {
	if w.Keep {
		w.log.Info("keeping workspace %s", w.Dir)
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		w.log.Warn("couldn't remove workspace %s: %v", w.Dir, err)
	}
}
