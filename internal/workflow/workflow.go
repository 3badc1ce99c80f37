// Package workflow orchestrates database and media synchronization between a
// remote environment and the local development setup. Each run owns a
// temporary workspace that is released on every exit path, and every stage
// failure keeps the failing stage's error code intact.
package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/nimbuslabs/nimbus/internal/archive"
	"github.com/nimbuslabs/nimbus/internal/db"
	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/job"
	"github.com/nimbuslabs/nimbus/internal/logger"
	"github.com/nimbuslabs/nimbus/internal/transfer"
)

// ErrAborted is returned when the user declines the confirmation prompt
// before a destructive step.
var ErrAborted = stderrors.New("aborted")

// JobRunner requests remote jobs and waits for them.
type JobRunner interface {
	RequestDump(ctx context.Context, environment, prefix string) (*job.SyncJob, error)
	RequestImport(ctx context.Context, environment, prefix string) (*job.SyncJob, error)
	StartImport(ctx context.Context, j *job.SyncJob) error
	WaitUntilReady(ctx context.Context, j *job.SyncJob) (*job.SyncJob, error)
}

// Transferrer moves artifacts between storage and the local filesystem.
type Transferrer interface {
	Download(ctx context.Context, url, destPath string) (*transfer.Handle, error)
	Upload(ctx context.Context, srcPath, url string) (*transfer.Handle, error)
}

// Archiver packs and unpacks artifacts.
type Archiver interface {
	Compress(srcPath, workspace string) (string, error)
	Extract(archivePath, workspace string) (string, error)
	CompressDir(srcDir, workspace, name string) (string, error)
	ExtractDir(archivePath, destDir string) error
}

// Database restores and dumps the local database.
type Database interface {
	ImportDump(ctx context.Context, dumpPath string, engine *db.Engine) error
	ExportDump(ctx context.Context, destPath string, engine *db.Engine) error
}

// Confirmer asks the user to approve a destructive step.
type Confirmer func(prompt string) (bool, error)

// gzipArchiver adapts the archive package to the Archiver interface.
type gzipArchiver struct{}

func (gzipArchiver) Compress(srcPath, workspace string) (string, error) {
	return archive.Compress(srcPath, workspace)
}

func (gzipArchiver) Extract(archivePath, workspace string) (string, error) {
	return archive.Extract(archivePath, workspace)
}

func (gzipArchiver) CompressDir(srcDir, workspace, name string) (string, error) {
	return archive.CompressDir(srcDir, workspace, name)
}

func (gzipArchiver) ExtractDir(archivePath, destDir string) error {
	return archive.ExtractDir(archivePath, destDir)
}

// Options configures a SyncWorkflow.
type Options struct {
	Jobs     JobRunner
	Transfer Transferrer
	Archive  Archiver
	DB       Database
	Confirm  Confirmer
	Logger   logger.Logger

	// Environment and Prefix select the remote source or target.
	Environment string
	Prefix      string

	// Engine describes the local database. Unused by media workflows.
	Engine *db.Engine

	// DumpFolder is where workspaces and exported dumps live.
	DumpFolder string

	// DumpFile, when set, is pushed as-is instead of dumping the local
	// database first.
	DumpFile string

	// MediaFolder is the local media directory for media workflows.
	MediaFolder string

	// KeepTempfile leaves the workspace in place after the run.
	KeepTempfile bool

	// AutoConfirm skips the confirmation prompt before destructive steps.
	AutoConfirm bool
}

// SyncWorkflow drives one pull or push run. A workflow value is single-use:
// its state advances monotonically and is not reset between runs.
type SyncWorkflow struct {
	opts  Options
	log   logger.Logger
	state State
}

// New creates a workflow. Archive defaults to the gzip implementation and
// Confirm defaults to approving, so tests and callers only wire what they
// exercise.
func New(opts Options) *SyncWorkflow {
	if opts.Archive == nil {
		opts.Archive = gzipArchiver{}
	}
	if opts.Confirm == nil {
		opts.Confirm = func(string) (bool, error) { return true, nil }
	}
	l := opts.Logger
	if l == nil {
		l = logger.NewEnvLogger("[workflow]")
	}
	return &SyncWorkflow{
		opts:  opts,
		log:   l,
		state: StateIdle,
	}
}

// SetConfirm replaces the confirmation callback, e.g. to pause a spinner
// while the prompt is on screen.
func (w *SyncWorkflow) SetConfirm(c Confirmer) {
	if c != nil {
		w.opts.Confirm = c
	}
}

// State reports the workflow's current stage.
func (w *SyncWorkflow) State() State {
	return w.state
}

func (w *SyncWorkflow) setState(s State) {
	w.log.Debug("%s -> %s", w.state, s)
	w.state = s
}

// fail marks the workflow failed while keeping the stage error untouched.
func (w *SyncWorkflow) fail(err error) error {
	w.setState(StateFailed)
	return err
}

// gate asks for confirmation before a destructive step. A declined prompt
// aborts the run with ErrAborted.
func (w *SyncWorkflow) gate(prompt string) error {
	if w.opts.AutoConfirm {
		return nil
	}
	ok, err := w.opts.Confirm(prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

// PullDB replaces the local database with a dump of the remote environment:
// request a dump job, wait for it, download and extract the artifact, then
// restore it locally. The workspace is released on every exit path.
func (w *SyncWorkflow) PullDB(ctx context.Context) (err error) {
	ws, err := NewWorkspace(w.opts.DumpFolder)
	if err != nil {
		return w.fail(err)
	}
	ws.Keep = w.opts.KeepTempfile
	defer ws.Release()
	defer func() {
		if err != nil {
			w.setState(StateFailed)
		}
	}()

	w.setState(StateRequesting)
	j, err := w.opts.Jobs.RequestDump(ctx, w.opts.Environment, w.opts.Prefix)
	if err != nil {
		return err
	}

	w.setState(StatePolling)
	j, err = w.opts.Jobs.WaitUntilReady(ctx, j)
	if err != nil {
		return err
	}

	w.setState(StateDownloading)
	archivePath := ws.Path(w.opts.Engine.DumpFilename() + archive.Extension)
	if _, err = w.opts.Transfer.Download(ctx, j.DownloadURL, archivePath); err != nil {
		return err
	}

	w.setState(StateExtracting)
	dumpPath, err := w.opts.Archive.Extract(archivePath, ws.Dir)
	if err != nil {
		return err
	}

	if err = w.gate(fmt.Sprintf(
		"Replace the local %s database with the %s dump?", w.opts.Engine.Name, w.opts.Environment)); err != nil {
		return err
	}

	w.setState(StateImporting)
	if err = w.opts.DB.ImportDump(ctx, dumpPath, w.opts.Engine); err != nil {
		return err
	}

	w.setState(StateDone)
	return nil
}

// PushDB replaces the remote environment's database with the local one: dump
// locally, compress, upload to the import job's URL, then trigger the remote
// import and wait for it to finish.
func (w *SyncWorkflow) PushDB(ctx context.Context) (err error) {
	ws, err := NewWorkspace(w.opts.DumpFolder)
	if err != nil {
		return w.fail(err)
	}
	ws.Keep = w.opts.KeepTempfile
	defer ws.Release()
	defer func() {
		if err != nil {
			w.setState(StateFailed)
		}
	}()

	dumpPath := w.opts.DumpFile
	if dumpPath == "" {
		w.setState(StateDumping)
		dumpPath = ws.Path(w.opts.Engine.DumpFilename())
		if err = w.opts.DB.ExportDump(ctx, dumpPath, w.opts.Engine); err != nil {
			return err
		}
	}

	w.setState(StateCompressing)
	archivePath, err := w.opts.Archive.Compress(dumpPath, ws.Dir)
	if err != nil {
		return err
	}

	if err = w.gate(fmt.Sprintf(
		"Replace the %s database on %s with your local data?", w.opts.Prefix, w.opts.Environment)); err != nil {
		return err
	}

	w.setState(StateUploading)
	j, err := w.opts.Jobs.RequestImport(ctx, w.opts.Environment, w.opts.Prefix)
	if err != nil {
		return err
	}
	if _, err = w.opts.Transfer.Upload(ctx, archivePath, j.UploadURL); err != nil {
		return err
	}

	w.setState(StateTriggering)
	if err = w.opts.Jobs.StartImport(ctx, j); err != nil {
		return err
	}
	if _, err = w.opts.Jobs.WaitUntilReady(ctx, j); err != nil {
		return err
	}

	w.setState(StateDone)
	return nil
}

// PullMedia replaces the local media folder with the remote environment's
// media tree.
func (w *SyncWorkflow) PullMedia(ctx context.Context) (err error) {
	ws, err := NewWorkspace(w.opts.DumpFolder)
	if err != nil {
		return w.fail(err)
	}
	ws.Keep = w.opts.KeepTempfile
	defer ws.Release()
	defer func() {
		if err != nil {
			w.setState(StateFailed)
		}
	}()

	w.setState(StateRequesting)
	j, err := w.opts.Jobs.RequestDump(ctx, w.opts.Environment, w.opts.Prefix)
	if err != nil {
		return err
	}

	w.setState(StatePolling)
	j, err = w.opts.Jobs.WaitUntilReady(ctx, j)
	if err != nil {
		return err
	}

	w.setState(StateDownloading)
	archivePath := ws.Path("media.tar.gz")
	if _, err = w.opts.Transfer.Download(ctx, j.DownloadURL, archivePath); err != nil {
		return err
	}

	if err = w.gate(fmt.Sprintf(
		"Replace the contents of %s with the %s media files?", w.opts.MediaFolder, w.opts.Environment)); err != nil {
		return err
	}

	w.setState(StateExtracting)
	if err = w.replaceMediaFolder(archivePath); err != nil {
		return err
	}

	w.setState(StateDone)
	return nil
}

// replaceMediaFolder swaps the media folder for the archive's contents.
// Existing media is removed first so deleted remote files disappear locally.
func (w *SyncWorkflow) replaceMediaFolder(archivePath string) error {
	if err := os.RemoveAll(w.opts.MediaFolder); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't clear "+w.opts.MediaFolder,
			"Check permissions on the media folder")
	}
	if err := os.MkdirAll(w.opts.MediaFolder, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrArchive,
			"Couldn't create "+w.opts.MediaFolder, "")
	}
	return w.opts.Archive.ExtractDir(archivePath, w.opts.MediaFolder)
}

// PushMedia replaces the remote environment's media tree with the local one.
func (w *SyncWorkflow) PushMedia(ctx context.Context) (err error) {
	ws, err := NewWorkspace(w.opts.DumpFolder)
	if err != nil {
		return w.fail(err)
	}
	ws.Keep = w.opts.KeepTempfile
	defer ws.Release()
	defer func() {
		if err != nil {
			w.setState(StateFailed)
		}
	}()

	w.setState(StateCompressing)
	archivePath, err := w.opts.Archive.CompressDir(w.opts.MediaFolder, ws.Dir, "media")
	if err != nil {
		return err
	}

	if err = w.gate(fmt.Sprintf(
		"Replace the media files on %s with your local files?", w.opts.Environment)); err != nil {
		return err
	}

	w.setState(StateUploading)
	j, err := w.opts.Jobs.RequestImport(ctx, w.opts.Environment, w.opts.Prefix)
	if err != nil {
		return err
	}
	if _, err = w.opts.Transfer.Upload(ctx, archivePath, j.UploadURL); err != nil {
		return err
	}

	w.setState(StateTriggering)
	if err = w.opts.Jobs.StartImport(ctx, j); err != nil {
		return err
	}
	if _, err = w.opts.Jobs.WaitUntilReady(ctx, j); err != nil {
		return err
	}

	w.setState(StateDone)
	return nil
}
