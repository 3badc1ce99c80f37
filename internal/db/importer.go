package db

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/exec"
	"github.com/nimbuslabs/nimbus/internal/logger"
)

// Importer loads dumps into, and exports dumps out of, the local database
// service. It is destructive on import: existing local data is replaced.
// Confirmation is the caller's responsibility.
type Importer struct {
	runner exec.Runner
	log    logger.Logger
}

// NewImporter creates an Importer using the given runner.
func NewImporter(runner exec.Runner) *Importer {
	return &Importer{
		runner: runner,
		log:    logger.NewEnvLogger("[db]"),
	}
}

// SetLogger overrides the logger.
func (i *Importer) SetLogger(l logger.Logger) {
	i.log = l
}

// ImportDump feeds the extracted dump at dumpPath into the engine's restore
// command. A non-zero exit surfaces as a RESTORE error carrying the engine's
// exact diagnostic output.
func (i *Importer) ImportDump(ctx context.Context, dumpPath string, engine *Engine) error {
	dump, err := os.Open(dumpPath)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRestore,
			"Couldn't open dump "+dumpPath,
			"Check the file exists and is readable")
	}
	defer dump.Close()

	if dropArgs := engine.DropArgs(); dropArgs != nil {
		result, err := i.runner.Run(ctx, dropArgs, nil)
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return errors.WrapWithCode(stderrors.New(result.Output()), errors.ErrRestore,
				fmt.Sprintf("Couldn't reset the local %s database (exit code %d)", engine.Name, result.ExitCode),
				"Make sure the local database service is running: docker compose up -d")
		}
	}

	i.log.Debug("restoring %s into %s service %s", dumpPath, engine.Name, engine.ComposeService)
	result, err := i.runner.Run(ctx, engine.RestoreArgs(), dump)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return errors.WrapWithCode(stderrors.New(result.Output()), errors.ErrRestore,
			fmt.Sprintf("%s restore exited with code %d", engine.Name, result.ExitCode),
			"Check the dump matches your local database engine and schema")
	}

	return nil
}

// ExportDump writes a dump of the local database to destPath.
func (i *Importer) ExportDump(ctx context.Context, destPath string, engine *Engine) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't create dump directory",
			"Check permissions on "+filepath.Dir(destPath))
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't create "+destPath,
			"Check disk space and permissions")
	}

	i.log.Debug("dumping %s service %s to %s", engine.Name, engine.ComposeService, destPath)
	result, runErr := i.runner.RunStreaming(ctx, engine.DumpArgs(), out)
	closeErr := out.Close()

	if runErr != nil {
		_ = os.Remove(destPath)
		return runErr
	}
	if result.ExitCode != 0 {
		_ = os.Remove(destPath)
		return errors.WrapWithCode(stderrors.New(result.Output()), errors.ErrExec,
			fmt.Sprintf("%s dump exited with code %d", engine.Name, result.ExitCode),
			"Make sure the local database service is running: docker compose up -d")
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		return errors.WrapWithCode(closeErr, errors.ErrExec,
			"Couldn't write "+destPath, "Check disk space")
	}

	return nil
}
