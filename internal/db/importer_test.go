package db

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslabs/nimbus/internal/config"
	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/exec"
	"github.com/nimbuslabs/nimbus/internal/logger"
)

// fakeRunner records invocations and replays scripted results.
type fakeRunner struct {
	calls   [][]string
	stdins  []string
	results []*exec.Result
	errs    []error
}

func (f *fakeRunner) next() (*exec.Result, error) {
	i := len(f.calls) - 1
	var res *exec.Result
	var err error
	if i < len(f.results) {
		res = f.results[i]
	} else {
		res = &exec.Result{}
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, stdin io.Reader) (*exec.Result, error) {
	f.calls = append(f.calls, argv)
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		f.stdins = append(f.stdins, string(data))
	} else {
		f.stdins = append(f.stdins, "")
	}
	return f.next()
}

func (f *fakeRunner) RunStreaming(ctx context.Context, argv []string, stdout io.Writer) (*exec.Result, error) {
	f.calls = append(f.calls, argv)
	f.stdins = append(f.stdins, "")
	_, _ = stdout.Write([]byte("-- dumped schema\n"))
	return f.next()
}

func postgresEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := EngineFor(config.Service{Type: "postgres", ComposeService: "database_default"}, "DEFAULT")
	require.NoError(t, err)
	return engine
}

func newTestImporter(runner exec.Runner) *Importer {
	i := NewImporter(runner)
	i.SetLogger(logger.Noop())
	return i
}

func TestImportDumpFeedsDumpOnStdin(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "database.sql")
	require.NoError(t, os.WriteFile(dumpPath, []byte("INSERT INTO t VALUES (1);"), 0600))

	runner := &fakeRunner{results: []*exec.Result{{ExitCode: 0}}}
	err := newTestImporter(runner).ImportDump(context.Background(), dumpPath, postgresEngine(t))
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "psql")
	assert.Equal(t, "INSERT INTO t VALUES (1);", runner.stdins[0])
}

func TestImportDumpRestoreErrorPreservesDiagnostics(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "database.sql")
	require.NoError(t, os.WriteFile(dumpPath, []byte("bad sql"), 0600))

	runner := &fakeRunner{results: []*exec.Result{
		{ExitCode: 1, Stderr: []byte(`ERROR:  insert or update on table "orders" violates foreign key constraint`)},
	}}

	err := newTestImporter(runner).ImportDump(context.Background(), dumpPath, postgresEngine(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRestore))
	// The engine's exact diagnostic text must survive to the surfaced error.
	assert.Contains(t, err.Error(), `violates foreign key constraint`)
	assert.Contains(t, err.Error(), "exited with code 1")
}

func TestImportDumpMissingFile(t *testing.T) {
	runner := &fakeRunner{}
	err := newTestImporter(runner).ImportDump(context.Background(),
		filepath.Join(t.TempDir(), "nope.sql"), postgresEngine(t))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRestore))
	assert.Empty(t, runner.calls, "restore must not run without a readable dump")
}

func TestImportDumpMySQLDropsFirst(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "database.sql")
	require.NoError(t, os.WriteFile(dumpPath, []byte("INSERT 1;"), 0600))

	engine, err := EngineFor(config.Service{Type: "mysql"}, "DEFAULT")
	require.NoError(t, err)

	runner := &fakeRunner{results: []*exec.Result{{ExitCode: 0}, {ExitCode: 0}}}
	require.NoError(t, newTestImporter(runner).ImportDump(context.Background(), dumpPath, engine))

	require.Len(t, runner.calls, 2)
	assert.Contains(t, runner.calls[0], "-e")
	assert.Contains(t, runner.calls[1], "mysql")
}

func TestExportDumpWritesFile(t *testing.T) {
	destPath := filepath.Join(t.TempDir(), "dumps", "database.sql")

	runner := &fakeRunner{results: []*exec.Result{{ExitCode: 0}}}
	require.NoError(t, newTestImporter(runner).ExportDump(context.Background(), destPath, postgresEngine(t)))

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, "-- dumped schema\n", string(data))
	assert.Contains(t, runner.calls[0], "pg_dump")
}

func TestExportDumpFailureRemovesFile(t *testing.T) {
	destPath := filepath.Join(t.TempDir(), "database.sql")

	runner := &fakeRunner{results: []*exec.Result{
		{ExitCode: 2, Stderr: []byte("connection to server failed")},
	}}
	err := newTestImporter(runner).ExportDump(context.Background(), destPath, postgresEngine(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection to server failed")

	_, statErr := os.Stat(destPath)
	assert.True(t, os.IsNotExist(statErr))
}
