// Package exec runs local commands (docker compose, database clients) and
// captures their output for diagnostics.
package exec

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"github.com/nimbuslabs/nimbus/internal/errors"
)

// Result holds everything a caller needs to diagnose a finished command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Output returns stderr if present, otherwise stdout. Database clients write
// their diagnostics to either stream depending on the engine.
func (r *Result) Output() string {
	if len(r.Stderr) > 0 {
		return string(r.Stderr)
	}
	return string(r.Stdout)
}

// Runner executes a command. The interface exists so workflow and importer
// tests can substitute a fake without shelling out.
type Runner interface {
	// Run executes argv with the given stdin (may be nil), returning the
	// captured output and exit code. A non-zero exit is reported in the
	// Result, not as an error; err is reserved for failures to execute at
	// all (binary missing, context cancelled).
	Run(ctx context.Context, argv []string, stdin io.Reader) (*Result, error)

	// RunStreaming executes argv writing stdout to the given writer,
	// capturing stderr. Used for dumps, where stdout is the payload.
	RunStreaming(ctx context.Context, argv []string, stdout io.Writer) (*Result, error)
}

// LocalRunner runs commands on the local machine.
type LocalRunner struct{}

// NewLocalRunner returns a Runner backed by os/exec.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

func (r *LocalRunner) Run(ctx context.Context, argv []string, stdin io.Reader) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrExec, "Empty command", "")
	}

	command := exec.CommandContext(ctx, argv[0], argv[1:]...)
	command.Stdin = stdin

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	runErr := command.Run()
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run "+argv[0],
			"Make sure "+argv[0]+" is installed and on your PATH")
	}

	return result, nil
}

func (r *LocalRunner) RunStreaming(ctx context.Context, argv []string, stdout io.Writer) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrExec, "Empty command", "")
	}

	command := exec.CommandContext(ctx, argv[0], argv[1:]...)
	command.Stdout = stdout

	var stderr bytes.Buffer
	command.Stderr = &stderr

	runErr := command.Run()
	result := &Result{Stderr: stderr.Bytes()}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run "+argv[0],
			"Make sure "+argv[0]+" is installed and on your PATH")
	}

	return result, nil
}

// LookPath reports whether a binary is available, for doctor checks.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
