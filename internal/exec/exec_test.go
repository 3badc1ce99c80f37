package exec

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbuslabs/nimbus/internal/errors"
)

func TestRunCapturesOutput(t *testing.T) {
	r := NewLocalRunner()

	result, err := r.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", string(result.Stdout))
	assert.Equal(t, "err\n", string(result.Stderr))
}

func TestRunNonZeroExit(t *testing.T) {
	r := NewLocalRunner()

	result, err := r.Run(context.Background(), []string{"sh", "-c", "echo 'constraint violation' >&2; exit 1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Contains(t, string(result.Stderr), "constraint violation")
	assert.Contains(t, result.Output(), "constraint violation")
}

func TestRunWithStdin(t *testing.T) {
	r := NewLocalRunner()

	result, err := r.Run(context.Background(), []string{"cat"}, strings.NewReader("piped input"))
	require.NoError(t, err)
	assert.Equal(t, "piped input", string(result.Stdout))
}

func TestRunMissingBinary(t *testing.T) {
	r := NewLocalRunner()

	_, err := r.Run(context.Background(), []string{"definitely-not-a-real-binary-xyz"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
}

func TestRunStreaming(t *testing.T) {
	r := NewLocalRunner()

	var out bytes.Buffer
	result, err := r.RunStreaming(context.Background(), []string{"sh", "-c", "printf 'dump-bytes'"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "dump-bytes", out.String())
}

func TestResultOutputPrefersStderr(t *testing.T) {
	r := &Result{Stdout: []byte("stdout"), Stderr: []byte("stderr")}
	assert.Equal(t, "stderr", r.Output())

	r = &Result{Stdout: []byte("stdout")}
	assert.Equal(t, "stdout", r.Output())
}
