package docker

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/wsgidock/internal/model"
)

func TestDetectUnixSocket(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets only")
	}

	dir := t.TempDir()
	first := filepath.Join(dir, "missing.sock")
	second := filepath.Join(dir, "docker.sock")
	require.NoError(t, os.WriteFile(second, nil, 0o644))

	host, err := detectUnixSocket([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, "unix://"+second, host)
}

func TestDetectUnixSocketNoneFound(t *testing.T) {
	dir := t.TempDir()

	_, err := detectUnixSocket([]string{filepath.Join(dir, "nope.sock")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Docker socket")
}

// TestNewClientWithBadHost verifies an unparseable host maps to the
// daemon-not-running exit code with a hint the user can act on.
func TestNewClientWithBadHost(t *testing.T) {
	_, err := newClientWithHost("not a host")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitDockerNotRunning, cliErr.Code)
}
