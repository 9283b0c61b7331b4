// Package docker provides a wrapper around the Docker Engine SDK client
// for building service images and managing the containers that run them.
//
// The primary purpose of this package is to abstract Docker API interactions
// and provide wsgidock-specific functionality such as label-based container
// filtering and automatic Docker socket detection.
package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/quaylabs/wsgidock/internal/model"
)

// defaultPingTimeout bounds the daemon liveness check. Docker Desktop on
// macOS can take a few seconds to answer after waking, so this is
// deliberately generous.
const defaultPingTimeout = 5 * time.Second

// daemonHint is appended to connection failures. Every wsgidock command
// except init and check talks to the daemon, so this is the first thing
// users hit on a machine where Docker is installed but not started.
const daemonHint = "start Docker (Docker Desktop, or `systemctl start docker` on Linux) and retry"

// Client wraps the Docker Engine SDK client for wsgidock's build and
// run operations. It resolves the daemon socket across platforms and
// verifies connectivity before any command does real work.
//
//	c, err := docker.NewClient()
//	if err != nil { ... }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { ... }
type Client struct {
	// inner is wrapped rather than embedded so the exposed surface stays
	// limited to what the wsgidock commands actually use.
	inner *client.Client
}

// NewClient creates a Docker client, resolving the daemon address in
// this order:
//  1. DOCKER_HOST, used as-is when set
//  2. platform socket defaults: /var/run/docker.sock on Linux and
//     macOS (plus ~/.docker/run/docker.sock on macOS), the
//     docker_engine named pipe on Windows
//
// Returns a model.CLIError with ExitDockerNotRunning when no socket is
// found or the SDK client cannot be constructed.
func NewClient() (*Client, error) {
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker socket not found; "+daemonHint,
			err,
		)
	}

	return newClientWithHost(host)
}

func newClientWithHost(host string) (*Client, error) {
	// Version negotiation keeps wsgidock working against whatever daemon
	// version the user runs, without pinning an API version here.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost probes the known socket locations for the current
// platform and returns the first that exists. Existence only proves the
// socket file is there; Ping verifies the daemon actually answers.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Newer Docker Desktop versions place the socket under the user's
		// home directory and may skip the /var/run symlink.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// os.Stat does not work on named pipes, so reachability is checked
		// with a short dial instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("no Docker socket at any of %v", paths)
}

// Ping verifies the daemon is reachable within defaultPingTimeout.
// Commands call this before building or touching containers so a
// stopped daemon fails fast with ExitDockerNotRunning instead of
// surfacing as a mid-build transport error.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	_, err := c.inner.Ping(pingCtx)
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding; "+daemonHint,
			err,
		)
	}
	return nil
}

// Close releases the SDK client's transport. Safe to call more than once.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner exposes the underlying SDK client for the build and container
// helpers in this package that need raw API calls.
func (c *Client) Inner() *client.Client {
	return c.inner
}
