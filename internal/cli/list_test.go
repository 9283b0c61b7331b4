// Package cli — list_test.go contains unit tests for the pure formatting
// functions used by the list command and other CLI output helpers.
//
// These tests verify data transformation logic without requiring a Docker
// daemon or any external dependencies.
package cli

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/wsgidock/internal/model"
)

// TestFormatServicePort verifies that FormatServicePort renders a
// service's port binding for table display, with a dash for services
// that have never published a port.
func TestFormatServicePort(t *testing.T) {
	tests := []struct {
		name string
		svc  *model.Service
		want string
	}{
		{
			name: "published port",
			svc: &model.Service{
				Launch:   model.LaunchConfig{Port: 8080},
				HostPort: 9000,
			},
			want: "9000 → 8080/tcp",
		},
		{
			name: "never published returns dash",
			svc: &model.Service{
				Launch: model.LaunchConfig{Port: 8080},
			},
			want: "-",
		},
		{
			name: "same host and container port",
			svc: &model.Service{
				Launch:   model.LaunchConfig{Port: 8080},
				HostPort: 8080,
			},
			want: "8080 → 8080/tcp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatServicePort(tt.svc)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDefaultImageTag verifies the image tag convention used when no
// --tag override is given.
func TestDefaultImageTag(t *testing.T) {
	tests := []struct {
		name    string
		svcName string
		want    string
	}{
		{
			name:    "simple name",
			svcName: "billing-api",
			want:    "wsgidock/billing-api:latest",
		},
		{
			name:    "single character name",
			svcName: "a",
			want:    "wsgidock/a:latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultImageTag(tt.svcName)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestResolveHostPortPinnedConflict verifies that a pinned host port
// that is already bound fails with the port-bind exit code instead of
// deferring the failure to Docker.
func TestResolveHostPortPinnedConflict(t *testing.T) {
	// Occupy a port so the pinned check fails deterministically.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	_, err = resolveHostPort(ln.Addr().(*net.TCPAddr).Port)
	assert.Error(t, err)

	var cliErr *model.CLIError
	assert.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPortBindFailed, cliErr.Code)
}

// TestResolveHostPortAuto verifies that the scanner picks a free port
// from the default range when no pin is given.
func TestResolveHostPortAuto(t *testing.T) {
	got, err := resolveHostPort(0)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, got, hostPortRangeStart)
	assert.LessOrEqual(t, got, hostPortRangeEnd)
}
