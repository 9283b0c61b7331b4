// Package docker provides Docker Engine API wrappers, image building,
// and container lifecycle management for the wsgidock CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container label management for persisting service metadata
//     (Docker labels are the sole state storage mechanism)
//   - Image builds: tarring the project build context with .dockerignore
//     filtering and streaming the daemon's build output
//   - Container lifecycle operations: run, list, start, stop, remove
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
