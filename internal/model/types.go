// Package model defines the domain types for the wsgidock CLI.
//
// All entities in this package represent the core data structures of the
// build-and-run contract: a project directory is packaged into a container
// image (one of three Dockerfile variants) and launched behind Gunicorn
// with environment-driven worker/thread counts.
//
// Key design decision: All state is persisted via Docker container labels,
// so these types are transient representations reconstructed from Docker
// API queries at runtime.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ServiceStatus represents the lifecycle state of a managed service.
// The state transitions are:
//
//	[Built] → Running → Stopped ⇄ Running → [Removed]
//	Running/Stopped → Orphaned (when the project directory is deleted)
type ServiceStatus string

const (
	// StatusRunning indicates the service container is running.
	StatusRunning ServiceStatus = "running"

	// StatusStopped indicates the container exists but is not running.
	// Image and configuration are preserved.
	StatusStopped ServiceStatus = "stopped"

	// StatusOrphaned indicates the project directory no longer exists on
	// disk, but Docker containers remain. This typically happens when a
	// user deletes the project without removing the service.
	StatusOrphaned ServiceStatus = "orphaned"
)

// String returns the string representation of ServiceStatus.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands and logging.
func (s ServiceStatus) String() string {
	return string(s)
}

// IsValid checks whether the ServiceStatus value is one of the
// predefined valid states.
func (s ServiceStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusOrphaned:
		return true
	default:
		return false
	}
}

// ParseServiceStatus converts a string to a ServiceStatus.
// Returns an error if the string does not match any valid status.
func ParseServiceStatus(s string) (ServiceStatus, error) {
	status := ServiceStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid service status: %q (valid: running, stopped, orphaned)", s)
	}
	return status, nil
}

// Variant identifies which Dockerfile variant a project is packaged with.
// The variants form a strict superset chain of native build dependencies:
//
//	lean ⊂ vcs ⊂ full
//
// Variant selection logic (from manifest inspection):
//   - mysqlclient in requirements.txt → VariantFull
//   - any VCS requirement (git+https://..., -e git+...) → VariantVCS
//   - otherwise → VariantLean
type Variant string

const (
	// VariantLean installs build-essential and libpq-dev, enough to
	// compile wheels that link against the PostgreSQL client library
	// (psycopg2 and friends).
	VariantLean Variant = "lean"

	// VariantVCS adds git on top of VariantLean, so pip can install
	// requirements sourced directly from version control.
	VariantVCS Variant = "vcs"

	// VariantFull adds pkg-config and default-libmysqlclient-dev on top
	// of VariantVCS, covering MySQL native wheels (mysqlclient).
	// This is the most feature-complete variant and the fallback when
	// manifest inspection is inconclusive.
	VariantFull Variant = "full"
)

// String returns the string representation of Variant.
func (v Variant) String() string {
	return string(v)
}

// IsValid checks whether the Variant value is one of the
// predefined valid variants.
func (v Variant) IsValid() bool {
	switch v {
	case VariantLean, VariantVCS, VariantFull:
		return true
	default:
		return false
	}
}

// SystemPackages returns the apt package list installed by this variant,
// in install order. The lists are supersets: every variant carries the
// packages of the variants below it.
func (v Variant) SystemPackages() []string {
	switch v {
	case VariantLean:
		return []string{"build-essential", "libpq-dev"}
	case VariantVCS:
		return []string{"build-essential", "libpq-dev", "git"}
	case VariantFull:
		return []string{"build-essential", "libpq-dev", "pkg-config", "default-libmysqlclient-dev", "git"}
	default:
		return nil
	}
}

// DefaultWorkers returns the default Gunicorn worker process count for
// this variant when WEB_CONCURRENCY is not set. The full variant defaults
// higher because it targets heavier multi-database deployments.
func (v Variant) DefaultWorkers() int {
	if v == VariantFull {
		return 4
	}
	return 2
}

// ParseVariant converts a string to a Variant.
// Returns an error if the string does not match any valid variant.
func ParseVariant(s string) (Variant, error) {
	variant := Variant(strings.ToLower(s))
	if !variant.IsValid() {
		return "", fmt.Errorf("invalid variant: %q (valid: lean, vcs, full)", s)
	}
	return variant, nil
}

// Entrypoint is the module-qualified name of the WSGI application object,
// in Gunicorn's "module:object" notation. The contract default is
// "wsgi:app" — a module named wsgi exposing a callable named app.
type Entrypoint struct {
	// Module is the Python module name (import path, no .py suffix).
	Module string `json:"module"`

	// Object is the name of the WSGI callable inside the module.
	Object string `json:"object"`
}

// DefaultEntrypoint is the conventional WSGI entry point.
var DefaultEntrypoint = Entrypoint{Module: "wsgi", Object: "app"}

// String renders the entrypoint in Gunicorn's "module:object" notation.
func (e Entrypoint) String() string {
	return e.Module + ":" + e.Object
}

// ParseEntrypoint parses a "module:object" string into an Entrypoint.
// A bare module name defaults the object to "app".
func ParseEntrypoint(s string) (Entrypoint, error) {
	if s == "" {
		return Entrypoint{}, fmt.Errorf("entrypoint must not be empty")
	}
	parts := strings.SplitN(s, ":", 2)
	ep := Entrypoint{Module: parts[0], Object: "app"}
	if len(parts) == 2 {
		ep.Object = parts[1]
	}
	if err := ep.Validate(); err != nil {
		return Entrypoint{}, err
	}
	return ep, nil
}

// identRegex matches a valid Python identifier, which both the module
// and object components of an entrypoint must satisfy. Dotted module
// paths (package.wsgi) are allowed by validating each segment.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that both components of the entrypoint are valid
// Python identifiers (the module may be a dotted path).
func (e Entrypoint) Validate() error {
	if e.Module == "" || e.Object == "" {
		return fmt.Errorf("entrypoint %q: module and object must not be empty", e.String())
	}
	for _, seg := range strings.Split(e.Module, ".") {
		if !identRegex.MatchString(seg) {
			return fmt.Errorf("entrypoint %q: invalid module segment %q", e.String(), seg)
		}
	}
	if !identRegex.MatchString(e.Object) {
		return fmt.Errorf("entrypoint %q: invalid object name %q", e.String(), e.Object)
	}
	return nil
}

// LaunchConfig holds the resolved runtime configuration that maps to the
// Gunicorn process-manager invocation. Resolution precedence is
// flag > process environment > project config > variant default;
// the resolution itself lives in the launch package — this struct only
// carries the outcome.
//
// The request timeout is intentionally absent: it is fixed at 0
// (disabled). Long-running requests are the application's concern to
// bound, not this layer's.
type LaunchConfig struct {
	// Port is the TCP port the HTTP listener binds to inside the
	// container (the PORT contract, default 8080).
	Port int `json:"port"`

	// Workers is the number of worker processes Gunicorn forks
	// (the WEB_CONCURRENCY contract).
	Workers int `json:"workers"`

	// Threads is the number of threads per worker process
	// (the WEB_THREADS contract, default 8).
	Threads int `json:"threads"`

	// Entrypoint is the WSGI application object to serve.
	Entrypoint Entrypoint `json:"entrypoint"`

	// Env carries extra container environment variables from the project
	// config, beyond the reserved PORT/WEB_CONCURRENCY/WEB_THREADS/
	// PYTHONUNBUFFERED set.
	Env map[string]string `json:"env,omitempty"`
}

// Validate checks the launch configuration ranges. Worker and thread
// counts must be positive; the port must be a valid TCP port.
func (c *LaunchConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("launch config: port %d out of range (1-65535)", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("launch config: worker count %d must be at least 1", c.Workers)
	}
	if c.Threads < 1 {
		return fmt.Errorf("launch config: thread count %d must be at least 1", c.Threads)
	}
	return c.Entrypoint.Validate()
}

// Concurrency returns the total concurrent request-handling capacity,
// the worker × thread product.
func (c *LaunchConfig) Concurrency() int {
	return c.Workers * c.Threads
}

// Service represents a managed WSGI service — a project directory paired
// with its built image and container. This is the primary aggregate
// entity in the domain.
//
// All fields are reconstructed at runtime from Docker container labels
// (see the label schema in the docker package). There is no persistent
// state file on disk.
type Service struct {
	// Name is the unique identifier for this service.
	// Must contain only alphanumeric characters and hyphens.
	Name string `json:"name"`

	// ProjectPath is the absolute filesystem path to the project
	// directory the image was built from.
	ProjectPath string `json:"projectPath"`

	// ImageTag is the Docker image reference the service runs.
	ImageTag string `json:"imageTag"`

	// Variant indicates which Dockerfile variant the image was built with.
	Variant Variant `json:"variant"`

	// Status is the current lifecycle state of the service.
	Status ServiceStatus `json:"status"`

	// Launch holds the resolved runtime configuration the container
	// was started with.
	Launch LaunchConfig `json:"launch"`

	// HostPort is the host-side port published for the container's
	// listen port. Zero when the service has never been run.
	HostPort int `json:"hostPort,omitempty"`

	// Containers holds information about the Docker containers belonging
	// to this service. Normally exactly one.
	Containers []ContainerInfo `json:"containers,omitempty"`

	// CreatedAt is the timestamp when this service was created.
	CreatedAt time.Time `json:"createdAt"`
}

// nameRegex validates service names: alphanumeric + hyphens only,
// must start and end with alphanumeric.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateName checks if the given name is a valid service name.
// Valid names contain only alphanumeric characters and hyphens,
// and must start/end with an alphanumeric character.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid service name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// PortBinding represents the single port mapping between the container's
// HTTP listen port and a host port.
type PortBinding struct {
	// ContainerPort is the port Gunicorn binds inside the container
	// (the resolved PORT value, 1-65535).
	ContainerPort int `json:"containerPort"`

	// HostPort is the port published on the host machine (1-65535).
	// Zero means "let the preflight scanner pick a free ephemeral port".
	HostPort int `json:"hostPort"`
}

// Validate checks whether the PortBinding has valid field values.
func (p *PortBinding) Validate() error {
	if p.ContainerPort < 1 || p.ContainerPort > 65535 {
		return fmt.Errorf("port binding: container port %d out of range (1-65535)", p.ContainerPort)
	}
	if p.HostPort < 0 || p.HostPort > 65535 {
		return fmt.Errorf("port binding: host port %d out of range (0-65535)", p.HostPort)
	}
	return nil
}

// String returns a human-readable representation of the port binding.
// Format: "hostPort → containerPort/tcp"
func (p *PortBinding) String() string {
	return fmt.Sprintf("%d → %d/tcp", p.HostPort, p.ContainerPort)
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched dynamically from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier (SHA-256 hash prefix).
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// ImageTag is the image reference the container was created from.
	ImageTag string `json:"imageTag,omitempty"`

	// Status is the Docker container status (e.g., "running", "exited", "created").
	Status string `json:"status"`

	// Labels is the full set of Docker labels on the container.
	// Includes wsgidock management labels (wsgidock.* prefix).
	Labels map[string]string `json:"labels,omitempty"`
}

// ExitCode defines standard CLI exit codes. These codes allow scripts
// and CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitProjectInvalid indicates the project directory is missing
	// required build inputs (no requirements.txt, no WSGI entry module,
	// or a malformed wsgidock.json).
	ExitProjectInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitBuildFailed indicates the image build was rejected by the
	// daemon (package install failure, dependency resolution failure).
	ExitBuildFailed ExitCode = 4

	// ExitPortBindFailed indicates the requested host port could not be
	// bound. This is fatal and never retried here — restart policy is
	// the orchestrator's responsibility.
	ExitPortBindFailed ExitCode = 5

	// ExitServiceNotFound indicates the named service does not exist.
	ExitServiceNotFound ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
