// container.go implements Docker container lifecycle operations for the
// wsgidock CLI. It provides functions for listing, grouping, running,
// starting, stopping, and removing the containers that back managed
// services.
//
// All managed containers are identified by the "wsgidock.managed-by" label,
// which enables filtering them from unrelated containers on the same host.
package docker

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	// Docker API types for container listing results.
	// types.Container is the struct returned by ContainerList.
	"github.com/docker/docker/api/types"

	// container package provides Config, HostConfig, ListOptions,
	// StopOptions, RemoveOptions for Docker container operations.
	"github.com/docker/docker/api/types/container"

	// filters package provides Args type for building Docker API query filters.
	"github.com/docker/docker/api/types/filters"

	// nat provides the port-map types the Docker API expects for
	// publishing container ports.
	"github.com/docker/go-connections/nat"

	"github.com/quaylabs/wsgidock/internal/model"
)

// ListManagedContainers queries the Docker daemon for all containers that
// have the "wsgidock.managed-by=wsgidock" label. It returns a slice of
// ContainerInfo representing each managed container, including stopped ones.
//
// This function is the primary entry point for discovering what services
// currently exist. All state is derived from Docker labels rather than
// any external database.
//
// The function lists ALL containers (including stopped ones) because
// a service may have a stopped container that still needs to be tracked
// (e.g., for "wsgidock list" or "wsgidock remove").
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	// Build a Docker API filter that matches only containers with our
	// management label. This is more efficient than listing all containers
	// and filtering in Go, because Docker performs the filtering server-side.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	// List containers using the Docker SDK. The All flag ensures we also
	// get stopped/exited containers, not just running ones.
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	// Convert Docker API types.Container structs to our domain model
	// ContainerInfo structs. This decouples the rest of the application
	// from the Docker SDK types.
	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}

	return result, nil
}

// containerToInfo converts a Docker API Container struct to our domain
// model ContainerInfo. This is a pure mapping function with no side effects.
//
// The Docker API returns container names with a leading "/" prefix
// (e.g., "/my-container"), which we strip for cleaner display in CLI output.
// The State field from the Docker API is a short string like "running",
// "exited", or "created".
func containerToInfo(c types.Container) model.ContainerInfo {
	// Extract the container name. Docker returns names as a slice,
	// and each name has a leading "/" that we strip for readability.
	name := ""
	if len(c.Names) > 0 {
		// Docker container names always start with "/". We remove it
		// because it's an artifact of the API, not meaningful to users.
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		ImageTag:      c.Image,
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// GroupContainersByService groups a slice of ContainerInfo by their
// "wsgidock.name" label value. This is useful for the "wsgidock list"
// command, which needs to display containers organized by service.
//
// Containers without a "wsgidock.name" label are silently skipped,
// since they cannot be attributed to any service. This should not
// happen in practice because ListManagedContainers already filters for
// containers with wsgidock labels.
//
// Returns a map where keys are service names and values are slices
// of ContainerInfo belonging to that service.
func GroupContainersByService(containers []model.ContainerInfo) map[string][]model.ContainerInfo {
	groups := make(map[string][]model.ContainerInfo)

	for _, c := range containers {
		// Look up the service name from the container's labels.
		svcName, ok := c.Labels[LabelName]
		if !ok || svcName == "" {
			// Skip containers that don't have the service name label.
			// This shouldn't happen with properly labeled containers.
			continue
		}
		groups[svcName] = append(groups[svcName], c)
	}

	return groups
}

// BuildService constructs a Service domain object from a group of
// containers that belong to the same service.
//
// It uses ParseLabels (from label.go) on the first container's labels to
// extract the service metadata (name, project path, image, launch
// configuration).
//
// The overall service status is determined by:
//  1. If the project path does not exist on disk → orphaned
//  2. If any container has status "running" → running
//  3. Otherwise → stopped
//
// Returns an error if the containers slice is empty or if label parsing fails.
func BuildService(svcName string, containers []model.ContainerInfo) (*model.Service, error) {
	// Guard: at least one container is required to extract labels from.
	if len(containers) == 0 {
		return nil, fmt.Errorf("cannot build service %q: no containers provided", svcName)
	}

	// Parse the service metadata from the first container's labels.
	// A service normally has exactly one container; if a stale duplicate
	// exists the labels are identical, so the first one is sufficient.
	svc, err := ParseLabels(containers[0].Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels for service %q: %w", svcName, err)
	}

	// Attach all containers to the service for downstream use
	// (e.g., displaying container details in "wsgidock list --json").
	svc.Containers = containers

	// Determine the overall service status based on container states
	// and whether the project directory still exists on disk.
	svc.Status = determineStatus(containers, svc.ProjectPath)

	return svc, nil
}

// ListServices lists all managed services, grouped and reconstructed
// from container labels. Services whose labels fail to parse are skipped
// rather than failing the whole listing — a single corrupted container
// must not make the CLI unusable.
func ListServices(ctx context.Context, cli *Client) ([]*model.Service, error) {
	containers, err := ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, err
	}

	groups := GroupContainersByService(containers)
	services := make([]*model.Service, 0, len(groups))
	for name, group := range groups {
		svc, err := BuildService(name, group)
		if err != nil {
			continue
		}
		services = append(services, svc)
	}
	return services, nil
}

// FindService locates a managed service by name. Returns a CLIError with
// ExitServiceNotFound when no container carries the service's name label.
func FindService(ctx context.Context, cli *Client, name string) (*model.Service, error) {
	containers, err := ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, err
	}

	groups := GroupContainersByService(containers)
	group, ok := groups[name]
	if !ok {
		return nil, model.NewCLIError(
			model.ExitServiceNotFound,
			fmt.Sprintf("service %q not found", name),
		)
	}

	return BuildService(name, group)
}

// determineStatus calculates the aggregate status of a service based on
// its containers' states and whether the project path exists.
//
// The priority order is:
//  1. Orphaned: project path no longer exists → the image can never be
//     rebuilt from source again
//  2. Running: at least one container is running → service is running
//  3. Stopped: all containers are stopped/exited → service is stopped
func determineStatus(containers []model.ContainerInfo, projectPath string) model.ServiceStatus {
	// Check if the project directory exists on disk. If not, the service
	// is orphaned — the user likely deleted the project directory without
	// cleaning up the Docker containers.
	if _, err := os.Stat(projectPath); os.IsNotExist(err) {
		return model.StatusOrphaned
	}

	// A single running container is enough to consider the whole service
	// as "running".
	for _, c := range containers {
		if c.Status == "running" {
			return model.StatusRunning
		}
	}

	return model.StatusStopped
}

// RunServiceContainer creates and starts a detached container for a
// service using the Docker SDK.
//
// The container publishes the service's listen port on the host port
// recorded in svc.HostPort, carries the full wsgidock label set (so the
// service can be reconstructed from `docker inspect` alone), and gets
// the environment produced by the launch package. The container name is
// the service name — Docker enforces name uniqueness, which doubles as
// a duplicate-service guard.
//
// The steps are:
//  1. Build the nat.PortMap publishing containerPort → hostPort.
//  2. ContainerCreate with image, env, labels, and port bindings.
//  3. ContainerStart. A bind failure at this point maps to
//     ExitPortBindFailed; anything else to ExitDockerNotRunning.
//
// Returns the created container's ID.
func RunServiceContainer(ctx context.Context, cli *Client, svc *model.Service, env []string) (string, error) {
	containerPort, err := nat.NewPort("tcp", strconv.Itoa(svc.Launch.Port))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", svc.Launch.Port, err)
	}

	config := &container.Config{
		Image:  svc.ImageTag,
		Env:    env,
		Labels: BuildLabels(svc),
		ExposedPorts: nat.PortSet{
			containerPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{
				{HostIP: "0.0.0.0", HostPort: strconv.Itoa(svc.HostPort)},
			},
		},
	}

	created, err := cli.Inner().ContainerCreate(ctx, config, hostConfig, nil, nil, svc.Name)
	if err != nil {
		// A name conflict means the service already has a container; that
		// is a user-facing condition, not a daemon failure.
		if strings.Contains(err.Error(), "is already in use by container") {
			return "", model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("service %q already has a container (use --replace or remove it first)", svc.Name),
				err,
			)
		}
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create container for service %q", svc.Name),
			err,
		)
	}

	if err := cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		// The preflight scanner catches most conflicts before we get here,
		// but another process can grab the port in between.
		if isPortBindError(err) {
			return "", model.WrapCLIError(
				model.ExitPortBindFailed,
				fmt.Sprintf("host port %d is already in use", svc.HostPort),
				err,
			)
		}
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container for service %q", svc.Name),
			err,
		)
	}

	return created.ID, nil
}

// isPortBindError reports whether a ContainerStart error is a host port
// conflict. The daemon does not expose a typed error for this, so
// message matching is the only option.
func isPortBindError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "port is already allocated") ||
		strings.Contains(msg, "address already in use")
}

// StartContainer starts a stopped container by its ID using the Docker SDK.
// It sends a start request to the Docker daemon, which resumes the container's
// main process. If the container is already running, Docker returns an error.
func StartContainer(ctx context.Context, cli *Client, containerID string) error {
	// container.StartOptions is currently empty in the Docker SDK but is
	// included for forward compatibility with future Docker API versions.
	err := cli.Inner().ContainerStart(ctx, containerID, container.StartOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to start container %q", containerID),
			err,
		)
	}
	return nil
}

// StopContainer stops a running container by its ID using the Docker SDK.
// It sends a SIGTERM signal to the container's main process and waits
// for it to exit gracefully. If the container does not stop within the
// Docker daemon's default timeout (typically 10 seconds), it is forcefully
// killed with SIGKILL.
//
// Gunicorn treats SIGTERM as graceful shutdown: workers finish their
// in-flight requests before the master exits.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	// StopOptions with nil Timeout uses Docker's default timeout (10 seconds).
	// This gives Gunicorn a chance to drain in-flight requests.
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container by its ID using the Docker SDK.
// The container must be stopped first unless force is true.
//
// When force is true, Docker will first kill the container (SIGKILL)
// and then remove it. This is useful for cleanup operations where
// graceful shutdown is not required (e.g., "wsgidock remove --force").
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
