package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quaylabs/wsgidock/internal/model"
)

// Label key constants define the Docker label keys used to persist
// service metadata on containers. These labels serve as the sole
// persistence mechanism — there is no external state file.
//
// All keys share the "wsgidock." prefix to namespace them and avoid
// collisions with labels set by other tools (Docker Compose, buildkit, etc.).
const (
	// LabelPrefix is the common prefix for all wsgidock labels.
	// Using a consistent prefix enables efficient label-based filtering
	// when listing containers via the Docker API.
	LabelPrefix = "wsgidock."

	// LabelManagedBy identifies containers managed by wsgidock.
	// This is the primary label used for filtering and discovery.
	// Key: "wsgidock.managed-by", Value: always "wsgidock".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelName stores the service's unique identifier.
	// Key: "wsgidock.name", Value: service name (e.g., "billing-api").
	LabelName = LabelPrefix + "name"

	// LabelProjectPath stores the absolute filesystem path to the project
	// directory the image was built from.
	// Key: "wsgidock.project-path", Value: absolute path.
	LabelProjectPath = LabelPrefix + "project-path"

	// LabelImage stores the image reference the service runs.
	// Key: "wsgidock.image", Value: image tag (e.g., "wsgidock/billing-api:latest").
	LabelImage = LabelPrefix + "image"

	// LabelVariant stores the Dockerfile variant the image was built with.
	// Key: "wsgidock.variant", Value: one of "lean", "vcs", "full".
	LabelVariant = LabelPrefix + "variant"

	// LabelEntrypoint stores the WSGI entry point in module:object notation.
	// Key: "wsgidock.entrypoint", Value: e.g. "wsgi:app".
	LabelEntrypoint = LabelPrefix + "entrypoint"

	// LabelPort stores the container-side listen port (the resolved PORT).
	// Key: "wsgidock.port", Value: decimal port number.
	LabelPort = LabelPrefix + "port"

	// LabelWorkers stores the resolved worker process count.
	// Key: "wsgidock.workers", Value: decimal count.
	LabelWorkers = LabelPrefix + "workers"

	// LabelThreads stores the resolved per-worker thread count.
	// Key: "wsgidock.threads", Value: decimal count.
	LabelThreads = LabelPrefix + "threads"

	// LabelHostPort stores the host-side published port.
	// Key: "wsgidock.host-port", Value: decimal port number.
	LabelHostPort = LabelPrefix + "host-port"

	// LabelBuildID stores the unique identifier assigned to the image
	// build that produced the service's image. Applied to images as well
	// as containers so a container can be traced back to its build.
	// Key: "wsgidock.build-id", Value: UUID.
	LabelBuildID = LabelPrefix + "build-id"

	// LabelCreatedAt stores the ISO-8601 timestamp of service creation.
	// Key: "wsgidock.created-at", Value: RFC3339 formatted timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
// All containers created by this CLI are tagged with this value,
// enabling discovery via Docker API label filters.
const ManagedByValue = "wsgidock"

// BuildLabels constructs a Docker label map from a Service.
// These labels are applied to the service's container, allowing full
// reconstruction of the Service from container inspection alone
// (no external state file needed).
//
// The free-form launch environment is NOT encoded in labels — it lives
// on the running container itself and can hold values that do not
// belong in `docker inspect` output shared in bug reports.
func BuildLabels(svc *model.Service) map[string]string {
	return map[string]string{
		LabelManagedBy:   ManagedByValue,
		LabelName:        svc.Name,
		LabelProjectPath: svc.ProjectPath,
		LabelImage:       svc.ImageTag,
		LabelVariant:     svc.Variant.String(),
		LabelEntrypoint:  svc.Launch.Entrypoint.String(),
		LabelPort:        strconv.Itoa(svc.Launch.Port),
		LabelWorkers:     strconv.Itoa(svc.Launch.Workers),
		LabelThreads:     strconv.Itoa(svc.Launch.Threads),
		LabelHostPort:    strconv.Itoa(svc.HostPort),
		// time.RFC3339 produces ISO-8601 compatible timestamps like
		// "2026-02-28T10:00:00Z". Using UTC ensures consistency
		// regardless of the host machine's timezone.
		LabelCreatedAt: svc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs a Service from Docker container labels.
// This is the inverse of BuildLabels and is used when listing or
// inspecting containers to rebuild the domain model.
//
// Required labels: managed-by, name, project-path, image, variant,
// entrypoint, port, workers, threads, host-port, created-at. Missing
// required labels cause an error.
//
// Note: Status and Containers are NOT reconstructed from labels because
// they are determined at runtime from Docker container state, not from
// static label values.
func ParseLabels(labels map[string]string) (*model.Service, error) {
	// Validate that all required labels are present.
	// We check them all at once rather than failing on the first missing one,
	// so the error message can list all missing labels for easier debugging.
	requiredKeys := []string{
		LabelManagedBy,
		LabelName,
		LabelProjectPath,
		LabelImage,
		LabelVariant,
		LabelEntrypoint,
		LabelPort,
		LabelWorkers,
		LabelThreads,
		LabelHostPort,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	// Verify this container is actually managed by wsgidock.
	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	// Parse the typed enums.
	variant, err := model.ParseVariant(labels[LabelVariant])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelVariant, err)
	}
	entrypoint, err := model.ParseEntrypoint(labels[LabelEntrypoint])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelEntrypoint, err)
	}

	port, err := parseIntLabel(labels, LabelPort)
	if err != nil {
		return nil, err
	}
	workers, err := parseIntLabel(labels, LabelWorkers)
	if err != nil {
		return nil, err
	}
	threads, err := parseIntLabel(labels, LabelThreads)
	if err != nil {
		return nil, err
	}
	hostPort, err := parseIntLabel(labels, LabelHostPort)
	if err != nil {
		return nil, err
	}

	// Parse the ISO-8601 timestamp.
	// time.RFC3339 is Go's constant for the ISO-8601 / RFC-3339 format.
	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &model.Service{
		Name:        labels[LabelName],
		ProjectPath: labels[LabelProjectPath],
		ImageTag:    labels[LabelImage],
		Variant:     variant,
		Launch: model.LaunchConfig{
			Port:       port,
			Workers:    workers,
			Threads:    threads,
			Entrypoint: entrypoint,
		},
		HostPort:  hostPort,
		CreatedAt: createdAt,
	}, nil
}

// parseIntLabel parses a decimal integer label value, reporting the key
// in the error for easier debugging.
func parseIntLabel(labels map[string]string, key string) (int, error) {
	n, err := strconv.Atoi(labels[key])
	if err != nil {
		return 0, fmt.Errorf("invalid label %s=%q: %w", key, labels[key], err)
	}
	return n, nil
}

// FilterLabels returns a label filter map suitable for use with the Docker
// API's container listing endpoint. The returned map filters for containers
// that have the LabelManagedBy label set to ManagedByValue, effectively
// listing only containers managed by wsgidock.
//
// Usage with Docker SDK:
//
//	filters := docker.FilterLabels()
//	containers, err := cli.ContainerList(ctx, container.ListOptions{
//	    Filters: filters.NewArgs(filters.Arg("label", ...)),
//	})
func FilterLabels() map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
	}
}
