// Package deploy generates deployment artifacts for managed services.
//
// The only artifact today is a Docker Compose file that reproduces a
// service's runtime exactly as `wsgidock run` would start it: same
// image, same published port, same environment, same management labels.
// This gives users a hand-off path from the local CLI workflow to any
// Compose-driven host without re-deriving the launch contract.
package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/quaylabs/wsgidock/internal/model"
)

// composeFile represents the structure of the generated docker-compose
// YAML. This struct is used for YAML serialization via the yaml.v3
// library.
type composeFile struct {
	// Name sets the Compose project name. Docker Compose uses this to
	// prefix container names, network names, and volume names, keeping
	// the exported service isolated from unrelated Compose projects.
	Name string `yaml:"name"`

	// Services maps service names to their definitions. An export
	// always contains exactly one service.
	Services map[string]composeService `yaml:"services"`
}

// composeService is the definition of a single exported service.
type composeService struct {
	// Image is the built image reference the service runs.
	Image string `yaml:"image"`

	// Ports lists the port mappings in "hostPort:containerPort" format.
	Ports []string `yaml:"ports"`

	// Environment lists KEY=value pairs, sorted for deterministic output.
	Environment []string `yaml:"environment"`

	// Labels carries the wsgidock management labels so a Compose-started
	// container is still discoverable by "wsgidock list".
	Labels map[string]string `yaml:"labels"`

	// Restart is the Compose restart policy. Always "always": restart
	// behavior belongs to the orchestrator, and Compose is the
	// orchestrator here.
	Restart string `yaml:"restart"`
}

// GenerateCompose creates a docker-compose YAML reproducing the
// service's runtime configuration.
//
// Key behaviors:
//   - The top-level `name` field sets COMPOSE_PROJECT_NAME so container
//     and network names do not collide with other projects.
//   - The environment is the exact container environment the run command
//     would produce, sorted for reproducible diffs.
//   - Labels include the full management label set, so services started
//     through the exported file are indistinguishable from CLI-started
//     ones when listing.
//
// Returns the YAML bytes with a header comment, or an error if
// serialization fails.
func GenerateCompose(svc *model.Service, env []string, labels map[string]string) ([]byte, error) {
	sortedEnv := make([]string, len(env))
	copy(sortedEnv, env)
	sort.Strings(sortedEnv)

	out := composeFile{
		Name: svc.Name,
		Services: map[string]composeService{
			svc.Name: {
				Image:       svc.ImageTag,
				Ports:       []string{fmt.Sprintf("%d:%d", svc.HostPort, svc.Launch.Port)},
				Environment: sortedEnv,
				Labels:      labels,
				Restart:     "always",
			},
		},
	}

	yamlBytes, err := yaml.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize compose YAML: %w", err)
	}

	// Prepend a header comment explaining the file's origin and warning
	// against manual edits, since a re-export overwrites the file.
	header := fmt.Sprintf(
		"# Auto-generated by wsgidock for service %q\n# DO NOT EDIT - this file is regenerated on each export\n",
		svc.Name,
	)

	return []byte(header + string(yamlBytes)), nil
}

// WriteCompose writes the generated Compose YAML to the specified
// output path, creating parent directories as needed.
func WriteCompose(outputPath string, data []byte) error {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}
