// Package cli — build.go implements the "wsgidock build" command.
//
// The build command inspects a project, ensures it has a Dockerfile
// (generating one if needed), and builds the service image through the
// Docker daemon. The image is tagged wsgidock/<name>:latest unless
// overridden and carries the management labels that later commands use
// to discover it.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/dockerfile"
	"github.com/quaylabs/wsgidock/internal/project"
)

// buildFlags holds the flag values for the build command.
type buildFlags struct {
	// tag overrides the default image tag wsgidock/<name>:latest.
	tag string

	// noCache disables the daemon's layer cache for this build.
	noCache bool
}

// NewBuildCommand creates the "build" cobra command.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build a service image",
		Long: `Build the Docker image for a WSGI project.

If the project has no Dockerfile one is generated first, same as
"wsgidock init". The project directory is packed into a build context
honoring .dockerignore, and the image is tagged wsgidock/<name>:latest
unless --tag is given.

Examples:
  wsgidock build
  wsgidock build ./billing-api
  wsgidock build --tag registry.example.com/billing:v2 --no-cache`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runBuild(cmd.Context(), dir, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.tag, "tag", "t", "",
		"Image tag (default: wsgidock/<name>:latest)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false,
		"Build without using the layer cache")

	return cmd
}

// runBuild is the main logic function for the build command.
func runBuild(ctx context.Context, dir string, flags *buildFlags) error {
	// Step 1: Inspect the project.
	p, err := project.Inspect(dir)
	if err != nil {
		return err
	}

	// Step 2: Ensure the project has a Dockerfile and .dockerignore.
	generated, err := ensureDockerfile(p)
	if err != nil {
		return err
	}
	if generated {
		VerboseLog("Generated Dockerfile at %s", p.DockerfilePath())
	}

	// Step 3: Connect to Docker.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	// Step 4: Build the image, streaming progress unless --json.
	tag := flags.tag
	if tag == "" {
		tag = DefaultImageTag(p.Name)
	}

	var output io.Writer
	if !IsJSONOutput() {
		output = os.Stdout
	}

	buildID, err := docker.BuildImage(ctx, cli, p.Dir, docker.BuildOptions{
		Tag:     tag,
		NoCache: flags.noCache,
		Labels: map[string]string{
			docker.LabelName:        p.Name,
			docker.LabelProjectPath: p.Dir,
			docker.LabelVariant:     p.Variant.String(),
		},
		Output: output,
	})
	if err != nil {
		return err
	}
	VerboseLog("Build %s completed", buildID)

	// Step 5: Output the result.
	printBuildResult(p, tag, buildID)
	return nil
}

// DefaultImageTag returns the image tag used for a service when no
// --tag override is given.
func DefaultImageTag(name string) string {
	return fmt.Sprintf("wsgidock/%s:latest", name)
}

// ensureDockerfile writes the generated Dockerfile and .dockerignore
// into the project directory when they are missing. Existing files are
// left alone. Returns whether a Dockerfile was generated.
func ensureDockerfile(p *project.Project) (bool, error) {
	generated := false

	if _, err := os.Stat(p.DockerfilePath()); os.IsNotExist(err) {
		content, err := dockerfile.Render(p.RenderOptions())
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(p.DockerfilePath(), content, 0644); err != nil {
			return false, fmt.Errorf("failed to write Dockerfile: %w", err)
		}
		generated = true
	}

	dockerignorePath := filepath.Join(p.Dir, ".dockerignore")
	if _, err := os.Stat(dockerignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(dockerignorePath, dockerfile.Dockerignore(), 0644); err != nil {
			return false, fmt.Errorf("failed to write .dockerignore: %w", err)
		}
	}

	return generated, nil
}

// printBuildResult outputs the build result in text or JSON format.
func printBuildResult(p *project.Project, tag, buildID string) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":    p.Name,
			"tag":     tag,
			"buildId": buildID,
			"variant": p.Variant.String(),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println()
	fmt.Printf("Built %s (build %s)\n", tag, buildID)
	fmt.Printf("Next: wsgidock run %s\n", p.Dir)
}
