// Package cli — init.go implements the "wsgidock init" command.
//
// The init command inspects a WSGI project directory and writes the
// generated Dockerfile and .dockerignore into it. The variant and base
// image are detected from requirements.txt and wsgidock.json, but can
// be overridden with flags for this one generation.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/dockerfile"
	"github.com/quaylabs/wsgidock/internal/model"
	"github.com/quaylabs/wsgidock/internal/project"
)

// initFlags holds the flag values for the init command.
type initFlags struct {
	// variant overrides the detected Dockerfile variant (lean, vcs, full).
	variant string

	// python overrides the base image (e.g. "python:3.12-slim").
	python string

	// force allows overwriting an existing Dockerfile.
	force bool
}

// NewInitCommand creates the "init" cobra command.
func NewInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Generate a Dockerfile for a WSGI project",
		Long: `Generate a Dockerfile and .dockerignore for a Python WSGI project.

The project directory must contain a requirements.txt. The Dockerfile
variant is detected from the dependencies (lean, vcs, or full) unless
pinned in wsgidock.json or overridden with --variant. The entry point
is detected by probing wsgi.py, app.py, and main.py for a top-level
app/application object.

Examples:
  wsgidock init
  wsgidock init ./billing-api
  wsgidock init --variant full --python python:3.12-slim
  wsgidock init --force`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(dir, flags)
		},
	}

	cmd.Flags().StringVar(&flags.variant, "variant", "",
		"Dockerfile variant: lean, vcs, full (default: detected)")
	cmd.Flags().StringVar(&flags.python, "python", "",
		"Base image (default: "+dockerfile.DefaultBaseImage+")")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false,
		"Overwrite an existing Dockerfile")

	return cmd
}

// runInit is the main logic function for the init command.
func runInit(dir string, flags *initFlags) error {
	// Step 1: Inspect the project (manifest, config, detection).
	p, err := project.Inspect(dir)
	if err != nil {
		return err
	}
	VerboseLog("Inspected project %s: variant=%s entrypoint=%s", p.Name, p.Variant, p.Entrypoint)

	// Step 2: Apply flag overrides on top of the detected values.
	opts := p.RenderOptions()
	if flags.variant != "" {
		v, err := model.ParseVariant(flags.variant)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --variant value", err)
		}
		opts.Variant = v
		p.Variant = v
	}
	if flags.python != "" {
		opts.BaseImage = flags.python
	}

	// Step 3: Refuse to overwrite an existing Dockerfile without --force.
	dockerfilePath := p.DockerfilePath()
	if _, err := os.Stat(dockerfilePath); err == nil && !flags.force {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("Dockerfile already exists at %s (use --force to overwrite)", dockerfilePath))
	}

	// Step 4: Render and write the Dockerfile and .dockerignore.
	content, err := dockerfile.Render(opts)
	if err != nil {
		return model.WrapCLIError(model.ExitProjectInvalid, "failed to render Dockerfile", err)
	}

	if err := os.WriteFile(dockerfilePath, content, 0644); err != nil {
		return fmt.Errorf("failed to write Dockerfile: %w", err)
	}
	VerboseLog("Wrote %s", dockerfilePath)

	dockerignorePath := filepath.Join(p.Dir, ".dockerignore")
	if _, err := os.Stat(dockerignorePath); os.IsNotExist(err) || flags.force {
		if err := os.WriteFile(dockerignorePath, dockerfile.Dockerignore(), 0644); err != nil {
			return fmt.Errorf("failed to write .dockerignore: %w", err)
		}
		VerboseLog("Wrote %s", dockerignorePath)
	}

	// Step 5: Output the result.
	printInitResult(p, opts, dockerfilePath)
	return nil
}

// printInitResult outputs the init result in text or JSON format.
func printInitResult(p *project.Project, opts dockerfile.RenderOptions, dockerfilePath string) {
	if IsJSONOutput() {
		baseImage := opts.BaseImage
		if baseImage == "" {
			baseImage = dockerfile.DefaultBaseImage
		}
		result := map[string]interface{}{
			"name":       p.Name,
			"dir":        p.Dir,
			"variant":    p.Variant.String(),
			"entrypoint": p.Entrypoint.String(),
			"baseImage":  baseImage,
			"dockerfile": dockerfilePath,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Generated Dockerfile for %q\n", p.Name)
	fmt.Printf("  Variant:    %s\n", p.Variant)
	fmt.Printf("  Entrypoint: %s", p.Entrypoint)
	if !p.EntryDetected {
		fmt.Printf(" (default, not detected)")
	}
	fmt.Println()
	fmt.Printf("  Dockerfile: %s\n", dockerfilePath)
	fmt.Println()
	fmt.Printf("Next: wsgidock build %s\n", p.Dir)
}
