// Package cli — export.go implements the "wsgidock export" command.
//
// The export command renders a docker-compose.yml for a managed service
// so it can be handed to a Compose-based host. The compose file carries
// the same image, port binding, environment, and labels the running
// container has, and a restart policy suited to unattended hosts.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/deploy"
	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/launch"
	"github.com/quaylabs/wsgidock/internal/model"
	"github.com/quaylabs/wsgidock/internal/project"
)

// exportFlags holds the flag values for the export command.
type exportFlags struct {
	// output is the path to write the compose file to. Empty writes
	// to stdout.
	output string
}

// NewExportCommand creates the "export" cobra command.
func NewExportCommand() *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export a service as a Compose file",
		Long: `Render a docker-compose.yml for a managed service.

The generated file reproduces the service's image, port binding,
environment, and labels, with a restart policy for unattended hosts.
The service must have been run at least once, since the configuration
is read back from its container labels.

Examples:
  wsgidock export billing-api
  wsgidock export billing-api -o deploy/docker-compose.yml`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "",
		"Write the compose file to this path (default: stdout)")

	return cmd
}

// runExport is the main logic function for the export command.
func runExport(ctx context.Context, name string, flags *exportFlags) error {
	// Step 1: Connect to Docker daemon.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	// Step 2: Find the service and reconstruct its configuration.
	svc, err := docker.FindService(ctx, cli, name)
	if err != nil {
		return err
	}
	VerboseLog("Exporting service %q (image %s)", svc.Name, svc.ImageTag)

	// Step 3: Render the compose file from the service's launch config.
	content, err := deploy.GenerateCompose(svc, exportEnv(svc), docker.BuildLabels(svc))
	if err != nil {
		return err
	}

	// Step 4: Write to the output path, or stdout.
	if flags.output == "" {
		fmt.Print(string(content))
		return nil
	}

	if err := deploy.WriteCompose(flags.output, content); err != nil {
		return err
	}

	printExportResult(name, flags.output)
	return nil
}

// exportEnv reconstructs the full container environment for a service.
// Container labels carry the resolved launch values but deliberately
// omit the free-form env block from wsgidock.json, so that part is read
// back from the project on disk. An orphaned service (project directory
// gone) exports the reserved variables alone.
func exportEnv(svc *model.Service) []string {
	if cfg, err := project.LoadConfig(svc.ProjectPath); err == nil && cfg != nil {
		svc.Launch.Env = cfg.Env
	}
	return launch.ContainerEnv(svc.Launch)
}

// printExportResult outputs the export result in text or JSON format.
func printExportResult(name, path string) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":   name,
			"action": "exported",
			"path":   path,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Exported service %q to %s\n", name, path)
	fmt.Printf("Deploy with: docker compose -f %s up -d\n", path)
}
