// Package cli — stop.go implements the "wsgidock stop" command.
//
// The stop command gracefully stops a named service's containers. Docker
// delivers SIGTERM, which Gunicorn handles by draining in-flight
// requests before its workers exit.
//
// Stopping preserves the container and its configuration, so the
// service can be restarted later with the "start" command.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/model"
)

// NewStopCommand creates the "stop" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a service",
		Long: `Stop a managed service's container.

The container is gracefully stopped but not removed. SIGTERM lets
Gunicorn drain in-flight requests before shutting down. The image and
configuration are preserved, and the service can be restarted later
with the "start" command.

Examples:
  wsgidock stop billing-api
  wsgidock stop --json billing-api`,

		// Exactly one positional argument (service name) is required.
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), args[0])
		},
	}

	return cmd
}

// runStop is the main logic function for the stop command.
func runStop(ctx context.Context, name string) error {
	// Step 1: Connect to Docker daemon.
	cli, err := docker.NewClient()
	if err != nil {
		return err // NewClient already returns CLIError with ExitDockerNotRunning
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	// Step 2: Find the target service by its labels.
	svc, err := docker.FindService(ctx, cli, name)
	if err != nil {
		return err
	}

	VerboseLog("Found service %q with %d container(s)", name, len(svc.Containers))

	// Step 3: Stop each container. Docker's SIGTERM triggers Gunicorn's
	// graceful worker drain before the stop timeout escalates to SIGKILL.
	for _, c := range svc.Containers {
		VerboseLog("Stopping container %s (%s)...", c.ContainerName, c.ContainerID[:12])
		if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to stop container %q", c.ContainerName), err)
		}
	}

	// Step 4: Output the result.
	printStopResult(name, len(svc.Containers))
	return nil
}

// printStopResult outputs the stop command result in text or JSON format.
func printStopResult(name string, containerCount int) {
	if IsJSONOutput() {
		printStopResultJSON(name, containerCount)
	} else {
		printStopResultText(name, containerCount)
	}
}

// printStopResultJSON outputs the stop result as structured JSON.
func printStopResultJSON(name string, containerCount int) {
	result := map[string]interface{}{
		"name":           name,
		"action":         "stopped",
		"containerCount": containerCount,
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printStopResultText outputs the stop result as human-readable text.
func printStopResultText(name string, containerCount int) {
	fmt.Printf("Stopped service %q (%d container(s))\n", name, containerCount)
}
