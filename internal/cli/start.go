// Package cli — start.go implements the "wsgidock start" command.
//
// The start command restarts a previously stopped service. Before
// starting the container, it verifies that the service's published host
// port is still available. If another process has taken the port, the
// command fails with the port-bind exit code instead of starting a
// container with a broken binding.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/model"
	"github.com/quaylabs/wsgidock/internal/port"
)

// NewStartCommand creates the "start" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start a stopped service",
		Long: `Start a previously stopped service's container.

Before starting, the command verifies that the service's published
host port is still available. If the port has been taken by another
process, the command exits with the port-bind error code and reports
the conflict.

Examples:
  wsgidock start billing-api
  wsgidock start --json billing-api`,

		// Exactly one positional argument (service name) is required.
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), args[0])
		},
	}

	return cmd
}

// runStart is the main logic function for the start command.
// It finds the named service, checks host port availability, and starts
// its container.
func runStart(ctx context.Context, name string) error {
	// Step 1: Connect to Docker daemon.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	// Step 2: Find the target service.
	svc, err := docker.FindService(ctx, cli, name)
	if err != nil {
		return err
	}

	VerboseLog("Found service %q with %d container(s)", name, len(svc.Containers))

	if svc.Status == model.StatusRunning {
		printStartResult(svc, "already-running")
		return nil
	}

	// Step 3: Verify the host port is still free before starting.
	// This fails fast instead of starting a container whose binding
	// Docker would reject, or that would shadow another service.
	if svc.HostPort != 0 {
		scanner := port.NewScanner()
		if !scanner.IsPortAvailable(svc.HostPort, "tcp") {
			return model.NewCLIError(model.ExitPortBindFailed,
				fmt.Sprintf("host port %d is already in use", svc.HostPort))
		}
	}

	// Step 4: Start the service's containers.
	for _, c := range svc.Containers {
		VerboseLog("Starting container %s (%s)...", c.ContainerName, c.ContainerID[:12])
		if err := docker.StartContainer(ctx, cli, c.ContainerID); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to start container %q", c.ContainerName), err)
		}
	}

	// Step 5: Output the result.
	printStartResult(svc, "started")
	return nil
}

// printStartResult outputs the start command result in text or JSON format.
func printStartResult(svc *model.Service, action string) {
	if IsJSONOutput() {
		printStartResultJSON(svc, action)
	} else {
		printStartResultText(svc, action)
	}
}

// printStartResultJSON outputs the start result as structured JSON.
func printStartResultJSON(svc *model.Service, action string) {
	result := map[string]interface{}{
		"name":     svc.Name,
		"action":   action,
		"hostPort": svc.HostPort,
		"port":     svc.Launch.Port,
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printStartResultText outputs the start result as human-readable text.
func printStartResultText(svc *model.Service, action string) {
	if action == "already-running" {
		fmt.Printf("Service %q is already running\n", svc.Name)
		return
	}

	fmt.Printf("Started service %q\n", svc.Name)
	if svc.HostPort != 0 {
		fmt.Printf("  Address: http://localhost:%d\n", svc.HostPort)
		fmt.Printf("  Port:    %s\n", FormatServicePort(svc))
	}
}
