// Package cli — remove.go implements the "wsgidock remove" command.
//
// The remove command destroys a managed service: its containers are
// force-removed, and with --image the built image is deleted too. The
// project directory on disk is never touched.
//
// By default, the command prompts for confirmation before proceeding.
// The --force flag skips the confirmation prompt.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/model"
)

// removeFlags holds the flag values for the remove command.
type removeFlags struct {
	// force skips the interactive confirmation prompt when true.
	force bool

	// image also removes the service's built image when true.
	image bool
}

// NewRemoveCommand creates the "remove" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRemoveCommand() *cobra.Command {
	flags := &removeFlags{}

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a service",
		Long: `Remove a managed service's containers.

The project directory on disk is never touched. By default the built
image is kept so the service can be re-run quickly; pass --image to
remove it as well.

Unless --force is specified, the command prompts for confirmation.

Examples:
  wsgidock remove billing-api
  wsgidock remove --force billing-api
  wsgidock remove --image billing-api`,

		// Exactly one positional argument (service name) is required.
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), args[0], flags)
		},
	}

	// Register command-specific flags.
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove without confirmation")
	cmd.Flags().BoolVar(&flags.image, "image", false, "Also remove the built image")

	return cmd
}

// runRemove is the main logic function for the remove command.
// It finds the service, optionally prompts for confirmation, and
// removes its Docker resources.
func runRemove(ctx context.Context, name string, flags *removeFlags) error {
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

	// Step 3: Prompt for confirmation unless --force is specified.
	if !flags.force {
		confirmed, err := promptConfirmation(svc, flags.image)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitGeneralError, "operation cancelled by user")
		}
	}

	// Step 4: Remove the containers.
	// force=true handles containers that might still be running.
	for _, c := range svc.Containers {
		VerboseLog("Removing container %s (%s)...", c.ContainerName, c.ContainerID[:12])
		if err := docker.RemoveContainer(ctx, cli, c.ContainerID, true); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to remove container %q", c.ContainerName), err)
		}
	}

	// Step 5: Optionally remove the built image.
	imageRemoved := false
	if flags.image {
		VerboseLog("Removing image %s...", svc.ImageTag)
		if err := docker.RemoveImage(ctx, cli, svc.ImageTag); err != nil {
			// Image removal failure is not fatal — the containers are
			// already cleaned up. Report it and continue.
			VerboseLog("Warning: failed to remove image: %v", err)
		} else {
			imageRemoved = true
		}
	}

	// Step 6: Output the result.
	printRemoveResult(svc, len(svc.Containers), imageRemoved)
	return nil
}

// promptConfirmation asks the user to confirm the remove operation.
// It reads a single line from stdin and checks for "y" or "yes".
// Returns true if the user confirmed, false otherwise.
func promptConfirmation(svc *model.Service, removeImage bool) (bool, error) {
	fmt.Printf("About to remove service %q:\n", svc.Name)
	fmt.Printf("  - %d container(s) will be removed\n", len(svc.Containers))
	if removeImage {
		fmt.Printf("  - image %s will be removed\n", svc.ImageTag)
	}
	fmt.Print("\nContinue? [y/N] ")

	// Read a line from stdin. bufio.Scanner handles different line endings
	// across platforms (LF on Unix, CRLF on Windows).
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// If stdin is closed or an error occurred, treat it as "no".
	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, nil
}

// printRemoveResult outputs the remove command result in text or JSON format.
func printRemoveResult(svc *model.Service, containerCount int, imageRemoved bool) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":           svc.Name,
			"action":         "removed",
			"containerCount": containerCount,
			"imageRemoved":   imageRemoved,
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Removed service %q\n", svc.Name)
	fmt.Printf("  Removed %d container(s)\n", containerCount)
	if imageRemoved {
		fmt.Printf("  Removed image %s\n", svc.ImageTag)
	}
}
