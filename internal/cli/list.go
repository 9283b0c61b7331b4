// Package cli — list.go implements the "wsgidock list" command.
//
// The list command displays all managed services by querying Docker for
// containers with the "wsgidock.managed-by=wsgidock" label. Containers
// are grouped by service name and presented as a text table or JSON
// array, depending on the --json flag.
//
// An optional --status flag allows filtering by service lifecycle state
// (running, stopped, orphaned, or all). The --images flag switches to
// listing built images with their sizes instead of services.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/model"
)

// listFlags holds the flag values for the list command.
// These are bound to cobra flags in NewListCommand.
type listFlags struct {
	// status filters services by their lifecycle state.
	// Valid values: "running", "stopped", "orphaned", "all" (default).
	status string

	// images switches to listing built images instead of services.
	images bool
}

// NewListCommand creates the "list" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List managed services",
		Long: `List all managed services and their status.

Each service is shown with its name, lifecycle status, Dockerfile variant,
published port, and image reference.

Examples:
  wsgidock list
  wsgidock list --status running
  wsgidock list --images
  wsgidock list --json`,

		// No positional arguments are required for the list command.
		Args: cobra.NoArgs,

		// RunE returns an error to the root command's error handler.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), flags)
		},
	}

	// Register the --status flag with a default value of "all".
	cmd.Flags().StringVar(&flags.status, "status", "all",
		"Filter by status: running, stopped, orphaned, all (default: all)")
	cmd.Flags().BoolVar(&flags.images, "images", false,
		"List built images instead of services")

	return cmd
}

// runList is the main logic function for the list command.
// It connects to Docker, discovers managed services, applies the
// status filter, and outputs results in the appropriate format.
func runList(ctx context.Context, flags *listFlags) error {
	// Step 1: Validate the --status flag value.
	statusFilter := flags.status
	if statusFilter != "all" {
		if _, err := model.ParseServiceStatus(statusFilter); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid status filter %q: valid values are running, stopped, orphaned, all", statusFilter), nil)
		}
	}

	// Step 2: Connect to Docker and verify the daemon is available.
	cli, err := docker.NewClient()
	if err != nil {
		return err // NewClient already returns CLIError with ExitDockerNotRunning
	}
	// defer ensures the Docker client is closed when this function returns,
	// releasing the underlying HTTP connection and resources.
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	if flags.images {
		return runListImages(ctx, cli)
	}

	// Step 3: List all managed services, reconstructed from labels.
	services, err := docker.ListServices(ctx, cli)
	if err != nil {
		return err
	}
	VerboseLog("Found %d managed services", len(services))

	// Step 4: Sort services alphabetically by name for consistent output.
	sort.Slice(services, func(i, j int) bool {
		return services[i].Name < services[j].Name
	})

	// Step 5: Apply the --status filter if specified.
	if statusFilter != "all" {
		filtered := make([]*model.Service, 0, len(services))
		for _, svc := range services {
			if svc.Status.String() == statusFilter {
				filtered = append(filtered, svc)
			}
		}
		services = filtered
	}

	// Step 6: Output results in the appropriate format.
	printListResult(services)
	return nil
}

// runListImages lists built images with human-readable sizes.
func runListImages(ctx context.Context, cli *docker.Client) error {
	images, err := docker.ListManagedImages(ctx, cli)
	if err != nil {
		return err
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Tag < images[j].Tag
	})

	if IsJSONOutput() {
		result := map[string]interface{}{"images": images}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(images) == 0 {
		fmt.Println("No managed images found.")
		return nil
	}

	fmt.Printf("%-40s %-10s %s\n", "TAG", "SIZE", "BUILD ID")
	for _, img := range images {
		fmt.Printf("%-40s %-10s %s\n", img.Tag, img.Size, img.BuildID)
	}
	return nil
}

// printListResult outputs the list of services in text or JSON format,
// depending on the global --json flag.
func printListResult(services []*model.Service) {
	if IsJSONOutput() {
		printListResultJSON(services)
	} else {
		printListResultText(services)
	}
}

// listServiceJSON is the JSON output structure for a single service in
// the list command.
type listServiceJSON struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Variant     string `json:"variant"`
	ImageTag    string `json:"imageTag"`
	ProjectPath string `json:"projectPath"`
	Port        int    `json:"port"`
	HostPort    int    `json:"hostPort"`
	Workers     int    `json:"workers"`
	Threads     int    `json:"threads"`
}

// printListResultJSON outputs the service list as structured JSON.
// The top-level key is "services" containing an array of service objects.
func printListResultJSON(services []*model.Service) {
	type resultJSON struct {
		Services []listServiceJSON `json:"services"`
	}

	result := resultJSON{
		// Use an empty slice instead of nil to ensure JSON output shows []
		// instead of null when no services are found.
		Services: make([]listServiceJSON, 0, len(services)),
	}

	for _, svc := range services {
		result.Services = append(result.Services, listServiceJSON{
			Name:        svc.Name,
			Status:      svc.Status.String(),
			Variant:     svc.Variant.String(),
			ImageTag:    svc.ImageTag,
			ProjectPath: svc.ProjectPath,
			Port:        svc.Launch.Port,
			HostPort:    svc.HostPort,
			Workers:     svc.Launch.Workers,
			Threads:     svc.Launch.Threads,
		})
	}

	// MarshalIndent produces human-readable JSON with 2-space indentation.
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printListResultText outputs the service list as a human-readable
// text table with aligned columns.
//
// The table format is:
//
//	NAME           STATUS    VARIANT  PORT            IMAGE
//	billing-api    running   full     9000 → 8080/tcp wsgidock/billing-api:latest
//	orders-api     stopped   lean     -               wsgidock/orders-api:latest
func printListResultText(services []*model.Service) {
	if len(services) == 0 {
		fmt.Println("No services found.")
		return
	}

	// Print header row.
	fmt.Printf("%-20s %-10s %-8s %-18s %s\n",
		"NAME", "STATUS", "VARIANT", "PORT", "IMAGE")

	for _, svc := range services {
		fmt.Printf("%-20s %-10s %-8s %-18s %s\n",
			svc.Name,
			svc.Status.String(),
			svc.Variant.String(),
			FormatServicePort(svc),
			svc.ImageTag,
		)
	}
}

// FormatServicePort renders a service's port binding for table display.
// Running services show "hostPort → containerPort/tcp"; services that
// have never published a port show "-".
//
// This function is exported for testing purposes (tested in list_test.go).
func FormatServicePort(svc *model.Service) string {
	if svc.HostPort == 0 {
		return "-"
	}
	binding := model.PortBinding{
		ContainerPort: svc.Launch.Port,
		HostPort:      svc.HostPort,
	}
	return binding.String()
}
