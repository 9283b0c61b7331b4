// Package cli — run.go implements the "wsgidock run" command.
//
// The run command builds a project's image and starts it as a managed
// container: the launch configuration is resolved through the
// flag > environment > config > default precedence chain, a host port
// is picked (or verified) before Docker is asked to bind it, and the
// container is created with the full wsgidock label set so later
// commands can rediscover the service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/launch"
	"github.com/quaylabs/wsgidock/internal/model"
	"github.com/quaylabs/wsgidock/internal/port"
	"github.com/quaylabs/wsgidock/internal/project"
)

// Host ports for services are picked from this range when --host-port
// is not given.
const (
	hostPortRangeStart = 8000
	hostPortRangeEnd   = 8999
)

// runFlags holds the flag values for the run command.
type runFlags struct {
	// port overrides the container listen port (the PORT contract).
	port int

	// hostPort pins the published host port. Zero lets the preflight
	// scanner pick a free one.
	hostPort int

	// workers overrides the Gunicorn worker count.
	workers int

	// threads overrides the per-worker thread count.
	threads int

	// replace removes an existing container for the same service
	// before starting the new one.
	replace bool

	// noCache disables the layer cache for the build step.
	noCache bool
}

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Build and run a service",
		Long: `Build the project image and start it as a managed container.

The launch configuration is resolved per field: command-line flag, then
the process environment (PORT, WEB_CONCURRENCY, WEB_THREADS), then
wsgidock.json, then the defaults (port 8080, 8 threads, workers per
variant). The host port is verified before the container starts, so a
conflict fails fast instead of leaving a dead container behind.

Examples:
  wsgidock run
  wsgidock run ./billing-api --host-port 9000
  wsgidock run --workers 4 --threads 16 --replace`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runRun(cmd.Context(), dir, flags)
		},
	}

	cmd.Flags().IntVarP(&flags.port, "port", "p", 0,
		"Container listen port (default: resolved PORT)")
	cmd.Flags().IntVar(&flags.hostPort, "host-port", 0,
		"Host port to publish (default: first free port in 8000-8999)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0,
		"Gunicorn worker count (default: resolved WEB_CONCURRENCY)")
	cmd.Flags().IntVar(&flags.threads, "threads", 0,
		"Threads per worker (default: resolved WEB_THREADS)")
	cmd.Flags().BoolVar(&flags.replace, "replace", false,
		"Replace an existing container for this service")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false,
		"Build without using the layer cache")

	return cmd
}

// runRun is the main logic function for the run command.
func runRun(ctx context.Context, dir string, flags *runFlags) error {
	// Step 1: Inspect the project and resolve the launch configuration.
	p, err := project.Inspect(dir)
	if err != nil {
		return err
	}

	cfg, err := launch.Resolve(p, launch.Options{
		Flags: launch.Flags{
			Port:    flags.port,
			Workers: flags.workers,
			Threads: flags.threads,
		},
	})
	if err != nil {
		return err
	}
	VerboseLog("Resolved launch config: port=%d workers=%d threads=%d entrypoint=%s",
		cfg.Port, cfg.Workers, cfg.Threads, cfg.Entrypoint)

	// Step 2: Pick or verify the host port before touching Docker.
	hostPort, err := resolveHostPort(flags.hostPort)
	if err != nil {
		return err
	}
	VerboseLog("Publishing host port %d", hostPort)

	// Step 3: Connect to Docker.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	// Step 4: Build the image and start the container.
	var output io.Writer
	if !IsJSONOutput() {
		output = os.Stdout
	}
	svc, err := deployService(ctx, cli, p, cfg, hostPort, deployOptions{
		replace: flags.replace,
		noCache: flags.noCache,
		output:  output,
	})
	if err != nil {
		return err
	}

	// Step 5: Output the result.
	printRunResult(svc)
	return nil
}

// resolveHostPort verifies a pinned host port is free, or picks one
// from the default range when unpinned. Both failures map to
// ExitPortBindFailed so scripts can distinguish them from Docker
// errors.
func resolveHostPort(pinned int) (int, error) {
	scanner := port.NewScanner()

	if pinned != 0 {
		if !scanner.IsPortAvailable(pinned, "tcp") {
			return 0, model.NewCLIError(model.ExitPortBindFailed,
				fmt.Sprintf("host port %d is already in use", pinned))
		}
		return pinned, nil
	}

	free, err := scanner.FindAvailablePort(hostPortRangeStart, hostPortRangeEnd, "tcp")
	if err != nil {
		return 0, model.WrapCLIError(model.ExitPortBindFailed,
			fmt.Sprintf("no free host port in range %d-%d", hostPortRangeStart, hostPortRangeEnd), err)
	}
	return free, nil
}

// deployOptions controls a deployService call.
type deployOptions struct {
	// replace removes existing containers for the service first.
	replace bool

	// noCache disables the build layer cache.
	noCache bool

	// output receives the build progress stream. Nil discards it.
	output io.Writer
}

// deployService builds the project image and starts a container for it.
// It is shared by the run and watch commands; watch calls it with
// replace set on every rebuild.
func deployService(ctx context.Context, cli *docker.Client, p *project.Project,
	cfg model.LaunchConfig, hostPort int, opts deployOptions) (*model.Service, error) {

	if _, err := ensureDockerfile(p); err != nil {
		return nil, err
	}

	tag := DefaultImageTag(p.Name)
	buildID, err := docker.BuildImage(ctx, cli, p.Dir, docker.BuildOptions{
		Tag:     tag,
		NoCache: opts.noCache,
		Labels: map[string]string{
			docker.LabelName:        p.Name,
			docker.LabelProjectPath: p.Dir,
			docker.LabelVariant:     p.Variant.String(),
		},
		Output: opts.output,
	})
	if err != nil {
		return nil, err
	}

	if opts.replace {
		if err := removeServiceContainers(ctx, cli, p.Name); err != nil {
			return nil, err
		}
	}

	svc := &model.Service{
		Name:        p.Name,
		ProjectPath: p.Dir,
		ImageTag:    tag,
		Variant:     p.Variant,
		Status:      model.StatusRunning,
		Launch:      cfg,
		HostPort:    hostPort,
		CreatedAt:   time.Now().UTC(),
	}

	containerID, err := docker.RunServiceContainer(ctx, cli, svc, launch.ContainerEnv(cfg))
	if err != nil {
		return nil, err
	}
	VerboseLog("Started container %s (build %s)", containerID, buildID)

	svc.Containers = []model.ContainerInfo{{
		ContainerID:   containerID,
		ContainerName: svc.Name,
		ImageTag:      tag,
		Status:        "running",
	}}
	return svc, nil
}

// removeServiceContainers force-removes every container belonging to
// the named service. Missing services are not an error here — replace
// is a best-effort cleanup, not a lookup.
func removeServiceContainers(ctx context.Context, cli *docker.Client, name string) error {
	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err
	}
	for _, c := range containers {
		if c.Labels[docker.LabelName] != name {
			continue
		}
		VerboseLog("Removing container %s", c.ContainerID)
		if err := docker.RemoveContainer(ctx, cli, c.ContainerID, true); err != nil {
			return err
		}
	}
	return nil
}

// printRunResult outputs the run result in text or JSON format.
func printRunResult(svc *model.Service) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(svc, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println()
	fmt.Printf("Service %q is running\n", svc.Name)
	fmt.Printf("  Image:       %s\n", svc.ImageTag)
	fmt.Printf("  Address:     http://localhost:%d\n", svc.HostPort)
	fmt.Printf("  Port:        %s\n", FormatServicePort(svc))
	fmt.Printf("  Concurrency: %d workers × %d threads\n", svc.Launch.Workers, svc.Launch.Threads)
	fmt.Printf("  Command:     %s\n", strings.Join(launch.GunicornArgs(svc.Launch), " "))
	fmt.Println()
	fmt.Printf("Stop with: wsgidock stop %s\n", svc.Name)
}
