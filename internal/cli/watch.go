// Package cli — watch.go implements the "wsgidock watch" command.
//
// The watch command is the edit-rebuild-rerun loop: it deploys the
// service, then monitors the project directory and rebuilds and
// replaces the container whenever source files change. File events are
// debounced so an editor save burst triggers one rebuild, not ten.
//
// A failed rebuild leaves the previous container running and keeps
// watching; the loop only exits on interrupt.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quaylabs/wsgidock/internal/docker"
	"github.com/quaylabs/wsgidock/internal/dockerfile"
	"github.com/quaylabs/wsgidock/internal/launch"
	"github.com/quaylabs/wsgidock/internal/model"
	"github.com/quaylabs/wsgidock/internal/project"
	"github.com/quaylabs/wsgidock/internal/watcher"
)

// watchFlags holds the flag values for the watch command.
type watchFlags struct {
	// port overrides the container listen port.
	port int

	// hostPort pins the published host port across rebuilds.
	hostPort int

	// workers overrides the Gunicorn worker count.
	workers int

	// threads overrides the per-worker thread count.
	threads int

	// debounce is the quiet period after the last file event before a
	// rebuild fires, in milliseconds.
	debounce int
}

// NewWatchCommand creates the "watch" cobra command.
func NewWatchCommand() *cobra.Command {
	flags := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Run a service and rebuild on file changes",
		Long: `Run the service and rebuild it whenever project files change.

The project is deployed like "wsgidock run --replace", then the
directory is watched recursively. When source files change, the image
is rebuilt and the container replaced; the host port stays stable
across rebuilds. Generated noise (.git, __pycache__, virtualenvs) is
ignored.

A failed rebuild keeps the previous container running. Press Ctrl-C
to stop watching; the service keeps running.

Examples:
  wsgidock watch
  wsgidock watch ./billing-api --host-port 9000`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runWatch(cmd.Context(), dir, flags)
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
	cmd.Flags().IntVar(&flags.debounce, "debounce", 0,
		"Debounce interval in milliseconds (default: 500)")

	return cmd
}

// runWatch is the main logic function for the watch command.
func runWatch(ctx context.Context, dir string, flags *watchFlags) error {
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

	// Step 2: Pick the host port once. It stays stable across rebuilds
	// so clients do not have to chase a moving address.
	hostPort, err := resolveHostPort(flags.hostPort)
	if err != nil {
		return err
	}

	// Step 3: Connect to Docker.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	// Step 4: Initial deploy, replacing any previous container.
	var output io.Writer
	if !IsJSONOutput() {
		output = os.Stdout
	}
	svc, err := deployService(ctx, cli, p, cfg, hostPort, deployOptions{
		replace: true,
		output:  output,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Service %q running at http://localhost:%d — watching %s\n",
		svc.Name, svc.HostPort, p.Dir)

	// Step 5: Watch the project directory and redeploy on changes.
	// The debounce loop runs handlers sequentially, so rebuilds never
	// overlap. A rebuild failure is reported and the previous container
	// stays up.
	rebuild := func(paths []string) {
		fmt.Printf("\nDetected %d change(s), rebuilding %q...\n", len(paths), p.Name)

		// Re-inspect so config and variant changes are picked up too.
		fresh, err := project.Inspect(p.Dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rebuild skipped: %v\n", err)
			return
		}
		freshCfg, err := launch.Resolve(fresh, launch.Options{
			Flags: launch.Flags{
				Port:    flags.port,
				Workers: flags.workers,
				Threads: flags.threads,
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "rebuild skipped: %v\n", err)
			return
		}

		if _, err := deployService(ctx, cli, fresh, freshCfg, hostPort, deployOptions{
			replace: true,
			output:  output,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "rebuild failed (previous container still running): %v\n", err)
			return
		}
		fmt.Printf("Service %q redeployed at http://localhost:%d\n", fresh.Name, hostPort)
	}

	opts := watcher.Options{
		ExtraIgnores: watchIgnores(p.Dir),
	}
	if flags.debounce > 0 {
		opts.Debounce = time.Duration(flags.debounce) * time.Millisecond
	}
	w, err := watcher.New(p.Dir, rebuild, opts)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to create file watcher", err)
	}

	// Step 6: Block until interrupted. Stopping the watch leaves the
	// service running.
	watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Start(watchCtx); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to start file watcher", err)
	}
	defer w.Stop()

	<-watchCtx.Done()
	fmt.Printf("\nStopped watching. Service %q is still running.\n", p.Name)
	return nil
}

// watchIgnores returns the extra ignore patterns for the watch loop:
// the project's .dockerignore entries when present, otherwise the
// generated defaults. A path the image never contains cannot change the
// image, so it must not trigger a rebuild.
//
// The Dockerfile and .dockerignore themselves are exempted — the
// generated ignore file lists them (they stay out of the image), but
// editing either one absolutely changes the next build.
func watchIgnores(projectDir string) []string {
	patterns := dockerfile.DockerignorePatterns()

	if data, err := os.ReadFile(filepath.Join(projectDir, ".dockerignore")); err == nil {
		patterns = nil
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, line)
		}
	}

	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		// The watcher matches base names; directory patterns like
		// "__pycache__/" lose their trailing slash.
		p = strings.Trim(p, "/")
		if p == "" || p == "Dockerfile" || p == ".dockerignore" {
			continue
		}
		result = append(result, p)
	}
	return result
}
