// Package launch resolves the runtime configuration for a service and
// synthesizes the Gunicorn invocation and container environment from it.
//
// Every runtime knob follows the same precedence chain:
//
//	command-line flag > process environment > project config > default
//
// where the worker-count default depends on the Dockerfile variant. The
// process environment honors the conventional variable names: PORT,
// WEB_CONCURRENCY, and WEB_THREADS.
package launch

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/quaylabs/wsgidock/internal/model"
	"github.com/quaylabs/wsgidock/internal/project"
)

// Defaults for the runtime contract when neither flag, environment, nor
// project config picks a value.
const (
	DefaultPort    = 8080
	DefaultThreads = 8
)

// Flags carries the command-line overrides. Zero means "not set" —
// the CLI never passes 0 explicitly because 0 is invalid for every
// field anyway.
type Flags struct {
	Port    int
	Workers int
	Threads int
}

// Options controls resolution. LookupEnv defaults to os.LookupEnv and
// exists so tests can inject an environment.
type Options struct {
	Flags     Flags
	LookupEnv func(string) (string, bool)
}

// Resolve computes the launch configuration for a project by walking
// the precedence chain for each field.
//
// The steps are:
//  1. Start from the defaults: port 8080, threads 8, workers per the
//     project's variant, entry point from inspection.
//  2. Overlay the project config fields that are set.
//  3. Overlay the process environment (PORT, WEB_CONCURRENCY,
//     WEB_THREADS). A variable that is set but not a valid positive
//     integer is an error, not a silent fallback.
//  4. Overlay the flags.
//  5. Validate the result.
func Resolve(p *project.Project, opts Options) (model.LaunchConfig, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := model.LaunchConfig{
		Port:       DefaultPort,
		Workers:    p.Variant.DefaultWorkers(),
		Threads:    DefaultThreads,
		Entrypoint: p.Entrypoint,
	}

	if p.Config != nil {
		if p.Config.Port != 0 {
			cfg.Port = p.Config.Port
		}
		if p.Config.Workers != 0 {
			cfg.Workers = p.Config.Workers
		}
		if p.Config.Threads != 0 {
			cfg.Threads = p.Config.Threads
		}
		if len(p.Config.Env) > 0 {
			cfg.Env = make(map[string]string, len(p.Config.Env))
			for k, v := range p.Config.Env {
				cfg.Env[k] = v
			}
		}
	}

	envOverrides := []struct {
		name   string
		target *int
	}{
		{"PORT", &cfg.Port},
		{"WEB_CONCURRENCY", &cfg.Workers},
		{"WEB_THREADS", &cfg.Threads},
	}
	for _, ov := range envOverrides {
		raw, ok := lookup(ov.name)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return model.LaunchConfig{}, fmt.Errorf("environment variable %s=%q is not a positive integer", ov.name, raw)
		}
		*ov.target = n
	}

	if opts.Flags.Port != 0 {
		cfg.Port = opts.Flags.Port
	}
	if opts.Flags.Workers != 0 {
		cfg.Workers = opts.Flags.Workers
	}
	if opts.Flags.Threads != 0 {
		cfg.Threads = opts.Flags.Threads
	}

	if err := cfg.Validate(); err != nil {
		return model.LaunchConfig{}, err
	}
	return cfg, nil
}

// GunicornArgs returns the full Gunicorn argv for a launch
// configuration. The request timeout is always disabled; the process
// manager must never kill a handler mid-request on a wall-clock limit.
func GunicornArgs(cfg model.LaunchConfig) []string {
	return []string{
		"gunicorn",
		"--bind", fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		"--workers", strconv.Itoa(cfg.Workers),
		"--threads", strconv.Itoa(cfg.Threads),
		"--timeout", "0",
		cfg.Entrypoint.String(),
	}
}

// ContainerEnv returns the container environment for a launch
// configuration as sorted KEY=value pairs. PYTHONUNBUFFERED is always
// set so log lines reach the container runtime the moment they are
// written.
func ContainerEnv(cfg model.LaunchConfig) []string {
	env := map[string]string{
		"PORT":             strconv.Itoa(cfg.Port),
		"WEB_CONCURRENCY":  strconv.Itoa(cfg.Workers),
		"WEB_THREADS":      strconv.Itoa(cfg.Threads),
		"PYTHONUNBUFFERED": "1",
	}
	for k, v := range cfg.Env {
		env[k] = v
	}

	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}
