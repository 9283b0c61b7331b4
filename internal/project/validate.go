package project

import (
	"fmt"
	"os"

	"github.com/quaylabs/wsgidock/internal/dockerfile"
)

// ValidationError describes a single project contract problem found by
// Check.
type ValidationError struct {
	// Field identifies what was checked (e.g. "entrypoint",
	// "dockerfile").
	Field string

	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RenderOptions returns the Dockerfile render options for this project:
// the resolved variant and entry point, with any config overrides for
// base image and baked-in launch defaults applied.
func (p *Project) RenderOptions() dockerfile.RenderOptions {
	opts := dockerfile.RenderOptions{
		Variant:    p.Variant,
		Entrypoint: p.Entrypoint,
	}
	if p.Config != nil {
		opts.BaseImage = p.Config.BaseImage
		opts.Port = p.Config.Port
		opts.Workers = p.Config.Workers
		opts.Threads = p.Config.Threads
	}
	return opts
}

// Check runs the offline project contract checks on an inspected
// project and returns every problem found. It never touches the Docker
// daemon — the point is that a project can be validated before any
// image exists.
//
// The checks are:
//   - the entry module file exists on disk
//   - a Dockerfile rendered for the resolved variant and entry point
//     passes the layer-order lint
//   - an existing Dockerfile in the project, if any, also passes the
//     layer-order lint
func Check(p *Project) []ValidationError {
	var errs []ValidationError

	if _, err := os.Stat(p.EntryModulePath()); err != nil {
		errs = append(errs, ValidationError{
			Field: "entrypoint",
			Message: fmt.Sprintf("entry module %s not found (resolved entry point %s)",
				p.EntryModulePath(), p.Entrypoint),
		})
	}

	rendered, err := dockerfile.Render(p.RenderOptions())
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   "dockerfile",
			Message: fmt.Sprintf("cannot render Dockerfile: %v", err),
		})
	} else if lintErr := dockerfile.LintLayerOrder(rendered); lintErr != nil {
		errs = append(errs, ValidationError{
			Field:   "dockerfile",
			Message: lintErr.Error(),
		})
	}

	if existing, err := os.ReadFile(p.DockerfilePath()); err == nil {
		if lintErr := dockerfile.LintLayerOrder(existing); lintErr != nil {
			errs = append(errs, ValidationError{
				Field:   "dockerfile",
				Message: fmt.Sprintf("existing Dockerfile violates layer-cache ordering: %v", lintErr),
			})
		}
	}

	return errs
}

// CheckResult is the JSON-friendly outcome of a project check.
type CheckResult struct {
	Name       string   `json:"name"`
	Dir        string   `json:"dir"`
	Variant    string   `json:"variant"`
	Entrypoint string   `json:"entrypoint"`
	Valid      bool     `json:"valid"`
	Problems   []string `json:"problems,omitempty"`
}

// Result summarizes an inspected project and its check outcome.
func Result(p *Project, errs []ValidationError) CheckResult {
	r := CheckResult{
		Name:       p.Name,
		Dir:        p.Dir,
		Variant:    p.Variant.String(),
		Entrypoint: p.Entrypoint.String(),
		Valid:      len(errs) == 0,
	}
	for _, e := range errs {
		r.Problems = append(r.Problems, e.Error())
	}
	return r
}
