// Package dockerfile renders and lints the Dockerfile variants that
// package a WSGI project.
//
// All variants share one parameterized template; the differences between
// them (the apt package set, the default worker count) are data supplied
// by model.Variant. The rendered file follows a fixed instruction order
// chosen for layer-cache efficiency:
//
//	FROM → apt install → COPY requirements.txt → pip install → COPY . → ENV → CMD
//
// so that application-code changes never invalidate the more expensive
// package-installation layers. The lint in lint.go enforces this order
// on any Dockerfile, generated or hand-edited.
package dockerfile

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/quaylabs/wsgidock/internal/model"
)

// DefaultBaseImage is the pinned Python runtime image used when the
// project does not override it.
const DefaultBaseImage = "python:3.11-slim"

// dockerfileTemplate is the single template all variants render from.
// The CMD uses shell form deliberately: $PORT, $WEB_CONCURRENCY and
// $WEB_THREADS must be expanded at container start so deploy-time
// environment overrides take effect. `exec` makes Gunicorn PID 1 so it
// receives the orchestrator's termination signals directly.
//
// `--timeout 0` disables Gunicorn's request timeout: a request is never
// killed by the process manager, no matter how long it runs. Bounding
// request duration is the application's (or the load balancer's) job.
var dockerfileTemplate = template.Must(template.New("Dockerfile").Parse(`FROM {{.BaseImage}}

ENV PYTHONUNBUFFERED=1

RUN apt-get update && apt-get install -y --no-install-recommends \
{{- range .Packages}}
    {{.}} \
{{- end}}
    && rm -rf /var/lib/apt/lists/*

WORKDIR /app

COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt

COPY . .

ENV PORT={{.Port}} \
    WEB_CONCURRENCY={{.Workers}} \
    WEB_THREADS={{.Threads}}

EXPOSE {{.Port}}

CMD exec gunicorn --bind 0.0.0.0:$PORT --workers $WEB_CONCURRENCY --threads $WEB_THREADS --timeout 0 {{.Entrypoint}}
`))

// dockerignoreContent is written alongside generated Dockerfiles. It
// keeps Python build debris, local virtualenvs, and VCS metadata out of
// the build context, which both shrinks the context upload and prevents
// spurious cache invalidation of the COPY layers.
const dockerignoreContent = `__pycache__/
*.py[cod]
*.egg-info/
.git/
.gitignore
.venv/
venv/
.env
.pytest_cache/
.mypy_cache/
Dockerfile
.dockerignore
`

// RenderOptions parameterizes a Dockerfile render. Zero values are
// filled in by Render: base image, entrypoint, port, threads, and the
// variant's worker default.
type RenderOptions struct {
	// Variant selects the apt package set and the worker-count default.
	Variant model.Variant

	// BaseImage is the FROM image tag. Defaults to DefaultBaseImage.
	BaseImage string

	// Entrypoint is the WSGI application object. Defaults to wsgi:app.
	Entrypoint model.Entrypoint

	// Port is the baked-in PORT default. Defaults to 8080. Deploy-time
	// environment overrides still win — this only sets the ENV default.
	Port int

	// Workers is the baked-in WEB_CONCURRENCY default. Defaults to the
	// variant's worker count (2 for lean/vcs, 4 for full).
	Workers int

	// Threads is the baked-in WEB_THREADS default. Defaults to 8.
	Threads int
}

// templateData is the resolved data handed to the template.
type templateData struct {
	BaseImage  string
	Packages   []string
	Port       int
	Workers    int
	Threads    int
	Entrypoint string
}

// Render produces the Dockerfile content for the given options.
// Invalid options (unknown variant, bad entrypoint) are rejected before
// rendering so a generated Dockerfile is always internally consistent.
func Render(opts RenderOptions) ([]byte, error) {
	if !opts.Variant.IsValid() {
		return nil, fmt.Errorf("cannot render Dockerfile: invalid variant %q", opts.Variant)
	}

	data := templateData{
		BaseImage: opts.BaseImage,
		Packages:  opts.Variant.SystemPackages(),
		Port:      opts.Port,
		Workers:   opts.Workers,
		Threads:   opts.Threads,
	}
	if data.BaseImage == "" {
		data.BaseImage = DefaultBaseImage
	}
	if data.Port == 0 {
		data.Port = 8080
	}
	if data.Workers == 0 {
		data.Workers = opts.Variant.DefaultWorkers()
	}
	if data.Threads == 0 {
		data.Threads = 8
	}

	ep := opts.Entrypoint
	if ep == (model.Entrypoint{}) {
		ep = model.DefaultEntrypoint
	}
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("cannot render Dockerfile: %w", err)
	}
	data.Entrypoint = ep.String()

	var buf bytes.Buffer
	if err := dockerfileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render Dockerfile template: %w", err)
	}
	return buf.Bytes(), nil
}

// Dockerignore returns the .dockerignore content written next to
// generated Dockerfiles.
func Dockerignore() []byte {
	return []byte(dockerignoreContent)
}

// DockerignorePatterns returns the ignore patterns as individual lines,
// for callers that feed them to a pattern matcher instead of writing
// the file (the build-context archiver does this when the project has
// no .dockerignore of its own).
func DockerignorePatterns() []string {
	var patterns []string
	for _, line := range strings.Split(dockerignoreContent, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
