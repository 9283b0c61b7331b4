package project

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/quaylabs/wsgidock/internal/manifest"
	"github.com/quaylabs/wsgidock/internal/model"
)

// Project is the result of inspecting a WSGI project directory: the
// loaded manifest, the optional configuration, and the resolved choices
// that downstream build and run steps consume.
type Project struct {
	// Dir is the absolute project directory path.
	Dir string

	// Name is the resolved service name (config override or sanitized
	// directory name).
	Name string

	// Config is the parsed wsgidock.json, or nil when the project has
	// none.
	Config *Config

	// Manifest is the parsed requirements.txt.
	Manifest *manifest.Manifest

	// Variant is the resolved Dockerfile variant: the config pin when
	// present, otherwise manifest-based detection.
	Variant model.Variant

	// Entrypoint is the resolved WSGI entry point: the config pin,
	// then entry-module detection, then the wsgi:app default.
	Entrypoint model.Entrypoint

	// EntryDetected reports whether the entry module was actually found
	// on disk (as opposed to falling back to the default). The check
	// command surfaces this distinction.
	EntryDetected bool
}

// entryCandidates are the module files probed for a WSGI application
// object, in precedence order.
var entryCandidates = []string{"wsgi.py", "app.py", "main.py"}

// appAssignRegex matches a top-level assignment to the conventional
// application objects, e.g. "app = Flask(__name__)" or
// "application = get_wsgi_application()". Top-level means column zero.
var appAssignRegex = regexp.MustCompile(`^(app|application)\s*=`)

// Inspect loads and resolves a project directory.
//
// The steps are:
//  1. Resolve the directory to an absolute path and verify it exists.
//  2. Load requirements.txt (required — its absence is what makes a
//     directory not a WSGI project).
//  3. Load the optional wsgidock.json.
//  4. Resolve name, variant, and entry point, config pins winning over
//     detection.
func Inspect(dir string) (*Project, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.NewCLIError(
				model.ExitProjectInvalid,
				fmt.Sprintf("project directory does not exist: %s", absDir),
			)
		}
		return nil, fmt.Errorf("failed to stat project directory: %w", err)
	}
	if !info.IsDir() {
		return nil, model.NewCLIError(
			model.ExitProjectInvalid,
			fmt.Sprintf("project path is not a directory: %s", absDir),
		)
	}

	m, err := manifest.Load(filepath.Join(absDir, manifest.FileName))
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(absDir)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Dir:      absDir,
		Config:   cfg,
		Manifest: m,
	}

	p.Name = resolveName(absDir, cfg)
	if err := model.ValidateName(p.Name); err != nil {
		return nil, model.WrapCLIError(
			model.ExitProjectInvalid,
			fmt.Sprintf("cannot derive a valid service name from %q", filepath.Base(absDir)),
			err,
		)
	}

	p.Variant = resolveVariant(m, cfg)

	p.Entrypoint, p.EntryDetected, err = resolveEntrypoint(absDir, cfg)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// EntryModulePath returns the path of the entry module file, whether or
// not it exists on disk.
func (p *Project) EntryModulePath() string {
	rel := strings.ReplaceAll(p.Entrypoint.Module, ".", string(filepath.Separator)) + ".py"
	return filepath.Join(p.Dir, rel)
}

// DockerfilePath returns the project's Dockerfile path.
func (p *Project) DockerfilePath() string {
	return filepath.Join(p.Dir, "Dockerfile")
}

// resolveName picks the service name: the config override when set,
// otherwise the sanitized base name of the project directory.
func resolveName(dir string, cfg *Config) string {
	if cfg != nil && cfg.Name != "" {
		return cfg.Name
	}
	return sanitizeName(filepath.Base(dir))
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// sanitizeName converts an arbitrary directory name into a usable
// service name: invalid runs become hyphens, and leading separators are
// trimmed so the result starts with an alphanumeric.
func sanitizeName(base string) string {
	name := invalidNameChars.ReplaceAllString(base, "-")
	name = strings.TrimLeft(name, "-_.")
	name = strings.TrimRight(name, "-")
	return strings.ToLower(name)
}

// resolveVariant picks the Dockerfile variant: config pin first, then
// manifest-based detection.
func resolveVariant(m *manifest.Manifest, cfg *Config) model.Variant {
	if cfg != nil && cfg.Variant != "" {
		// Config already validated, parse cannot fail here.
		v, _ := model.ParseVariant(cfg.Variant)
		return v
	}
	return m.DetectVariant()
}

// resolveEntrypoint picks the WSGI entry point. A config pin wins; then
// the candidate modules are probed for a top-level app object; the
// final fallback is the conventional wsgi:app.
func resolveEntrypoint(dir string, cfg *Config) (model.Entrypoint, bool, error) {
	if cfg != nil && cfg.Entrypoint != "" {
		ep, err := model.ParseEntrypoint(cfg.Entrypoint)
		if err != nil {
			return model.Entrypoint{}, false, err
		}
		// A pinned entry point counts as detected when its module file
		// exists.
		module := strings.ReplaceAll(ep.Module, ".", string(filepath.Separator)) + ".py"
		_, statErr := os.Stat(filepath.Join(dir, module))
		return ep, statErr == nil, nil
	}

	for _, candidate := range entryCandidates {
		path := filepath.Join(dir, candidate)
		object, found, err := scanForAppObject(path)
		if err != nil {
			return model.Entrypoint{}, false, err
		}
		if found {
			module := strings.TrimSuffix(candidate, ".py")
			return model.Entrypoint{Module: module, Object: object}, true, nil
		}
	}

	return model.DefaultEntrypoint, false, nil
}

// scanForAppObject checks whether a Python module file assigns a
// top-level "app" or "application" object. A missing file simply
// reports not found.
func scanForAppObject(path string) (object string, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if match := appAssignRegex.FindStringSubmatch(scanner.Text()); match != nil {
			return match[1], true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	return "", false, nil
}
