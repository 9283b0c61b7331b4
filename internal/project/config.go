// Package project locates and inspects WSGI project directories: the
// dependency manifest, the optional wsgidock.json configuration file,
// and the WSGI entry module.
//
// The configuration file supports JSONC (JSON with Comments), so this
// package uses github.com/tidwall/jsonc to strip comments before parsing
// with the standard encoding/json library. Everything in the file is
// optional — a bare project with just requirements.txt and wsgi.py is
// fully usable; the file only pins choices that detection would otherwise
// make.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/quaylabs/wsgidock/internal/model"
)

// ConfigFileName is the optional per-project configuration file.
// JSONC comments and trailing commas are allowed.
const ConfigFileName = "wsgidock.json"

// Config is the parsed wsgidock.json structure. All fields are optional;
// zero values mean "decide by detection or contract default".
type Config struct {
	// Name is the service name. Defaults to the sanitized project
	// directory name.
	Name string `json:"name,omitempty"`

	// Variant pins the Dockerfile variant (lean, vcs, full), overriding
	// manifest-based detection.
	Variant string `json:"variant,omitempty"`

	// BaseImage overrides the pinned Python runtime image.
	BaseImage string `json:"baseImage,omitempty"`

	// Entrypoint is the WSGI application object in "module:object"
	// notation. Defaults to entry-module detection, then wsgi:app.
	Entrypoint string `json:"entrypoint,omitempty"`

	// Port is the container listen port default (the PORT contract).
	Port int `json:"port,omitempty"`

	// Workers is the worker process count default (WEB_CONCURRENCY).
	Workers int `json:"workers,omitempty"`

	// Threads is the per-worker thread count default (WEB_THREADS).
	Threads int `json:"threads,omitempty"`

	// Env carries extra container environment variables. The reserved
	// runtime variables (PORT, WEB_CONCURRENCY, WEB_THREADS,
	// PYTHONUNBUFFERED) may not be set here — they have dedicated fields
	// and flags.
	Env map[string]string `json:"env,omitempty"`
}

// reservedEnv lists the environment variables owned by the launch
// contract. Projects set these through the dedicated config fields or
// flags, never through the free-form env block.
var reservedEnv = []string{"PORT", "WEB_CONCURRENCY", "WEB_THREADS", "PYTHONUNBUFFERED"}

// LoadConfig reads and parses a project's wsgidock.json.
//
// A missing file is not an error — it returns (nil, nil) because the
// configuration is entirely optional. A present-but-malformed file maps
// to ExitProjectInvalid: the user wrote configuration and it cannot be
// honored, which must not be silently ignored.
func LoadConfig(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Strip JSONC comments (// and /* */) and trailing commas before
	// parsing with the standard library.
	cleanJSON := jsonc.ToJSON(data)

	var cfg Config
	if err := json.Unmarshal(cleanJSON, &cfg); err != nil {
		return nil, model.WrapCLIError(
			model.ExitProjectInvalid,
			fmt.Sprintf("failed to parse %s", path),
			err,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(
			model.ExitProjectInvalid,
			fmt.Sprintf("invalid %s", path),
			err,
		)
	}

	return &cfg, nil
}

// Validate checks the configuration's field values. Only set fields are
// checked — the zero value always passes, preserving "everything is
// optional".
func (c *Config) Validate() error {
	if c.Name != "" {
		if err := model.ValidateName(c.Name); err != nil {
			return err
		}
	}
	if c.Variant != "" {
		if _, err := model.ParseVariant(c.Variant); err != nil {
			return err
		}
	}
	if c.Entrypoint != "" {
		if _, err := model.ParseEntrypoint(c.Entrypoint); err != nil {
			return err
		}
	}
	if c.Port != 0 && (c.Port < 1 || c.Port > 65535) {
		return fmt.Errorf("port %d out of range (1-65535)", c.Port)
	}
	if c.Workers < 0 {
		return fmt.Errorf("worker count %d must not be negative", c.Workers)
	}
	if c.Threads < 0 {
		return fmt.Errorf("thread count %d must not be negative", c.Threads)
	}
	for _, key := range reservedEnv {
		if _, ok := c.Env[key]; ok {
			return fmt.Errorf("env must not set reserved variable %s (use the dedicated field or flag)", key)
		}
	}
	return nil
}
