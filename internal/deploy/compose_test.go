package deploy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/quaylabs/wsgidock/internal/model"
)

func testService() *model.Service {
	return &model.Service{
		Name:        "billing-api",
		ProjectPath: "/home/user/projects/billing-api",
		ImageTag:    "wsgidock/billing-api:latest",
		Variant:     model.VariantFull,
		Launch: model.LaunchConfig{
			Port:       8080,
			Workers:    4,
			Threads:    8,
			Entrypoint: model.DefaultEntrypoint,
		},
		HostPort:  9000,
		CreatedAt: time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC),
	}
}

func TestGenerateCompose(t *testing.T) {
	env := []string{
		"WEB_CONCURRENCY=4",
		"PORT=8080",
		"PYTHONUNBUFFERED=1",
		"WEB_THREADS=8",
	}
	labels := map[string]string{
		"wsgidock.managed-by": "wsgidock",
		"wsgidock.name":       "billing-api",
	}

	data, err := GenerateCompose(testService(), env, labels)
	require.NoError(t, err)

	// Header comment warns about regeneration.
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Auto-generated by wsgidock"))
	assert.Contains(t, text, "DO NOT EDIT")

	// The YAML parses back into the expected structure.
	var parsed struct {
		Name     string `yaml:"name"`
		Services map[string]struct {
			Image       string            `yaml:"image"`
			Ports       []string          `yaml:"ports"`
			Environment []string          `yaml:"environment"`
			Labels      map[string]string `yaml:"labels"`
			Restart     string            `yaml:"restart"`
		} `yaml:"services"`
	}
	require.NoError(t, yaml.Unmarshal(data, &parsed))

	assert.Equal(t, "billing-api", parsed.Name)
	require.Contains(t, parsed.Services, "billing-api")

	svc := parsed.Services["billing-api"]
	assert.Equal(t, "wsgidock/billing-api:latest", svc.Image)
	assert.Equal(t, []string{"9000:8080"}, svc.Ports)
	assert.Equal(t, "always", svc.Restart)
	assert.Equal(t, "wsgidock", svc.Labels["wsgidock.managed-by"])

	// Environment is sorted for reproducible diffs.
	assert.Equal(t, []string{
		"PORT=8080",
		"PYTHONUNBUFFERED=1",
		"WEB_CONCURRENCY=4",
		"WEB_THREADS=8",
	}, svc.Environment)
}

func TestWriteCompose(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "deploy", "docker-compose.yml")

	data, err := GenerateCompose(testService(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, WriteCompose(outPath, data))

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, data, written)
}
