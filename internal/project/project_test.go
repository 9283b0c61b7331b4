package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/wsgidock/internal/model"
)

// newProjectDir builds a minimal project under t.TempDir with the given
// files. The "name" subdirectory controls the derived service name.
func newProjectDir(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestInspectMinimalProject(t *testing.T) {
	dir := newProjectDir(t, "Ticket_API", map[string]string{
		"requirements.txt": "flask==3.0.0\ngunicorn\n",
		"wsgi.py":          "from myapp import create_app\napp = create_app()\n",
	})

	p, err := Inspect(dir)
	require.NoError(t, err)

	assert.Equal(t, "ticket_api", p.Name)
	assert.Equal(t, model.VariantLean, p.Variant)
	assert.Equal(t, "wsgi:app", p.Entrypoint.String())
	assert.True(t, p.EntryDetected)
	assert.Nil(t, p.Config)
}

func TestInspectMissingManifest(t *testing.T) {
	dir := newProjectDir(t, "empty", nil)

	_, err := Inspect(dir)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitProjectInvalid, cliErr.Code)
}

func TestInspectMissingDirectory(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitProjectInvalid, cliErr.Code)
}

func TestInspectConfigPinsWin(t *testing.T) {
	dir := newProjectDir(t, "svc", map[string]string{
		"requirements.txt": "mysqlclient==2.2.0\n",
		"app.py":           "app = Flask(__name__)\n",
		ConfigFileName: `{
			"name": "orders",
			"variant": "lean",
			"entrypoint": "main:application"
		}`,
	})

	p, err := Inspect(dir)
	require.NoError(t, err)

	// mysqlclient would detect full, but the config pins lean.
	assert.Equal(t, model.VariantLean, p.Variant)
	assert.Equal(t, "orders", p.Name)
	assert.Equal(t, "main:application", p.Entrypoint.String())
	assert.False(t, p.EntryDetected, "pinned module main.py does not exist")
}

func TestInspectEntrypointDetection(t *testing.T) {
	tests := []struct {
		name         string
		files        map[string]string
		wantEntry    string
		wantDetected bool
	}{
		{
			name: "wsgi.py wins over app.py",
			files: map[string]string{
				"wsgi.py": "application = get_wsgi_application()\n",
				"app.py":  "app = Flask(__name__)\n",
			},
			wantEntry:    "wsgi:application",
			wantDetected: true,
		},
		{
			name: "app.py probed second",
			files: map[string]string{
				"app.py": "app = Flask(__name__)\n",
			},
			wantEntry:    "app:app",
			wantDetected: true,
		},
		{
			name: "main.py probed last",
			files: map[string]string{
				"main.py": "app = falcon.App()\n",
			},
			wantEntry:    "main:app",
			wantDetected: true,
		},
		{
			name: "indented assignment is not top-level",
			files: map[string]string{
				"app.py": "def make():\n    app = Flask(__name__)\n",
			},
			wantEntry:    "wsgi:app",
			wantDetected: false,
		},
		{
			name:         "no candidates falls back to wsgi:app",
			files:        map[string]string{},
			wantEntry:    "wsgi:app",
			wantDetected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{"requirements.txt": "flask\n"}
			for k, v := range tt.files {
				files[k] = v
			}
			dir := newProjectDir(t, "svc", files)

			p, err := Inspect(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEntry, p.Entrypoint.String())
			assert.Equal(t, tt.wantDetected, p.EntryDetected)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"my-service", "my-service"},
		{"My Service!", "my-service"},
		{"__pycache__", "pycache"},
		{"feature/new api", "feature-new-api"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeName(tt.in))
		})
	}
}

func TestCheck(t *testing.T) {
	t.Run("valid project has no problems", func(t *testing.T) {
		dir := newProjectDir(t, "svc", map[string]string{
			"requirements.txt": "flask\n",
			"wsgi.py":          "app = Flask(__name__)\n",
		})
		p, err := Inspect(dir)
		require.NoError(t, err)

		assert.Empty(t, Check(p))
	})

	t.Run("missing entry module reported", func(t *testing.T) {
		dir := newProjectDir(t, "svc", map[string]string{
			"requirements.txt": "flask\n",
		})
		p, err := Inspect(dir)
		require.NoError(t, err)

		errs := Check(p)
		require.Len(t, errs, 1)
		assert.Equal(t, "entrypoint", errs[0].Field)
	})

	t.Run("misordered existing Dockerfile reported", func(t *testing.T) {
		dir := newProjectDir(t, "svc", map[string]string{
			"requirements.txt": "flask\n",
			"wsgi.py":          "app = Flask(__name__)\n",
			"Dockerfile": "FROM python:3.11-slim\n" +
				"COPY . .\n" +
				"RUN apt-get update && apt-get install -y build-essential\n" +
				"COPY requirements.txt .\n" +
				"RUN pip install -r requirements.txt\n" +
				"CMD exec gunicorn wsgi:app\n",
		})
		p, err := Inspect(dir)
		require.NoError(t, err)

		errs := Check(p)
		require.Len(t, errs, 1)
		assert.Equal(t, "dockerfile", errs[0].Field)
		assert.Contains(t, errs[0].Message, "layer-cache ordering")
	})
}

func TestResult(t *testing.T) {
	dir := newProjectDir(t, "svc", map[string]string{
		"requirements.txt": "flask\n",
		"wsgi.py":          "app = Flask(__name__)\n",
	})
	p, err := Inspect(dir)
	require.NoError(t, err)

	r := Result(p, nil)
	assert.True(t, r.Valid)
	assert.Equal(t, "svc", r.Name)
	assert.Equal(t, "lean", r.Variant)
	assert.Equal(t, "wsgi:app", r.Entrypoint)
	assert.Empty(t, r.Problems)

	r = Result(p, []ValidationError{{Field: "entrypoint", Message: "missing"}})
	assert.False(t, r.Valid)
	assert.Equal(t, []string{"entrypoint: missing"}, r.Problems)
}
