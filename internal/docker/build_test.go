package docker

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/wsgidock/internal/dockerfile"
)

// writeProjectFiles lays out a fake project directory for build-context
// tests.
func writeProjectFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// tarEntries reads every entry name from a tar stream.
func tarEntries(t *testing.T, r io.Reader) []string {
	t.Helper()
	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	return names
}

func TestTarBuildContext_IncludesProjectFiles(t *testing.T) {
	dir := t.TempDir()
	writeProjectFiles(t, dir, map[string]string{
		"requirements.txt": "flask\n",
		"wsgi.py":          "app = Flask(__name__)\n",
		"pkg/views.py":     "def index(): pass\n",
	})

	matcher, err := loadDockerignore(dir)
	require.NoError(t, err)

	ctx, err := tarBuildContext(dir, matcher, "Dockerfile")
	require.NoError(t, err)

	names := tarEntries(t, ctx)
	assert.Contains(t, names, "requirements.txt")
	assert.Contains(t, names, "wsgi.py")
	assert.Contains(t, names, "pkg/")
	assert.Contains(t, names, "pkg/views.py")
}

func TestTarBuildContext_AlwaysIncludesDockerfile(t *testing.T) {
	// The generated .dockerignore excludes Dockerfile and .dockerignore
	// from the image; the build context must carry them anyway or the
	// daemon has nothing to build from.
	dir := t.TempDir()
	writeProjectFiles(t, dir, map[string]string{
		".dockerignore":    string(dockerfile.Dockerignore()),
		"Dockerfile":       "FROM python:3.11-slim\n",
		"requirements.txt": "flask\n",
		"wsgi.py":          "app = Flask(__name__)\n",
	})

	matcher, err := loadDockerignore(dir)
	require.NoError(t, err)
	require.True(t, matcher.MatchesPath("Dockerfile"), "fixture must actually ignore the Dockerfile")

	ctx, err := tarBuildContext(dir, matcher, "Dockerfile")
	require.NoError(t, err)

	names := tarEntries(t, ctx)
	assert.Contains(t, names, "Dockerfile")
	assert.Contains(t, names, ".dockerignore")
	assert.Contains(t, names, "requirements.txt")
	assert.Contains(t, names, "wsgi.py")
}

func TestTarBuildContext_HonorsDockerignore(t *testing.T) {
	dir := t.TempDir()
	writeProjectFiles(t, dir, map[string]string{
		".dockerignore":                    "__pycache__/\n*.pyc\n.venv/\n\n# comment line\n",
		"requirements.txt":                 "flask\n",
		"wsgi.py":                          "app = Flask(__name__)\n",
		"app.pyc":                          "bytecode",
		"__pycache__/wsgi.cpython-311.pyc": "bytecode",
		".venv/bin/python":                 "binary",
		".git/HEAD":                        "ref: refs/heads/main",
	})

	matcher, err := loadDockerignore(dir)
	require.NoError(t, err)

	ctx, err := tarBuildContext(dir, matcher, "Dockerfile")
	require.NoError(t, err)

	names := tarEntries(t, ctx)
	assert.Contains(t, names, "wsgi.py")
	assert.NotContains(t, names, "app.pyc")
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, "__pycache__"), "pycache should be excluded: %s", name)
		assert.False(t, strings.HasPrefix(name, ".venv"), "virtualenv should be excluded: %s", name)
		assert.False(t, strings.HasPrefix(name, ".git"), ".git is always excluded: %s", name)
	}
}

func TestConsumeBuildStream(t *testing.T) {
	t.Run("forwards progress and ends on EOF", func(t *testing.T) {
		stream := `{"stream":"Step 1/8 : FROM python:3.11-slim\n"}
{"stream":" ---> abc123\n"}
{"stream":"Successfully built abc123\n"}
`
		var out strings.Builder
		err := consumeBuildStream(strings.NewReader(stream), &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Step 1/8")
		assert.Contains(t, out.String(), "Successfully built")
	})

	t.Run("surfaces daemon build errors", func(t *testing.T) {
		stream := `{"stream":"Step 4/8 : RUN pip install --no-cache-dir -r requirements.txt\n"}
{"errorDetail":{"message":"The command '/bin/sh -c pip install --no-cache-dir -r requirements.txt' returned a non-zero code: 1"},"error":"pip install failed"}
`
		err := consumeBuildStream(strings.NewReader(stream), io.Discard)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-zero code")
	})

	t.Run("rejects malformed stream", func(t *testing.T) {
		err := consumeBuildStream(strings.NewReader("not json"), io.Discard)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed")
	})
}

func TestLoadDockerignore_MissingFile(t *testing.T) {
	matcher, err := loadDockerignore(t.TempDir())
	require.NoError(t, err)

	// .git is always excluded even without a .dockerignore.
	assert.True(t, matcher.MatchesPath(".git/HEAD"))
	assert.False(t, matcher.MatchesPath("wsgi.py"))
}
