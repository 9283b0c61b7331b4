package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/wsgidock/internal/model"
)

// TestParse_BasicManifest verifies parsing of a typical pinned manifest:
// comments and blank lines are dropped, names are normalized, pins are
// preserved in Raw.
func TestParse_BasicManifest(t *testing.T) {
	data := []byte(`# production dependencies
Flask==2.3.2
gunicorn==21.2.0

psycopg2-binary==2.9.7  # postgres driver
`)

	m, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, m.Requirements, 3)

	assert.Equal(t, "flask", m.Requirements[0].Name)
	assert.Equal(t, "Flask==2.3.2", m.Requirements[0].Raw)
	assert.Equal(t, "gunicorn", m.Requirements[1].Name)
	assert.Equal(t, "psycopg2-binary", m.Requirements[2].Name)
	assert.Equal(t, "psycopg2-binary==2.9.7", m.Requirements[2].Raw,
		"trailing comment should be stripped from Raw")
}

// TestParse_NameExtraction verifies that the distribution name is cut at
// the first specifier, extras bracket, marker, or direct-reference @.
func TestParse_NameExtraction(t *testing.T) {
	tests := []struct {
		line     string
		expected string
	}{
		{"Flask==2.3.2", "flask"},
		{"Flask-SQLAlchemy[asyncio]>=3.0", "flask-sqlalchemy"},
		{"requests >= 2.31", "requests"},
		{"uvicorn~=0.23", "uvicorn"},
		{"pydantic!=2.0.0", "pydantic"},
		{"typing_extensions; python_version < '3.11'", "typing-extensions"},
		{"pip-tools @ https://example.com/pip_tools.whl", "pip-tools"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			m, err := Parse([]byte(tt.line + "\n"))
			require.NoError(t, err)
			require.Len(t, m.Requirements, 1)
			assert.Equal(t, tt.expected, m.Requirements[0].Name)
		})
	}
}

// TestParse_VCSRequirements verifies detection of version-control-sourced
// requirements, including editable installs and #egg= name extraction.
func TestParse_VCSRequirements(t *testing.T) {
	data := []byte(`git+https://github.com/example/widgets.git@v1.2#egg=widgets
-e git+ssh://git@github.com/example/toolbelt.git#egg=toolbelt&subdirectory=lib
hg+https://bitbucket.org/example/oldlib
requests==2.31.0
`)

	m, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, m.Requirements, 4)

	assert.True(t, m.Requirements[0].VCS)
	assert.Equal(t, "widgets", m.Requirements[0].Name)
	assert.False(t, m.Requirements[0].Editable)

	assert.True(t, m.Requirements[1].VCS)
	assert.True(t, m.Requirements[1].Editable)
	assert.Equal(t, "toolbelt", m.Requirements[1].Name, "subdirectory param should not leak into the name")

	assert.True(t, m.Requirements[2].VCS)
	assert.Empty(t, m.Requirements[2].Name, "VCS requirement without #egg= has no name")

	assert.False(t, m.Requirements[3].VCS)
	assert.True(t, m.HasVCSRequirements())
}

// TestParse_OptionLinesSkipped verifies that pip option lines are not
// treated as requirements.
func TestParse_OptionLinesSkipped(t *testing.T) {
	data := []byte(`-r base.txt
-c constraints.txt
--index-url https://pypi.example.com/simple
Flask==2.3.2
`)

	m, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "flask", m.Requirements[0].Name)
}

// TestParse_LineContinuation verifies that backslash continuations are
// joined into a single logical requirement, as pip-compile emits for
// --hash manifests.
func TestParse_LineContinuation(t *testing.T) {
	data := []byte("Flask==2.3.2 \\\n    --hash=sha256:deadbeef\n")

	m, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, m.Requirements, 1)
	assert.Equal(t, "flask", m.Requirements[0].Name)

	// A dangling continuation at EOF is malformed.
	_, err = Parse([]byte("Flask==2.3.2 \\"))
	assert.Error(t, err)
}

// TestManifest_Requires verifies PEP 503 name normalization in lookups:
// case, hyphens, underscores, and dots are equivalent.
func TestManifest_Requires(t *testing.T) {
	m, err := Parse([]byte("Flask_SQLAlchemy==3.0\nmysqlclient==2.2.0\n"))
	require.NoError(t, err)

	assert.True(t, m.Requires("flask-sqlalchemy"))
	assert.True(t, m.Requires("Flask.SQLAlchemy"))
	assert.True(t, m.Requires("mysqlclient"))
	assert.False(t, m.Requires("pymysql"))
}

// TestManifest_DetectVariant verifies the variant selection ladder:
// mysqlclient → full, VCS requirement → vcs, plain manifest → lean.
// psycopg2 alone must NOT bump the variant — libpq is the baseline.
func TestManifest_DetectVariant(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected model.Variant
	}{
		{
			name:     "plain manifest",
			content:  "Flask==2.3.2\ngunicorn==21.2.0\n",
			expected: model.VariantLean,
		},
		{
			name:     "postgres stays lean",
			content:  "Flask==2.3.2\npsycopg2==2.9.7\n",
			expected: model.VariantLean,
		},
		{
			name:     "vcs requirement",
			content:  "Flask==2.3.2\ngit+https://github.com/example/widgets.git#egg=widgets\n",
			expected: model.VariantVCS,
		},
		{
			name:     "mysqlclient",
			content:  "Flask==2.3.2\nmysqlclient==2.2.0\n",
			expected: model.VariantFull,
		},
		{
			name:     "mysqlclient wins over vcs",
			content:  "mysqlclient==2.2.0\ngit+https://github.com/example/widgets.git#egg=widgets\n",
			expected: model.VariantFull,
		},
		{
			name:     "empty manifest",
			content:  "# nothing pinned yet\n",
			expected: model.VariantLean,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.DetectVariant())
		})
	}
}

// TestLoad verifies filesystem loading, including the ExitProjectInvalid
// mapping for a missing manifest.
func TestLoad(t *testing.T) {
	t.Run("existing manifest", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, FileName)
		require.NoError(t, os.WriteFile(path, []byte("Flask==2.3.2\n"), 0o644))

		m, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, path, m.Path)
		require.Len(t, m.Requirements, 1)
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), FileName))
		require.Error(t, err)

		cliErr, ok := err.(*model.CLIError)
		require.True(t, ok, "missing manifest should map to a CLIError")
		assert.Equal(t, model.ExitProjectInvalid, cliErr.Code)
	})
}
