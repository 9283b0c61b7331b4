package dockerfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wellOrdered is a minimal hand-written Dockerfile that honors the
// cache-friendly layer ordering.
const wellOrdered = `FROM python:3.11-slim
RUN apt-get update && apt-get install -y build-essential libpq-dev
WORKDIR /app
COPY requirements.txt .
RUN pip install -r requirements.txt
COPY . .
CMD exec gunicorn --bind 0.0.0.0:$PORT --timeout 0 wsgi:app
`

// TestLintLayerOrder_Valid verifies that a correctly ordered Dockerfile
// passes, including one with unrelated interleaved instructions.
func TestLintLayerOrder_Valid(t *testing.T) {
	assert.NoError(t, LintLayerOrder([]byte(wellOrdered)))

	withExtras := `FROM python:3.11-slim
LABEL maintainer="ops"
ARG DEBIAN_FRONTEND=noninteractive
RUN apt-get update && apt-get install -y build-essential
ENV PYTHONUNBUFFERED=1
COPY requirements.txt .
RUN pip install -r requirements.txt
COPY . .
ENV PORT=8080
CMD exec gunicorn wsgi:app --timeout 0
`
	assert.NoError(t, LintLayerOrder([]byte(withExtras)))
}

// TestLintLayerOrder_Continuations verifies that backslash-continued
// RUN instructions are classified as a single logical line.
func TestLintLayerOrder_Continuations(t *testing.T) {
	content := `FROM python:3.11-slim
RUN apt-get update && apt-get install -y --no-install-recommends \
    build-essential \
    libpq-dev \
    && rm -rf /var/lib/apt/lists/*
COPY requirements.txt .
RUN pip install --no-cache-dir \
    -r requirements.txt
COPY . .
CMD ["gunicorn"]
`
	assert.NoError(t, LintLayerOrder([]byte(content)))
}

// TestLintLayerOrder_CodeBeforeDependencies is the contract violation
// the lint exists for: copying application code before pip install makes
// every code change re-install the whole dependency set.
func TestLintLayerOrder_CodeBeforeDependencies(t *testing.T) {
	content := `FROM python:3.11-slim
RUN apt-get update && apt-get install -y build-essential
COPY . .
COPY requirements.txt .
RUN pip install -r requirements.txt
CMD exec gunicorn wsgi:app
`
	err := LintLayerOrder([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer-cache ordering")
}

// TestLintLayerOrder_PipBeforeApt verifies that installing Python
// dependencies before the native toolchain is flagged — the wheels that
// need compilation would fail to build.
func TestLintLayerOrder_PipBeforeApt(t *testing.T) {
	content := `FROM python:3.11-slim
COPY requirements.txt .
RUN pip install -r requirements.txt
RUN apt-get update && apt-get install -y build-essential
COPY . .
CMD exec gunicorn wsgi:app
`
	err := LintLayerOrder([]byte(content))
	require.Error(t, err)
}

// TestLintLayerOrder_MissingSteps verifies that each absent contract
// step is reported by name.
func TestLintLayerOrder_MissingSteps(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing string
	}{
		{
			name:    "no pip install",
			content: "FROM python:3.11-slim\nRUN apt-get install -y git\nCOPY requirements.txt .\nCOPY . .\nCMD gunicorn\n",
			missing: "pip install",
		},
		{
			name:    "no manifest copy",
			content: "FROM python:3.11-slim\nRUN apt-get install -y git\nRUN pip install flask\nCOPY . .\nCMD gunicorn\n",
			missing: "requirements.txt",
		},
		{
			name:    "no launch command",
			content: "FROM python:3.11-slim\nRUN apt-get install -y git\nCOPY requirements.txt .\nRUN pip install -r requirements.txt\nCOPY . .\n",
			missing: "CMD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LintLayerOrder([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}
