// Package manifest parses pip dependency manifests (requirements.txt) and
// derives build requirements from them.
//
// The parser is deliberately shallow: it does not resolve versions or
// environment markers. Its only jobs are to confirm the manifest is
// readable, to normalize requirement names for lookups, and to detect the
// two properties that influence which Dockerfile variant a project needs:
//   - VCS-sourced requirements (git+https://... lines) require git in the
//     build image.
//   - mysqlclient requires the MySQL client development headers.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/quaylabs/wsgidock/internal/model"
)

// FileName is the fixed manifest file name. Both the name and the format
// are part of the build contract — pip and the generated Dockerfiles
// reference it literally.
const FileName = "requirements.txt"

// vcsPrefixes lists the version-control schemes pip recognizes in
// requirement lines. A requirement starting with any of these (optionally
// behind an -e/--editable flag) needs the VCS tool available at build time.
var vcsPrefixes = []string{"git+", "hg+", "svn+", "bzr+"}

// Requirement is a single parsed line of a requirements.txt manifest.
type Requirement struct {
	// Name is the normalized distribution name (PEP 503: lowercased,
	// runs of -, _ and . collapsed to a single hyphen). Empty for VCS
	// requirements without an #egg= fragment.
	Name string

	// Raw is the original manifest line, trimmed, with any trailing
	// comment removed.
	Raw string

	// VCS is true when the requirement is sourced from version control
	// (git+, hg+, svn+, bzr+) rather than a package index.
	VCS bool

	// Editable is true for -e/--editable requirements.
	Editable bool
}

// Manifest is a parsed requirements.txt file.
type Manifest struct {
	// Path is the absolute path the manifest was loaded from.
	// Empty when parsed from memory.
	Path string

	// Requirements holds the parsed requirement lines, in file order.
	// Option lines (-r, -c, --index-url, ...) and blank/comment lines
	// are not included.
	Requirements []Requirement
}

// Load reads and parses a requirements.txt file.
//
// A missing manifest is a fatal build-contract violation — the image
// cannot be produced without it — so it maps to ExitProjectInvalid
// rather than a generic error.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitProjectInvalid,
				fmt.Sprintf("dependency manifest not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitProjectInvalid,
			fmt.Sprintf("failed to parse %s", path),
			err,
		)
	}
	m.Path = path
	return m, nil
}

// Parse parses requirements.txt content.
//
// Handled syntax:
//   - comments (# to end of line, unless inside a URL fragment)
//   - line continuations (trailing backslash)
//   - editable installs (-e / --editable)
//   - VCS requirements (git+https://..., optionally with #egg=name)
//   - pip option lines (-r, -c, --index-url, ...), which are skipped
//
// Environment markers and extras are preserved in Raw but ignored for
// name extraction.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	// Some generated manifests (pip-compile with hashes) have very long
	// lines; raise the scanner limit well beyond the 64KiB default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var continued string
	for scanner.Scan() {
		line := scanner.Text()

		// Join continuation lines before any other processing, matching
		// pip's own handling: the backslash joins physical lines into one
		// logical requirement.
		if strings.HasSuffix(line, `\`) {
			continued += strings.TrimSuffix(line, `\`)
			continue
		}
		line = continued + line
		continued = ""

		req, ok := parseLine(line)
		if !ok {
			continue
		}
		m.Requirements = append(m.Requirements, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan manifest: %w", err)
	}
	if continued != "" {
		return nil, fmt.Errorf("manifest ends with a line continuation")
	}

	return m, nil
}

// parseLine parses a single logical requirement line. The second return
// value is false for lines that are not requirements (blank, comment,
// pip option).
func parseLine(line string) (Requirement, bool) {
	line = stripComment(strings.TrimSpace(line))
	if line == "" {
		return Requirement{}, false
	}

	req := Requirement{}

	// Editable installs: "-e <target>" or "--editable <target>".
	// The target may itself be a VCS URL or a local path.
	if rest, ok := strings.CutPrefix(line, "-e "); ok {
		req.Editable = true
		line = strings.TrimSpace(rest)
	} else if rest, ok := strings.CutPrefix(line, "--editable "); ok {
		req.Editable = true
		line = strings.TrimSpace(rest)
	} else if strings.HasPrefix(line, "-") {
		// Any other option line (-r, -c, --index-url, --hash, ...) is
		// pip configuration, not a requirement.
		return Requirement{}, false
	}

	req.Raw = line

	if isVCS(line) {
		req.VCS = true
		req.Name = normalizeName(eggFragment(line))
		return req, true
	}

	req.Name = normalizeName(distributionName(line))
	if req.Name == "" {
		return Requirement{}, false
	}
	return req, true
}

// stripComment removes a trailing "#" comment. A "#" inside a URL
// fragment (egg= markers) must survive, so only a "#" preceded by
// whitespace (or starting the line) counts as a comment.
func stripComment(line string) string {
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if idx := strings.Index(line, " #"); idx >= 0 {
		return strings.TrimSpace(line[:idx])
	}
	return line
}

// isVCS reports whether the requirement target is a version-control URL.
func isVCS(target string) bool {
	for _, prefix := range vcsPrefixes {
		if strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return false
}

// eggFragment extracts the distribution name from a VCS URL's #egg=
// fragment, e.g. "git+https://host/repo.git#egg=mypkg" → "mypkg".
// Returns "" when no fragment is present.
func eggFragment(target string) string {
	idx := strings.Index(target, "#egg=")
	if idx < 0 {
		return ""
	}
	name := target[idx+len("#egg="):]
	// Further fragment parameters (&subdirectory=...) end the name.
	if amp := strings.IndexByte(name, '&'); amp >= 0 {
		name = name[:amp]
	}
	return name
}

// distributionName extracts the bare distribution name from a standard
// requirement line by cutting at the first specifier, extras bracket,
// marker, or whitespace: "Flask-SQLAlchemy[asyncio]>=3.0 ; python_version"
// → "Flask-SQLAlchemy".
func distributionName(line string) string {
	end := strings.IndexAny(line, "[=<>!~; \t@")
	if end < 0 {
		end = len(line)
	}
	return line[:end]
}

// normalizeName applies PEP 503 name normalization: lowercase, with runs
// of hyphen, underscore, and period collapsed to a single hyphen. This
// makes Requires("Flask_SQLAlchemy") and Requires("flask-sqlalchemy")
// equivalent.
func normalizeName(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	prevSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !prevSep {
				b.WriteByte('-')
			}
			prevSep = true
			continue
		}
		prevSep = false
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}

// Requires reports whether the manifest contains a requirement with the
// given distribution name (compared after PEP 503 normalization).
func (m *Manifest) Requires(name string) bool {
	want := normalizeName(name)
	for _, req := range m.Requirements {
		if req.Name == want {
			return true
		}
	}
	return false
}

// HasVCSRequirements reports whether any requirement is sourced from
// version control, which forces git into the build image.
func (m *Manifest) HasVCSRequirements() bool {
	for _, req := range m.Requirements {
		if req.VCS {
			return true
		}
	}
	return false
}

// DetectVariant picks the smallest Dockerfile variant whose native
// package set covers this manifest:
//
//	mysqlclient present        → full
//	any VCS requirement        → vcs
//	otherwise                  → lean
//
// Note that psycopg2 does not influence the choice — every variant
// carries libpq-dev, reflecting the contract that PostgreSQL support is
// the baseline.
func (m *Manifest) DetectVariant() model.Variant {
	if m.Requires("mysqlclient") {
		return model.VariantFull
	}
	if m.HasVCSRequirements() {
		return model.VariantVCS
	}
	return model.VariantLean
}
