// lint.go verifies the layer-cache ordering contract on Dockerfiles.
//
// The check is intentionally not a full Dockerfile parser: it classifies
// logical instructions (after joining backslash continuations) into the
// handful of steps the build contract cares about and verifies their
// relative order and presence. Hand-edited Dockerfiles that add unrelated
// instructions (LABEL, ARG, extra ENV) still pass as long as the cache
// ordering holds.
package dockerfile

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// step identifies the build-contract steps whose ordering matters.
type step int

const (
	stepFrom step = iota
	stepAptInstall
	stepCopyManifest
	stepPipInstall
	stepCopyCode
	stepCmd
	stepCount
)

// String names each step for error messages.
func (s step) String() string {
	switch s {
	case stepFrom:
		return "FROM"
	case stepAptInstall:
		return "apt-get install"
	case stepCopyManifest:
		return "COPY requirements.txt"
	case stepPipInstall:
		return "pip install"
	case stepCopyCode:
		return "COPY . (application code)"
	case stepCmd:
		return "CMD"
	default:
		return "unknown"
	}
}

// LintLayerOrder checks that a Dockerfile honors the cache-friendly
// instruction ordering:
//
//	FROM < apt install < COPY requirements.txt < pip install < COPY . < CMD
//
// Every step must be present exactly where expected relative to the
// others. Violations are reported with the offending line number.
//
// This is the machine-checkable form of the contract "application-code
// changes alone never re-install OS packages or Python dependencies".
func LintLayerOrder(content []byte) error {
	type hit struct {
		line int
	}
	seen := make(map[step]hit, stepCount)

	for _, logical := range logicalLines(content) {
		s, ok := classify(logical.text)
		if !ok {
			continue
		}
		// First occurrence wins; later duplicates (multi-stage builds,
		// a second COPY) do not move a step earlier.
		if _, dup := seen[s]; !dup {
			seen[s] = hit{line: logical.line}
		}
	}

	order := []step{stepFrom, stepAptInstall, stepCopyManifest, stepPipInstall, stepCopyCode, stepCmd}
	prevLine := 0
	for _, s := range order {
		h, ok := seen[s]
		if !ok {
			return fmt.Errorf("Dockerfile is missing the %s step", s)
		}
		if h.line < prevLine {
			return fmt.Errorf("Dockerfile line %d: %s must come after the preceding build step (layer-cache ordering)", h.line, s)
		}
		prevLine = h.line
	}

	return nil
}

// logicalLine is a physical-line-numbered logical instruction.
type logicalLine struct {
	line int
	text string
}

// logicalLines joins backslash-continued physical lines into logical
// instructions, tracking the starting line number of each.
func logicalLines(content []byte) []logicalLine {
	var out []logicalLine

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	physical := 0
	start := 0
	var joined strings.Builder
	for scanner.Scan() {
		physical++
		text := strings.TrimSpace(scanner.Text())

		if joined.Len() == 0 {
			start = physical
		}

		if strings.HasSuffix(text, `\`) {
			joined.WriteString(strings.TrimSuffix(text, `\`))
			joined.WriteByte(' ')
			continue
		}

		joined.WriteString(text)
		out = append(out, logicalLine{line: start, text: joined.String()})
		joined.Reset()
	}
	if joined.Len() > 0 {
		out = append(out, logicalLine{line: start, text: joined.String()})
	}

	return out
}

// classify maps a logical instruction to a build-contract step.
// Returns false for instructions the lint does not care about.
func classify(text string) (step, bool) {
	upper := strings.ToUpper(text)

	switch {
	case strings.HasPrefix(upper, "FROM "):
		return stepFrom, true

	case strings.HasPrefix(upper, "RUN "):
		lower := strings.ToLower(text)
		if strings.Contains(lower, "apt-get install") || strings.Contains(lower, "apk add") {
			return stepAptInstall, true
		}
		if strings.Contains(lower, "pip install") || strings.Contains(lower, "pip3 install") {
			return stepPipInstall, true
		}
		return 0, false

	case strings.HasPrefix(upper, "COPY ") || strings.HasPrefix(upper, "ADD "):
		if strings.Contains(text, "requirements.txt") {
			return stepCopyManifest, true
		}
		return stepCopyCode, true

	case strings.HasPrefix(upper, "CMD ") || strings.HasPrefix(upper, "ENTRYPOINT "):
		return stepCmd, true

	default:
		return 0, false
	}
}
