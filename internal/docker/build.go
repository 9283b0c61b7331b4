// build.go implements image building for the wsgidock CLI: packing the
// project directory into a tar build context (honoring .dockerignore)
// and streaming the daemon's build output.
package docker

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-units"
	"github.com/google/uuid"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/quaylabs/wsgidock/internal/model"
)

// BuildOptions controls an image build.
type BuildOptions struct {
	// Tag is the image reference to apply (e.g. "wsgidock/billing-api:latest").
	Tag string

	// Dockerfile is the path of the Dockerfile within the build context.
	// Defaults to "Dockerfile".
	Dockerfile string

	// NoCache disables the daemon's layer cache.
	NoCache bool

	// Labels are extra labels applied to the built image, in addition to
	// the management and build-id labels this function always sets.
	Labels map[string]string

	// Output receives the daemon's build progress stream. Nil discards it.
	Output io.Writer
}

// BuildImage builds a service image from a project directory.
//
// The steps are:
//  1. Assign a fresh build ID (UUID) that is stamped on the image as a
//     label, so any container can be traced back to the build that
//     produced its image.
//  2. Pack the project directory into a tar build context, excluding
//     paths matched by the project's .dockerignore (plus .git, always).
//  3. Submit the context to the daemon via ImageBuild.
//  4. Stream the build output, watching for an error message — the HTTP
//     call succeeds even when a build step fails, so the stream is the
//     only place the failure shows up.
//
// Returns the build ID. Build failures map to ExitBuildFailed; transport
// failures to ExitDockerNotRunning.
func BuildImage(ctx context.Context, cli *Client, projectDir string, opts BuildOptions) (string, error) {
	buildID := uuid.NewString()

	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	matcher, err := loadDockerignore(projectDir)
	if err != nil {
		return "", err
	}

	buildCtx, err := tarBuildContext(projectDir, matcher, dockerfile)
	if err != nil {
		return "", err
	}

	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelBuildID:   buildID,
	}
	for k, v := range opts.Labels {
		labels[k] = v
	}

	resp, err := cli.Inner().ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{opts.Tag},
		Dockerfile: dockerfile,
		NoCache:    opts.NoCache,
		Remove:     true,
		Labels:     labels,
	})
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to submit image build to Docker daemon",
			err,
		)
	}
	defer resp.Body.Close()

	if err := consumeBuildStream(resp.Body, opts.Output); err != nil {
		return "", model.WrapCLIError(
			model.ExitBuildFailed,
			fmt.Sprintf("image build failed for %s", opts.Tag),
			err,
		)
	}

	return buildID, nil
}

// buildMessage is the subset of the daemon's build stream messages we
// care about: progress text and the terminal error record.
type buildMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// consumeBuildStream reads the newline-delimited JSON build stream,
// forwarding progress text to out and returning an error when the daemon
// reports a failed build step.
func consumeBuildStream(r io.Reader, out io.Writer) error {
	dec := json.NewDecoder(r)
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("malformed build output stream: %w", err)
		}

		if msg.Error != "" {
			detail := msg.ErrorDetail.Message
			if detail == "" {
				detail = msg.Error
			}
			return fmt.Errorf("%s", detail)
		}

		if out != nil && msg.Stream != "" {
			fmt.Fprint(out, msg.Stream)
		}
	}
}

// loadDockerignore compiles the project's .dockerignore into a matcher.
// A missing file yields a matcher over just the always-excluded paths.
func loadDockerignore(projectDir string) (*ignore.GitIgnore, error) {
	// .git never belongs in a build context regardless of .dockerignore.
	lines := []string{".git"}

	f, err := os.Open(filepath.Join(projectDir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return ignore.CompileIgnoreLines(lines...), nil
		}
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}

	return ignore.CompileIgnoreLines(lines...), nil
}

// tarBuildContext packs a project directory into an in-memory tar
// archive, skipping paths the matcher excludes. The named Dockerfile
// and the .dockerignore itself are always included even when the
// ignore patterns match them — the daemon needs the Dockerfile to
// build at all, and the Docker CLI makes the same exception.
//
// The archive is built in memory rather than streamed because WSGI
// project contexts are small (source files, not data) once the ignore
// patterns strip virtualenvs and caches.
func tarBuildContext(projectDir string, matcher *ignore.GitIgnore, dockerfile string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	dockerfileRel := filepath.ToSlash(dockerfile)

	err := filepath.WalkDir(projectDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		forced := filepath.ToSlash(rel) == dockerfileRel || rel == ".dockerignore"
		if !forced && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		// Symlinks are skipped: the daemon rejects links pointing outside
		// the context, and WSGI projects have no legitimate use for them
		// in an image.
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		// Tar paths are always forward-slashed, regardless of host OS.
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize build context: %w", err)
	}
	return &buf, nil
}

// ImageSummary describes a managed image for CLI display.
type ImageSummary struct {
	Tag       string `json:"tag"`
	ID        string `json:"id"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"sizeBytes"`
	BuildID   string `json:"buildId,omitempty"`
}

// ListManagedImages lists all images built by the wsgidock CLI, with
// human-readable sizes.
func ListManagedImages(ctx context.Context, cli *Client) ([]ImageSummary, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	images, err := cli.Inner().ImageList(ctx, image.ListOptions{
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker images",
			err,
		)
	}

	result := make([]ImageSummary, 0, len(images))
	for _, img := range images {
		tag := "<none>"
		if len(img.RepoTags) > 0 {
			tag = img.RepoTags[0]
		}
		result = append(result, ImageSummary{
			Tag:       tag,
			ID:        img.ID,
			Size:      units.HumanSize(float64(img.Size)),
			SizeBytes: img.Size,
			BuildID:   img.Labels[LabelBuildID],
		})
	}
	return result, nil
}

// RemoveImage deletes an image by reference. Child containers must be
// removed first; this does not force-untag images other references
// still point at.
func RemoveImage(ctx context.Context, cli *Client, ref string) error {
	_, err := cli.Inner().ImageRemove(ctx, ref, image.RemoveOptions{
		PruneChildren: true,
	})
	if err != nil {
		return fmt.Errorf("failed to remove image %s: %w", ref, err)
	}
	return nil
}
