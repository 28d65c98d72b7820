package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/dockerfile-patch/dockerfile-patch/internal/style"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/dockerfile"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/probe"
)

// DefaultFileName is the Dockerfile looked up when the patch target is a
// directory.
const DefaultFileName = "Dockerfile"

// PatchOptions is a configuration object used to change the behavior of
// the Patch function.
type PatchOptions struct {
	// Path is the Dockerfile to patch, or a directory containing one.
	Path string

	// Templates are the patch template files, rendered and inserted in
	// order. At least one is required.
	Templates []string

	// FactScripts are extra fact scripts to run in the probe container
	// after the embedded default.
	FactScripts []string

	// Output is the file the patched Dockerfile is written to. Empty means
	// stdout. Writes are atomic: the target is never left half-written.
	Output string

	// Pull forces a registry pull of the base image.
	Pull bool
}

// Patch renders the patch templates against facts probed from the
// Dockerfile's base image and inserts the result after its FROM line.
func (c *Client) Patch(ctx context.Context, opts PatchOptions) error {
	if len(opts.Templates) == 0 {
		return errors.New("at least one patch template is required")
	}

	path, err := resolveDockerfile(opts.Path)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", style.Symbol(path))
	}

	buildFile, err := dockerfile.Parse(string(raw))
	if err != nil {
		return errors.Wrapf(err, "parsing %s", style.Symbol(path))
	}

	// Read every input up front so a bad path fails before any daemon work.
	templates, err := readFiles(opts.Templates)
	if err != nil {
		return err
	}
	scripts, err := loadScripts(opts.FactScripts)
	if err != nil {
		return err
	}

	image := buildFile.Image().String()
	c.logger.Infof("Probing base image %s", style.Symbol(image))

	result, err := c.prober.Gather(ctx, probe.GatherOptions{
		Image:   image,
		Scripts: scripts,
		Pull:    opts.Pull,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrap(err, "probe timed out")
		}
		return err
	}

	vars := result.Vars()

	var patch strings.Builder
	for i, tpl := range templates {
		rendered, err := c.renderer.Render(tpl.contents, vars)
		if err != nil {
			return errors.Wrapf(err, "rendering template %s", style.Symbol(tpl.path))
		}
		if len(templates) > 1 {
			if i > 0 {
				patch.WriteString("\n")
			}
			patch.WriteString(fmt.Sprintf("#\n# ==> Patch: %s\n#\n", tpl.path))
		}
		patch.WriteString(rendered)
	}

	// The patch lands directly after FROM, where the active user is the
	// image's own config user. USER instructions later in the file do not
	// apply at the splice point.
	patched := buildFile.Patch(patch.String(), result.ImageUser)
	if patched == buildFile.String() {
		c.logger.Warn("patch is empty, Dockerfile left unchanged")
	}

	return c.writeOutput(opts.Output, patched)
}

// resolveDockerfile maps a directory argument to the Dockerfile inside it.
func resolveDockerfile(path string) (string, error) {
	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "locating %s", style.Symbol(path))
	}
	if info.IsDir() {
		return filepath.Join(path, DefaultFileName), nil
	}
	return path, nil
}

type templateFile struct {
	path     string
	contents string
}

func readFiles(paths []string) ([]templateFile, error) {
	var files []templateFile
	for _, p := range paths {
		contents, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading template %s", style.Symbol(p))
		}
		files = append(files, templateFile{path: p, contents: string(contents)})
	}
	return files, nil
}

func loadScripts(paths []string) ([]probe.Script, error) {
	var scripts []probe.Script
	for _, p := range paths {
		contents, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading fact script %s", style.Symbol(p))
		}
		scripts = append(scripts, probe.Script{Name: filepath.Base(p), Contents: string(contents)})
	}
	return scripts, nil
}

// writeOutput sends the patched Dockerfile to stdout, or writes it to a file
// via a temp file and rename so a failure never truncates the target.
func (c *Client) writeOutput(output, contents string) error {
	if output == "" || output == "-" {
		if _, err := fmt.Fprint(c.stdout, contents); err != nil {
			return err
		}
		c.logger.Info("Successfully patched Dockerfile")
		return nil
	}

	dir := filepath.Dir(output)
	tmp, err := os.CreateTemp(dir, ".dockerfile-patch-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", style.Symbol(dir))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(contents); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", style.Symbol(output))
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", style.Symbol(output))
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(output); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return errors.Wrapf(err, "writing %s", style.Symbol(output))
	}

	if err := os.Rename(tmp.Name(), output); err != nil {
		return errors.Wrapf(err, "writing %s", style.Symbol(output))
	}

	c.logger.Infof("Patched Dockerfile written to %s", style.Symbol(output))
	return nil
}
