// Package probe gathers system facts from a Docker image by starting a
// disposable container from it and running fact scripts inside.
//
// A probe is a scoped acquisition: whatever happens after the container is
// created (script failure, unparseable output, cancellation), the container
// is force-removed before Gather returns. A single invocation makes exactly
// one attempt; transient daemon failures surface to the caller.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"

	"github.com/dockerfile-patch/dockerfile-patch/internal/style"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/archive"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/facts"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
)

var (
	// ErrImagePull is reported when the base image cannot be obtained.
	ErrImagePull = errors.New("image pull failed")
	// ErrContainerStart is reported when the probe container cannot be
	// created, started, or awaited.
	ErrContainerStart = errors.New("container start failed")
	// ErrProbeScript is reported when the fact scripts fail or produce no
	// usable output.
	ErrProbeScript = errors.New("probe script failed")
)

// Scripts are staged under guestDir inside the probe container and executed
// in order by a generated runner that aborts on the first failure.
const (
	guestDir   = "/.dockerfile-patch"
	runnerName = "run"
)

// DockerClient is the subset of the daemon client the prober uses.
type DockerClient interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options types.CopyToContainerOptions) error
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Script is a fact script to run inside the probe container. It must print
// one "fact: value" line per fact to stdout.
type Script struct {
	Name     string
	Contents string
}

// Result carries everything learned from one probe.
type Result struct {
	Facts facts.Facts
	// ImageUser is the USER configured on the image itself, "" when unset.
	ImageUser string
}

// Vars returns the template variables derived from this probe: the fact set
// plus the docker_image_user pseudo-fact.
func (r *Result) Vars() map[string]string {
	vars := r.Facts.Vars()
	user := r.ImageUser
	if user == "" {
		user = "root"
	}
	vars["docker_image_user"] = user
	return vars
}

// GatherOptions configures a single probe.
type GatherOptions struct {
	// Image is the reference to probe, exactly as written in the Dockerfile.
	Image string
	// Scripts are extra fact scripts to run, in order, after the embedded
	// default script.
	Scripts []Script
	// Pull forces a registry pull even when the image is already local.
	Pull bool
}

// Prober runs fact scripts in ephemeral containers via the Docker daemon.
type Prober struct {
	docker DockerClient
	logger logging.Logger
}

func NewProber(logger logging.Logger, docker DockerClient) *Prober {
	return &Prober{
		docker: docker,
		logger: logger,
	}
}

// Gather probes an image once and returns the parsed facts.
func (p *Prober) Gather(ctx context.Context, opts GatherOptions) (*Result, error) {
	scripts := append([]Script{DefaultFactScript()}, opts.Scripts...)

	if err := p.ensureImage(ctx, opts.Image, opts.Pull); err != nil {
		return nil, err
	}

	imageUser, err := p.imageUser(ctx, opts.Image)
	if err != nil {
		return nil, err
	}

	ctrID, err := p.createContainer(ctx, opts.Image, scripts)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Teardown must happen even when ctx is already done.
		if err := p.docker.ContainerRemove(context.Background(), ctrID, container.RemoveOptions{Force: true}); err != nil {
			p.logger.Warnf("failed to remove probe container %s: %s", style.Symbol(ctrID), err)
		}
	}()

	output, err := p.runScripts(ctx, ctrID)
	if err != nil {
		return nil, err
	}

	gathered, err := facts.Parse(output, p.logger)
	if err != nil {
		return nil, errors.Wrapf(ErrProbeScript, "parsing facts from image %s: %s", style.Symbol(opts.Image), err)
	}

	p.logger.Debugf("facts gathered from %s: %s", style.Symbol(opts.Image), style.Map(gathered.Vars(), "", " "))

	return &Result{Facts: gathered, ImageUser: imageUser}, nil
}

// ensureImage makes the image available locally. Unless force is set, a
// locally present image short-circuits the pull so probing keeps working
// against a warm daemon without registry access.
func (p *Prober) ensureImage(ctx context.Context, img string, force bool) error {
	if !force {
		if _, _, err := p.docker.ImageInspectWithRaw(ctx, img); err == nil {
			p.logger.Debugf("image %s already present, skipping pull", style.Symbol(img))
			return nil
		}
	}

	p.logger.Infof("Pulling image %s", style.Symbol(img))
	rc, err := p.docker.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(ErrImagePull, "pulling image %s: %s", style.Symbol(img), err)
	}
	defer rc.Close()

	progress := io.Discard
	if p.logger.IsVerbose() {
		progress = p.logger.Writer()
	}
	if err := jsonmessage.DisplayJSONMessagesStream(rc, progress, 0, false, nil); err != nil {
		return errors.Wrapf(ErrImagePull, "pulling image %s: %s", style.Symbol(img), err)
	}
	return nil
}

func (p *Prober) imageUser(ctx context.Context, img string) (string, error) {
	inspect, _, err := p.docker.ImageInspectWithRaw(ctx, img)
	if err != nil {
		return "", errors.Wrapf(ErrContainerStart, "inspecting image %s: %s", style.Symbol(img), err)
	}
	if inspect.Config == nil {
		return "", nil
	}
	return strings.TrimSpace(inspect.Config.User), nil
}

// createContainer creates the probe container and copies the staged fact
// scripts into it.
func (p *Prober) createContainer(ctx context.Context, img string, scripts []Script) (string, error) {
	ctr, err := p.docker.ContainerCreate(ctx, &container.Config{
		Image: img,
		User:  "root",
		Cmd:   strslice.StrSlice{"/bin/sh", path.Join(guestDir, runnerName)},
		// Reset any image entrypoint so the runner is executed as-is.
		Entrypoint: strslice.StrSlice{},
	}, nil, nil, nil, "")
	if err != nil {
		return "", errors.Wrapf(ErrContainerStart, "creating container from image %s: %s", style.Symbol(img), err)
	}

	tarball, err := probeArchive(scripts)
	if err != nil {
		return ctr.ID, errors.Wrapf(ErrContainerStart, "archiving fact scripts: %s", err)
	}
	if err := p.docker.CopyToContainer(ctx, ctr.ID, "/", tarball, types.CopyToContainerOptions{}); err != nil {
		return ctr.ID, errors.Wrapf(ErrContainerStart, "copying fact scripts into container: %s", err)
	}

	return ctr.ID, nil
}

// probeArchive builds the tar stream staged into the container: every fact
// script under a numbered name, plus the runner that executes them in order.
func probeArchive(scripts []Script) (io.Reader, error) {
	root := strings.TrimPrefix(guestDir, "/")

	var runner strings.Builder
	runner.WriteString("#!/bin/sh\n")

	var files []archive.File
	for i, script := range scripts {
		name := fmt.Sprintf("%06d-%s", i+1, path.Base(script.Name))
		files = append(files, archive.File{
			Name:     path.Join(root, name),
			Mode:     0755,
			Contents: script.Contents,
		})
		runner.WriteString(path.Join(guestDir, name) + " || exit 1\n")
	}

	files = append(files, archive.File{
		Name:     path.Join(root, runnerName),
		Mode:     0755,
		Contents: runner.String(),
	})

	return archive.CreateTarReader(files)
}

// runScripts starts the container, waits for the runner to exit, and
// returns the demuxed stdout. Script stderr goes to the debug log; a
// non-zero exit is a probe-script error carrying the captured stderr.
func (p *Prober) runScripts(ctx context.Context, ctrID string) (string, error) {
	bodyChan, errChan := p.docker.ContainerWait(ctx, ctrID, container.WaitConditionNextExit)

	if err := p.docker.ContainerStart(ctx, ctrID, container.StartOptions{}); err != nil {
		return "", errors.Wrapf(ErrContainerStart, "starting probe container: %s", err)
	}

	logs, err := p.docker.ContainerLogs(ctx, ctrID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return "", errors.Wrapf(ErrContainerStart, "attaching to probe container logs: %s", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	copyErr := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, logs)
		copyErr <- err
	}()

	var exitCode int64
	select {
	case body := <-bodyChan:
		exitCode = body.StatusCode
	case err := <-errChan:
		return "", errors.Wrapf(ErrContainerStart, "waiting for probe container: %s", err)
	}

	if err := <-copyErr; err != nil {
		p.logger.Warnf("reading probe container output: %s", err)
	}
	if stderr.Len() > 0 {
		p.logger.Debugf("probe stderr:\n%s", stderr.String())
	}

	if exitCode != 0 {
		return "", errors.Wrapf(ErrProbeScript, "fact script exited with status %d: %s", exitCode, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
