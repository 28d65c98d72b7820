package client_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/dockerfile-patch/dockerfile-patch/pkg/client"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/facts"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/probe"
	h "github.com/dockerfile-patch/dockerfile-patch/testhelpers"
)

func TestClient(t *testing.T) {
	spec.Run(t, "testClient", testClient, spec.Report(report.Terminal{}))
}

type fakeProber struct {
	result      *probe.Result
	err         error
	gatherCount int
	lastOpts    probe.GatherOptions
}

func (f *fakeProber) Gather(_ context.Context, opts probe.GatherOptions) (*probe.Result, error) {
	f.gatherCount++
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testClient(t *testing.T, when spec.G, it spec.S) {
	var (
		tmpDir  string
		prober  *fakeProber
		stdout  bytes.Buffer
		logBuf  bytes.Buffer
		subject *client.Client
	)

	writeFile := func(name, contents string) string {
		t.Helper()
		path := filepath.Join(tmpDir, name)
		h.AssertNil(t, os.WriteFile(path, []byte(contents), 0644))
		return path
	}

	it.Before(func() {
		tmpDir = t.TempDir()
		prober = &fakeProber{
			result: &probe.Result{
				Facts: facts.Facts{
					OSFamily:        "Debian",
					OperatingSystem: "ubuntu",
					KernelRelease:   "5.15.0",
					Architecture:    "x86_64",
				},
			},
		}
		stdout = bytes.Buffer{}
		logBuf = bytes.Buffer{}

		var err error
		subject, err = client.NewClient(
			client.WithLogger(logging.NewLogWithWriters(&logBuf, &logBuf)),
			client.WithProber(prober),
			client.WithOutput(&stdout),
		)
		h.AssertNil(t, err)
	})

	when("#Patch", func() {
		it("patches a Dockerfile to stdout", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\nRUN echo hi\n")
			tplPath := writeFile("patch.j2", "RUN echo {{ osfamily }}\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertNil(t, err)
			h.AssertEq(t, stdout.String(), `FROM ubuntu:22.04
######## dockerfile-patch patch for ubuntu:22.04 ########
RUN echo Debian
######## dockerfile-patch patch for ubuntu:22.04 ########
RUN echo hi
`)
			h.AssertEq(t, prober.lastOpts.Image, "ubuntu:22.04")
		})

		it("resolves a directory argument to the Dockerfile inside it", func() {
			writeFile("Dockerfile", "FROM alpine\n")
			tplPath := writeFile("patch.j2", "RUN apk add curl\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      tmpDir,
				Templates: []string{tplPath},
			})
			h.AssertNil(t, err)
			h.AssertContains(t, stdout.String(), "RUN apk add curl")
		})

		it("writes the output file atomically with markers framing the patch", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")
			outPath := filepath.Join(tmpDir, "Dockerfile.patched")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
				Output:    outPath,
			})
			h.AssertNil(t, err)

			out, err := os.ReadFile(outPath)
			h.AssertNil(t, err)
			h.AssertContains(t, string(out), "######## dockerfile-patch patch for ubuntu:22.04 ########\nRUN echo patched\n######## dockerfile-patch patch for ubuntu:22.04 ########\n")
			h.AssertEq(t, stdout.String(), "")
		})

		it("brackets the patch when the image runs as a non-root user", func() {
			prober.result.ImageUser = "svc"
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertNil(t, err)
			h.AssertContains(t, stdout.String(), "USER root\nRUN echo patched\n")
			h.AssertContains(t, stdout.String(), "########\nUSER svc\n")
		})

		// The splice point sits directly after FROM, where the active user is
		// the image's config user. USER instructions later in the file must
		// not trigger bracketing or change the user of the instructions
		// between the patch and that USER line.
		it("ignores USER instructions in the file when the image user is root", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\nRUN apt-get install -y nginx\nUSER app\nCMD [\"nginx\"]\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertNil(t, err)
			h.AssertEq(t, stdout.String(), `FROM ubuntu:22.04
######## dockerfile-patch patch for ubuntu:22.04 ########
RUN echo patched
######## dockerfile-patch patch for ubuntu:22.04 ########
RUN apt-get install -y nginx
USER app
CMD ["nginx"]
`)
		})

		it("restores the image user, not the file's USER, after the patch", func() {
			prober.result.ImageUser = "svc"
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\nRUN true\nUSER app\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertNil(t, err)
			h.AssertContains(t, stdout.String(), "########\nUSER svc\nRUN true\n")
			h.AssertNotContains(t, stdout.String(), "USER app\nRUN true\n")
		})

		it("leaves the Dockerfile unchanged when the patch renders empty", func() {
			contents := "FROM ubuntu:22.04\nRUN echo hi\n"
			dockerfilePath := writeFile("Dockerfile", contents)
			tplPath := writeFile("patch.j2", "{% if osfamily == 'Alpine' %}RUN apk add curl{% endif %}\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertNil(t, err)
			h.AssertEq(t, stdout.String(), contents)
			h.AssertContains(t, logBuf.String(), "patch is empty")
		})

		it("separates multiple templates with banners", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")
			firstPath := writeFile("first.j2", "RUN echo one\n")
			secondPath := writeFile("second.j2", "RUN echo two\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{firstPath, secondPath},
			})
			h.AssertNil(t, err)
			h.AssertContains(t, stdout.String(), "# ==> Patch: "+firstPath)
			h.AssertContains(t, stdout.String(), "# ==> Patch: "+secondPath)
			h.AssertContains(t, stdout.String(), "RUN echo one\n")
			h.AssertContains(t, stdout.String(), "RUN echo two\n")
		})

		it("passes fact scripts through to the prober", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")
			scriptPath := writeFile("myfacts.sh", "#!/bin/sh\necho osfamily: Debian\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:        dockerfilePath,
				Templates:   []string{tplPath},
				FactScripts: []string{scriptPath},
			})
			h.AssertNil(t, err)
			h.AssertEq(t, len(prober.lastOpts.Scripts), 1)
			h.AssertEq(t, prober.lastOpts.Scripts[0].Name, "myfacts.sh")
		})

		it("fails before probing when a template is missing", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{filepath.Join(tmpDir, "nope.j2")},
			})
			h.AssertError(t, err, "reading template")
			h.AssertEq(t, prober.gatherCount, 0)
		})

		it("requires at least one template", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path: dockerfilePath,
			})
			h.AssertError(t, err, "at least one patch template is required")
		})

		it("surfaces template syntax errors with the template path", func() {
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")
			tplPath := writeFile("broken.j2", "{% if osfamily %}unclosed")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertError(t, err, "invalid template syntax")
			h.AssertError(t, err, "broken.j2")
		})

		it("propagates probe failures", func() {
			prober.err = errors.Wrap(probe.ErrImagePull, "pulling image 'ghost'")
			dockerfilePath := writeFile("Dockerfile", "FROM ghost\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertTrue(t, errors.Is(err, probe.ErrImagePull))
		})

		it("reports a probe timeout when the context deadline passed", func() {
			prober.err = context.DeadlineExceeded
			dockerfilePath := writeFile("Dockerfile", "FROM ubuntu:22.04\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")

			ctx, cancel := context.WithTimeout(context.Background(), 0)
			defer cancel()

			err := subject.Patch(ctx, client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertError(t, err, "probe timed out")
		})

		it("errors on a Dockerfile without a FROM instruction", func() {
			dockerfilePath := writeFile("Dockerfile", "RUN echo hi\n")
			tplPath := writeFile("patch.j2", "RUN echo patched\n")

			err := subject.Patch(context.Background(), client.PatchOptions{
				Path:      dockerfilePath,
				Templates: []string{tplPath},
			})
			h.AssertError(t, err, "no base image instruction")
			h.AssertEq(t, prober.gatherCount, 0)
		})
	})

	when("#Facts", func() {
		it("returns the probed template variables", func() {
			prober.result.ImageUser = "app"

			vars, err := subject.Facts(context.Background(), client.FactsOptions{Image: "ubuntu:22.04"})
			h.AssertNil(t, err)
			h.AssertEq(t, vars, map[string]string{
				"osfamily":          "Debian",
				"operatingsystem":   "ubuntu",
				"kernelrelease":     "5.15.0",
				"architecture":      "x86_64",
				"docker_image_user": "app",
			})
			h.AssertEq(t, prober.lastOpts.Image, "ubuntu:22.04")
		})

		it("forwards the pull flag", func() {
			_, err := subject.Facts(context.Background(), client.FactsOptions{Image: "ubuntu:22.04", Pull: true})
			h.AssertNil(t, err)
			h.AssertTrue(t, prober.lastOpts.Pull)
		})
	})
}
