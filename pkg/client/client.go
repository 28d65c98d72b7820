// Package client exposes the operations behind the dockerfile-patch CLI.
package client

import (
	"context"
	"io"
	"os"

	dockerClient "github.com/docker/docker/client"
	"github.com/pkg/errors"

	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/probe"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/template"
)

// Prober gathers facts from a base image.
type Prober interface {
	Gather(ctx context.Context, opts probe.GatherOptions) (*probe.Result, error)
}

// Renderer renders template source against fact variables.
type Renderer interface {
	Render(source string, vars map[string]string) (string, error)
}

// Client patches Dockerfiles using facts probed from their base images.
type Client struct {
	logger   logging.Logger
	docker   probe.DockerClient
	prober   Prober
	renderer Renderer
	stdout   io.Writer
}

// Option is a type of function that mutate settings on the client.
// Values in these functions are set through currying.
type Option func(c *Client)

// WithLogger supplies your own logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDockerClient supplies your own docker client.
func WithDockerClient(d probe.DockerClient) Option {
	return func(c *Client) {
		c.docker = d
	}
}

// WithProber supplies your own prober.
func WithProber(p Prober) Option {
	return func(c *Client) {
		c.prober = p
	}
}

// WithRenderer supplies your own template renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Client) {
		c.renderer = r
	}
}

// WithOutput supplies the writer used when a patched Dockerfile goes to
// stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Client) {
		c.stdout = w
	}
}

// NewClient creates a Client with default behavior, modified by the given
// options. Unless a prober or docker client is supplied, a daemon client is
// created from the environment with API version negotiation.
func NewClient(opts ...Option) (*Client, error) {
	var client Client
	for _, opt := range opts {
		opt(&client)
	}

	if client.logger == nil {
		client.logger = logging.NewLogWithWriters(os.Stderr, os.Stderr)
	}
	if client.stdout == nil {
		client.stdout = os.Stdout
	}

	if client.prober == nil {
		if client.docker == nil {
			docker, err := dockerClient.NewClientWithOpts(
				dockerClient.FromEnv,
				dockerClient.WithAPIVersionNegotiation(),
			)
			if err != nil {
				return nil, errors.Wrap(err, "creating docker client")
			}
			client.docker = docker
		}
		client.prober = probe.NewProber(client.logger, client.docker)
	}

	if client.renderer == nil {
		client.renderer = template.Renderer{}
	}

	return &client, nil
}
