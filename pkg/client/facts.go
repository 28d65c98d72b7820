package client

import (
	"context"

	"github.com/dockerfile-patch/dockerfile-patch/pkg/probe"
)

// FactsOptions is a configuration object used to change the behavior of
// the Facts function.
type FactsOptions struct {
	// Image is the image reference to probe.
	Image string

	// FactScripts are extra fact scripts to run after the embedded default.
	FactScripts []string

	// Pull forces a registry pull of the image.
	Pull bool
}

// Facts probes an image and returns its template variables, including the
// docker_image_user pseudo-fact.
func (c *Client) Facts(ctx context.Context, opts FactsOptions) (map[string]string, error) {
	scripts, err := loadScripts(opts.FactScripts)
	if err != nil {
		return nil, err
	}

	result, err := c.prober.Gather(ctx, probe.GatherOptions{
		Image:   opts.Image,
		Scripts: scripts,
		Pull:    opts.Pull,
	})
	if err != nil {
		return nil, err
	}

	return result.Vars(), nil
}
