package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dockerfile-patch/dockerfile-patch/pkg/client"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
)

// Patch creates the `patch` command, the primary operation of the tool.
func Patch(logger logging.Logger, patchClient PatchClient) *cobra.Command {
	var opts client.PatchOptions
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "patch [<path>]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Patch a Dockerfile with a rendered template after its FROM line",
		Example: "dockerfile-patch patch . -p patch.j2\n" +
			"dockerfile-patch patch ./Dockerfile -p patch.j2 -o Dockerfile.patched",
		RunE: logError(logger, func(cmd *cobra.Command, args []string) error {
			opts.Path = "."
			if len(args) == 1 {
				opts.Path = args[0]
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			return patchClient.Patch(ctx, opts)
		}),
	}

	cmd.Flags().StringArrayVarP(&opts.Templates, "patch", "p", nil, "Patch template file to render and insert"+multiValueHelp("template"))
	cmd.Flags().StringArrayVarP(&opts.FactScripts, "fact-script", "f", nil, "Extra fact script to run in the probe container after the built-in one"+multiValueHelp("script"))
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the patched Dockerfile to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.Pull, "pull", false, "Always pull the base image, even when present locally")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the probe after this duration (e.g. 2m). Zero means no limit")

	AddHelpFlag(cmd, "patch")
	return cmd
}
