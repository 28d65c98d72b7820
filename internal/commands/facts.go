package commands

import (
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dockerfile-patch/dockerfile-patch/pkg/client"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
)

// Facts creates the `facts` command. It probes an image and prints the
// template variables as YAML, which is handy when writing templates. The
// YAML goes to out (stdout in the CLI) so it stays pipeable; the root
// command redirects cobra's own output to the logger.
func Facts(logger logging.Logger, out io.Writer, patchClient PatchClient) *cobra.Command {
	var opts client.FactsOptions

	cmd := &cobra.Command{
		Use:     "facts <image>",
		Args:    cobra.ExactArgs(1),
		Short:   "Probe an image and print its template variables",
		Example: "dockerfile-patch facts ubuntu:22.04",
		RunE: logError(logger, func(cmd *cobra.Command, args []string) error {
			opts.Image = args[0]

			vars, err := patchClient.Facts(cmd.Context(), opts)
			if err != nil {
				return err
			}

			marshaled, err := yaml.Marshal(vars)
			if err != nil {
				return err
			}
			_, err = out.Write(marshaled)
			return err
		}),
	}

	cmd.Flags().StringArrayVarP(&opts.FactScripts, "fact-script", "f", nil, "Extra fact script to run in the probe container after the built-in one"+multiValueHelp("script"))
	cmd.Flags().BoolVar(&opts.Pull, "pull", false, "Always pull the image, even when present locally")

	AddHelpFlag(cmd, "facts")
	return cmd
}
