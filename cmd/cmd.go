// Package cmd builds the dockerfile-patch root command.
package cmd

import (
	"os"

	"github.com/heroku/color"
	"github.com/spf13/cobra"

	"github.com/dockerfile-patch/dockerfile-patch/internal/commands"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/client"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
)

// Version is overridden at build time with ldflags.
var Version = "0.0.0"

// ConfigurableLogger defines behavior required by the root command
type ConfigurableLogger interface {
	logging.Logger
	WantTime(f bool)
	WantQuiet(f bool)
	WantVerbose(f bool)
}

// NewDockerfilePatchCommand generates the dockerfile-patch command tree.
func NewDockerfilePatchCommand(logger ConfigurableLogger) (*cobra.Command, error) {
	cobra.EnableCommandSorting = false

	patchClient, err := client.NewClient(client.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:   "dockerfile-patch",
		Short: "Patch a Dockerfile with a template rendered from base image facts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if fs := cmd.Flags(); fs != nil {
				if flag, err := fs.GetBool("no-color"); err == nil {
					color.Disable(flag)
				}
				if flag, err := fs.GetBool("quiet"); err == nil {
					logger.WantQuiet(flag)
				}
				if flag, err := fs.GetBool("verbose"); err == nil {
					logger.WantVerbose(flag)
				}
				if flag, err := fs.GetBool("timestamps"); err == nil {
					logger.WantTime(flag)
				}
			}
		},
	}

	rootCmd.PersistentFlags().Bool("no-color", false, "Disable color output")
	rootCmd.PersistentFlags().Bool("timestamps", false, "Enable timestamps in output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Show less output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show more output")

	commands.AddHelpFlag(rootCmd, "dockerfile-patch")

	rootCmd.AddCommand(commands.Patch(logger, patchClient))
	rootCmd.AddCommand(commands.Facts(logger, os.Stdout, patchClient))
	rootCmd.AddCommand(commands.Version(logger, Version))

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{.Version}}{{"\n"}}`)
	rootCmd.SetOut(logger.Writer())

	return rootCmd, nil
}
