package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dockerfile-patch/dockerfile-patch/pkg/client"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
)

// PatchClient is the surface of the library client the commands use.
type PatchClient interface {
	Patch(ctx context.Context, opts client.PatchOptions) error
	Facts(ctx context.Context, opts client.FactsOptions) (map[string]string, error)
}

func AddHelpFlag(cmd *cobra.Command, commandName string) {
	cmd.Flags().BoolP("help", "h", false, fmt.Sprintf("Help for '%s'", commandName))
}

// CreateCancellableContext returns a context cancelled on SIGINT or SIGTERM
// so an in-flight probe container still gets removed.
func CreateCancellableContext() context.Context {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-signals
		cancel()
	}()

	return ctx
}

func logError(logger logging.Logger, f func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		if err := f(cmd, args); err != nil {
			logger.Error(err.Error())
			return err
		}
		return nil
	}
}

func multiValueHelp(name string) string {
	return fmt.Sprintf("\nRepeat for each %s in order", name)
}
