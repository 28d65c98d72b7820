package main

import (
	"os"

	"github.com/dockerfile-patch/dockerfile-patch/cmd"
	"github.com/dockerfile-patch/dockerfile-patch/internal/commands"
	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
)

func main() {
	// Logs go to stderr so stdout carries nothing but the patched Dockerfile.
	logger := logging.NewLogWithWriters(os.Stderr, os.Stderr)

	rootCmd, err := cmd.NewDockerfilePatchCommand(logger)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx := commands.CreateCancellableContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
