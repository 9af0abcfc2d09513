package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/reviewcraft/internal/cli"
	"github.com/matzehuels/reviewcraft/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx)
	cancel()
	os.Exit(exitCode(err))
}

func run(ctx context.Context) error {
	return cli.New(os.Stderr).RootCommand().ExecuteContext(ctx)
}

// exitCode maps errors to process exit codes: 130 for Ctrl+C, 2 for bad
// input, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case stderrors.Is(err, context.Canceled):
		return 130
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidURL,
		errors.ErrCodeInvalidPlatform, errors.ErrCodeInvalidPath, errors.ErrCodeFileNotFound:
		return 2
	}
	return 1
}
