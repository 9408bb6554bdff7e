// Command kvcache reads, writes and maintains kvcache stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rshade/kvcache/internal/cli"
	"github.com/rshade/kvcache/pkg/version"
)

func main() {
	os.Exit(extractExitCode(run()))
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	err := root.ExecuteContext(ctx)

	var exitErr *cli.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		if exitErr.Reason != "" {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Reason)
		}
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// extractExitCode maps an error from run to a process exit code.
func extractExitCode(err error) int {
	if err == nil {
		return cli.ExitCodeOK
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return cli.ExitCodeError
}
