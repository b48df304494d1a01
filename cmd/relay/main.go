// Package main provides the relay CLI entrypoint.
//
// Usage:
//
//	relay <command> [options]
//
// Exit codes:
//   - 0: success, including sends where some destinations failed
//   - 1: invalid input, invalid configuration or unexpected error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/relay/cli/cmd"
	"github.com/pithecene-io/relay/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                      "relay",
		Usage:                     "Deliver analytics events to their destinations",
		Version:                   fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler:            exitErrHandler,
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			cmd.SendCommand(),
			cmd.DestinationsCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
