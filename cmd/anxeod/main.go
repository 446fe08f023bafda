// Package main provides the anxeod CLI entrypoint.
//
// Usage:
//
//	anxeod <command> [subcommand] [options]
//
// Exit codes for run, process and watch:
//   - 0: success
//   - 1: configuration error
//   - 2: run error
//   - 3: report delivery failure
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/cli/cmd"
	"github.com/justapithecus/anxeod/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "anxeod",
		Usage:          "Annex end-of-day item reconciliation",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.ProcessCommand(),
			cmd.CheckCommand(),
			cmd.MonthlyCommand(),
			cmd.WatchCommand(),
			cmd.TrackerCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus extracts the exit code and the message worth printing.
// cli.Exit("", N) renders as "exit status N" and prints nothing.
func exitStatus(err error) (int, string) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return 1, fmt.Sprintf("Error: %v", err)
}
