package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/cli/config"
	"github.com/justapithecus/anxeod/eod"
	"github.com/justapithecus/anxeod/housekeeping"
)

// RunCommand returns the run command: the scheduled end-of-day pass over
// the source directory.
//
// Exit codes:
//   - 0: success, including a run with no new files
//   - 1: configuration error
//   - 2: run error (missing directory, unclassifiable file)
//   - 3: report could not be emailed
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Process new batch files in the source directory and email the report",
		Flags: append(ExecFlags(),
			&cli.BoolFlag{
				Name:  "delete-processed",
				Usage: "Delete source files once they are archived and tracked",
			},
			&cli.BoolFlag{
				Name:  "force-email",
				Usage: "Email the report even when no category crosses the threshold",
			},
		),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c, config.ScopeRun)
	if err != nil {
		return err
	}
	s, err := newSession(cfg, "run")
	if err != nil {
		return err
	}
	defer s.close()

	dryRun := c.Bool("dry-run")
	tracker, err := housekeeping.OpenTracker(cfg.Paths.TrackerPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("tracker: %v", err), eod.ExitRunError)
	}

	// no mid-batch cancellation: a run completes or the process is killed
	ctx := context.Background()
	o, cleanup, err := s.orchestrator(ctx, tracker, eod.Options{
		SourceDir:       cfg.Paths.SourceDir,
		ArchiveDir:      cfg.Paths.ArchiveDir,
		DryRun:          dryRun,
		DeleteProcessed: c.Bool("delete-processed"),
		ForceEmail:      c.Bool("force-email"),
	})
	if err != nil {
		return err
	}
	defer cleanup()

	s.logger.Info("run started", map[string]any{"source_dir": cfg.Paths.SourceDir, "dry_run": dryRun})
	rep := s.report(dryRun)
	runErr := o.Run(ctx, rep)
	s.logger.Info("run finished", map[string]any{
		"files":     len(rep.Batches),
		"emailed":   rep.Emailed,
		"exit_code": rep.ExitCode,
	})
	return finishRun(c, rep, runErr)
}

// ProcessCommand returns the process command: one file, always emailed,
// never tracked.
func ProcessCommand() *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Process a single batch file and email its report",
		Flags: append(ExecFlags(),
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Path to the batch file; the name must carry its category code",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "email",
				Usage: "Recipient (repeatable or comma separated); defaults to the configured recipients",
			},
		),
		Action: processAction,
	}
}

func processAction(c *cli.Context) error {
	cfg, err := loadConfig(c, config.ScopeProcess)
	if err != nil {
		return err
	}
	recipients := c.StringSlice("email")
	if len(recipients) == 0 && len(cfg.Email.Recipients) == 0 {
		return cli.Exit("config: missing required configuration: email.recipients (or --email)", eod.ExitConfigError)
	}

	s, err := newSession(cfg, "process")
	if err != nil {
		return err
	}
	defer s.close()

	dryRun := c.Bool("dry-run")
	ctx := context.Background()
	o, cleanup, err := s.orchestrator(ctx, nil, eod.Options{DryRun: dryRun})
	if err != nil {
		return err
	}
	defer cleanup()

	rep := s.report(dryRun)
	runErr := o.ProcessFile(ctx, rep, c.String("file"), recipients)
	return finishRun(c, rep, runErr)
}
