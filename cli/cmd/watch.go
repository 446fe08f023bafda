package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/cli/config"
	"github.com/justapithecus/anxeod/eod"
	"github.com/justapithecus/anxeod/housekeeping"
)

// WatchCommand returns the watch command: run once at start, then again
// whenever candidate files land in the source directory.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the source directory and run whenever new batch files arrive",
		Flags: append(ExecFlags(),
			&cli.BoolFlag{
				Name:  "delete-processed",
				Usage: "Delete source files once they are archived and tracked",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before a burst of file events triggers a run",
				Value: housekeeping.DefaultDebounce,
			},
		),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	cfg, err := loadConfig(c, config.ScopeRun)
	if err != nil {
		return err
	}
	if err := housekeeping.CheckDirectories(cfg.Paths.SourceDir, cfg.Paths.ArchiveDir); err != nil {
		return cli.Exit(fmt.Sprintf("watch: %v", err), eod.ExitRunError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := housekeeping.NewWatcher(ctx, housekeeping.WatchConfig{
		Dir:      cfg.Paths.SourceDir,
		Prefixes: cfg.Prefixes,
		Debounce: c.Duration("debounce"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("watch: %v", err), eod.ExitRunError)
	}
	defer func() { _ = w.Close() }()

	fmt.Fprintf(os.Stderr, "watching %s\n", cfg.Paths.SourceDir)
	if err := watchRun(c, cfg, nil); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			fmt.Fprintf(os.Stderr, "Warning: watcher: %v\n", err)
		case names, ok := <-w.C():
			if !ok {
				return nil
			}
			if err := watchRun(c, cfg, names); err != nil {
				return err
			}
		}
	}
}

// watchRun performs one run. Run and delivery failures are reported and
// the watch continues; setup failures end it.
func watchRun(c *cli.Context, cfg *config.Config, trigger []string) error {
	s, err := newSession(cfg, "watch")
	if err != nil {
		return err
	}
	defer s.close()
	if len(trigger) > 0 {
		s.logger.Sugar().Infof("change detected: %d candidate file(s) %v", len(trigger), trigger)
	}

	tracker, err := housekeeping.OpenTracker(cfg.Paths.TrackerPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("tracker: %v", err), eod.ExitRunError)
	}

	ctx := context.Background()
	dryRun := c.Bool("dry-run")
	o, cleanup, err := s.orchestrator(ctx, tracker, eod.Options{
		SourceDir:       cfg.Paths.SourceDir,
		ArchiveDir:      cfg.Paths.ArchiveDir,
		DryRun:          dryRun,
		DeleteProcessed: c.Bool("delete-processed"),
	})
	if err != nil {
		return err
	}
	defer cleanup()

	rep := s.report(dryRun)
	if err := finishRun(c, rep, o.Run(ctx, rep)); err != nil {
		fmt.Fprintf(os.Stderr, "run %s: %v\n", rep.RunID, err)
	}
	return nil
}
