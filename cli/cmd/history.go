package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/cli/config"
	"github.com/justapithecus/anxeod/cli/render"
	"github.com/justapithecus/anxeod/eod"
	"github.com/justapithecus/anxeod/lode"
)

// HistoryCommand returns the history command: recent runs from the run
// archive, newest first.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List archived runs, newest first",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "day", Usage: "Filter by partition day (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "run-id", Usage: "Filter by run ID"},
			&cli.StringFlag{Name: "category", Usage: "Keep runs that processed this category"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs (0 = no limit)", Value: 20},
			&cli.StringFlag{Name: "archive-backend", Usage: "Override archive.backend: fs or s3"},
			&cli.StringFlag{Name: "archive-path", Usage: "Override archive.path"},
		),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	archive := config.ArchiveConfig{Dataset: lode.DefaultDataset}
	if c.String("archive-path") == "" || c.String("config") != "" {
		cfg, err := readConfig(c)
		if err != nil {
			return cli.Exit(fmt.Sprintf("config: %v", err), eod.ExitConfigError)
		}
		archive = cfg.Archive
	}
	if v := c.String("archive-backend"); v != "" {
		archive.Backend = v
	}
	if v := c.String("archive-path"); v != "" {
		archive.Path = v
		if archive.Backend == "" {
			archive.Backend = "fs"
		}
	}
	if archive.Backend == "" || archive.Path == "" {
		return cli.Exit("history: no run archive configured (archive.backend and archive.path)", eod.ExitConfigError)
	}

	ctx := context.Background()
	factory, err := archiveBackend(archive).Factory(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("history: %v", err), eod.ExitConfigError)
	}
	ds, err := lode.NewDataset(archive.Dataset, factory)
	if err != nil {
		return cli.Exit(fmt.Sprintf("history: %v", err), eod.ExitRunError)
	}

	runs, err := lode.RecentRuns(ctx, ds, lode.HistoryFilter{
		Day:      c.String("day"),
		RunID:    c.String("run-id"),
		Category: c.String("category"),
		Limit:    c.Int("limit"),
	})
	if errors.Is(err, lode.ErrNoRunsFound) {
		return r.Render([]lode.RunRecord{})
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("history: %v", err), eod.ExitRunError)
	}
	return r.Render(runs)
}
