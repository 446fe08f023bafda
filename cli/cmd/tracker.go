package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/cli/render"
	"github.com/justapithecus/anxeod/eod"
	"github.com/justapithecus/anxeod/housekeeping"
)

// TrackedFile is one entry of the processed-file tracker.
type TrackedFile struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// TrackerCommand returns the tracker command with subcommands.
func TrackerCommand() *cli.Command {
	return &cli.Command{
		Name:  "tracker",
		Usage: "Inspect the processed-file tracker",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tracked file names in processing order",
				Flags: append(ReadOnlyFlags(),
					&cli.StringFlag{Name: "path", Usage: "Tracker file (default: paths.tracker_path)"},
					&cli.IntFlag{Name: "limit", Usage: "Show only the most recent N entries (0 = all)"},
				),
				Action: trackerListAction,
			},
		},
	}
}

func trackerListAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	path := c.String("path")
	if path == "" {
		cfg, err := readConfig(c)
		if err != nil {
			return cli.Exit(fmt.Sprintf("config: %v", err), eod.ExitConfigError)
		}
		path = cfg.Paths.TrackerPath
	}
	if path == "" {
		return cli.Exit("tracker: --path or paths.tracker_path is required", eod.ExitConfigError)
	}

	t, err := housekeeping.OpenTracker(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("tracker: %v", err), eod.ExitRunError)
	}
	return r.Render(trackedFiles(t.Names(), c.Int("limit")))
}

func trackedFiles(names []string, limit int) []TrackedFile {
	start := 0
	if limit > 0 && len(names) > limit {
		start = len(names) - limit
	}
	out := make([]TrackedFile, 0, len(names)-start)
	for i := start; i < len(names); i++ {
		code := ""
		if len(names[i]) >= housekeeping.PrefixLen {
			code = names[i][:housekeeping.PrefixLen]
		}
		out = append(out, TrackedFile{Position: i + 1, Name: names[i], Category: code})
	}
	return out
}
