package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/cli/render"
	"github.com/justapithecus/anxeod/eod"
	"github.com/justapithecus/anxeod/housekeeping"
)

// MonthlyCommand returns the monthly command: combine a month's original
// scanner files into one deduplicated barcode file per category.
func MonthlyCommand() *cli.Command {
	return &cli.Command{
		Name:  "monthly",
		Usage: "Combine a month's ORIG_ scanner files into one barcode file per category",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "date",
				Usage: "Any day of the month to combine, YYYY-MM-DD (default: today)",
			},
			&cli.StringFlag{
				Name:  "source-dir",
				Usage: "Directory holding ORIG_ files (default: paths.archive_dir)",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory for <CODE>_<YYYY-MM>_monthly.txt files (default: source dir)",
			},
		),
		Action: monthlyAction,
	}
}

func monthlyAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	month := time.Now()
	if d := c.String("date"); d != "" {
		month, err = time.Parse(time.DateOnly, d)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid --date %q: want YYYY-MM-DD", d), eod.ExitConfigError)
		}
	}

	sourceDir := c.String("source-dir")
	encoding := housekeeping.DefaultEncoding
	if sourceDir == "" || c.String("config") != "" {
		cfg, err := readConfig(c)
		if err != nil {
			return cli.Exit(fmt.Sprintf("config: %v", err), eod.ExitConfigError)
		}
		encoding = cfg.InputEncoding
		if sourceDir == "" {
			sourceDir = cfg.Paths.ArchiveDir
		}
	}
	if sourceDir == "" {
		return cli.Exit("monthly: --source-dir or paths.archive_dir is required", eod.ExitConfigError)
	}
	outputDir := c.String("output-dir")
	if outputDir == "" {
		outputDir = sourceDir
	}

	if err := housekeeping.CheckDirectories(sourceDir); err != nil {
		return cli.Exit(fmt.Sprintf("monthly: %v", err), eod.ExitRunError)
	}
	if err := housekeeping.EnsureDir(outputDir); err != nil {
		return cli.Exit(fmt.Sprintf("monthly: %v", err), eod.ExitRunError)
	}

	results, err := housekeeping.CombineMonthly(sourceDir, outputDir, month, encoding)
	if err != nil {
		return cli.Exit(fmt.Sprintf("monthly: %v", err), eod.ExitRunError)
	}
	return r.Render(results)
}
