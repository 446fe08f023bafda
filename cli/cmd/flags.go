// Package cmd provides CLI commands for the anxeod binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// ConfigFlag points at a YAML config file. Without it, configuration
	// comes from the ANXEODALERTS__ environment variables.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to anxeod.yaml (default: ANXEODALERTS__* environment)",
		EnvVars: []string{"ANXEOD_CONFIG"},
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// DryRunFlag evaluates and reports without updating any record.
	DryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Evaluate and report without updating records, archiving or tracking files",
	}

	// ReportFlag writes the JSON run report.
	ReportFlag = &cli.StringFlag{
		Name:  "report",
		Usage: "Write the JSON run report to a path, or - for stderr",
	}
)

// ReadOnlyFlags returns the shared flags for commands that only render.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		FormatFlag,
		NoColorFlag,
	}
}

// ExecFlags returns the shared flags for commands that process batches.
func ExecFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		DryRunFlag,
		ReportFlag,
	}
}
