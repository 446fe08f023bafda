package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/cli/render"
	"github.com/justapithecus/anxeod/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	ReportVersion string `json:"report_schema_version"`
}

// VersionCommand returns the version command. It reads no configuration.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  []cli.Flag{FormatFlag, NoColorFlag},
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(VersionResponse{
			Version:       types.Version,
			Commit:        commit,
			ReportVersion: types.ReportSchemaVersion,
		})
	}
}
