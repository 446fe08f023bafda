package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/category"
	"github.com/justapithecus/anxeod/cli/config"
	"github.com/justapithecus/anxeod/cli/render"
	"github.com/justapithecus/anxeod/eod"
	"github.com/justapithecus/anxeod/types"
)

// FieldView is one evaluated field of a checked barcode.
type FieldView struct {
	Barcode string `json:"barcode"`
	Field   string `json:"field"`
	Before  string `json:"before"`
	Todo    string `json:"todo"`
	Note    string `json:"note,omitempty"`
}

// CheckCommand returns the check command: look up and evaluate one barcode
// without updating it.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Look up one barcode and show what a run would change (read-only)",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "barcode", Aliases: []string{"b"}, Usage: "Item barcode", Required: true},
			&cli.StringFlag{Name: "category", Usage: "Category code: QHACS, QHREF, QSACS, QSREF", Required: true},
		),
		Action: checkAction,
	}
}

func checkAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cat, err := category.Parse(c.String("category"))
	if err != nil {
		return cli.Exit(err.Error(), eod.ExitConfigError)
	}
	cfg, err := loadConfig(c, config.ScopeGateway)
	if err != nil {
		return err
	}
	s, err := newSession(cfg, "check")
	if err != nil {
		return err
	}
	defer s.close()

	runner, err := s.runner(true)
	if err != nil {
		return err
	}
	row, err := runner.Check(context.Background(), cat, c.String("barcode"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("check: %v", err), eod.ExitRunError)
	}
	return r.Render(fieldViews(row))
}

// fieldViews flattens a report row into one line per field. A row with no
// record yields a single line carrying the note.
func fieldViews(row types.ReportRow) []FieldView {
	dispositions := []struct {
		field types.Field
		d     types.FieldDisposition
	}{
		{types.FieldLibrary, row.Library},
		{types.FieldLocation, row.Location},
		{types.FieldBaseStatus, row.BaseStatus},
		{types.FieldProcessType, row.ProcessType},
	}
	if row.Title == "" && row.Library.Before == "" {
		return []FieldView{{Barcode: row.Barcode, Note: row.Note}}
	}
	out := make([]FieldView, 0, len(dispositions))
	for _, d := range dispositions {
		out = append(out, FieldView{
			Barcode: row.Barcode,
			Field:   string(d.field),
			Before:  d.d.Before,
			Todo:    d.d.Planned,
			Note:    row.Note,
		})
	}
	return out
}
