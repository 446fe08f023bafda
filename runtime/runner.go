// Package runtime runs barcode batches against the catalog.
//
// A Runner processes one file's barcodes strictly in order: look up,
// evaluate, apply, record a report row. Gateway pacing is owned by the
// gateway client; the Runner never issues calls concurrently.
package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/justapithecus/anxeod/category"
	"github.com/justapithecus/anxeod/evaluate"
	"github.com/justapithecus/anxeod/log"
	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/types"
)

// DefaultPermalinkTemplate links a record to the discovery layer.
const DefaultPermalinkTemplate = "https://bruknow.library.brown.edu/discovery/fulldisplay?docid=alma{MMSID}&vid=01BU_INST:BROWN"

// Gateway is the catalog item API as seen by the Runner.
type Gateway interface {
	Lookup(ctx context.Context, barcode string) (*types.ItemRecord, error)
	Updater
}

// Runner processes batches of barcodes.
type Runner struct {
	gateway   Gateway
	applier   *Applier
	logger    *log.Logger
	collector *metrics.Collector
	permalink string
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the runner metrics collector.
func WithMetrics(m *metrics.Collector) RunnerOption {
	return func(r *Runner) { r.collector = m }
}

// WithPermalinkTemplate overrides the discovery link template.
// The template must contain {MMSID}.
func WithPermalinkTemplate(tmpl string) RunnerOption {
	return func(r *Runner) {
		if tmpl != "" {
			r.permalink = tmpl
		}
	}
}

// WithDryRun suppresses updates.
func WithDryRun(dryRun bool) RunnerOption {
	return func(r *Runner) { r.applier.dryRun = dryRun }
}

// NewRunner creates a Runner using gw for lookups and updates.
func NewRunner(gw Gateway, opts ...RunnerOption) *Runner {
	r := &Runner{
		gateway:   gw,
		logger:    log.Nop(),
		permalink: DefaultPermalinkTemplate,
	}
	r.applier = NewApplier(gw, nil, nil, false)
	for _, opt := range opts {
		opt(r)
	}
	r.applier.logger = r.logger
	r.applier.collector = r.collector
	return r
}

// Run processes barcodes in order and returns the batch report.
// It only fails for an unknown category; per-barcode failures become
// report data.
func (r *Runner) Run(ctx context.Context, cat types.FileCategory, barcodes []string) (*types.BatchReport, error) {
	if _, ok := category.Targets(cat); !ok {
		return nil, fmt.Errorf("run batch: %w: %q", category.ErrUnrecognized, cat)
	}

	report := &types.BatchReport{
		Category: cat,
		Rows:     make([]types.ReportRow, 0, len(barcodes)),
		Counts:   types.BatchCounts{BarcodesNotFound: []string{}},
	}
	r.logger.Info("batch started", map[string]any{"category": cat, "barcodes": len(barcodes)})

	for _, barcode := range barcodes {
		row, status := r.process(ctx, cat, barcode, true)
		report.Rows = append(report.Rows, row)
		report.Counts.BarcodesSeen++
		r.collector.IncBarcodesSeen()
		switch status {
		case statusNotFound:
			report.Counts.BarcodesProblematic++
			report.Counts.BarcodesNotFound = append(report.Counts.BarcodesNotFound, barcode)
		case statusProblem:
			report.Counts.BarcodesProblematic++
		}
	}

	r.logger.Info("batch finished", map[string]any{
		"category":    cat,
		"barcodes":    report.Counts.BarcodesSeen,
		"problematic": report.Counts.BarcodesProblematic,
		"not_found":   len(report.Counts.BarcodesNotFound),
	})
	return report, nil
}

// Check looks up and evaluates one barcode without updating it.
func (r *Runner) Check(ctx context.Context, cat types.FileCategory, barcode string) (types.ReportRow, error) {
	if _, ok := category.Targets(cat); !ok {
		return types.ReportRow{}, fmt.Errorf("check: %w: %q", category.ErrUnrecognized, cat)
	}
	row, _ := r.process(ctx, cat, barcode, false)
	return row, nil
}

type rowStatus int

const (
	statusOK rowStatus = iota
	statusProblem
	statusNotFound
)

func (r *Runner) process(ctx context.Context, cat types.FileCategory, barcode string, apply bool) (types.ReportRow, rowStatus) {
	row := types.ReportRow{Barcode: barcode}

	rec, err := r.gateway.Lookup(ctx, barcode)
	if err != nil {
		r.collector.IncLookupFailures()
		r.logger.Warn("item lookup failed", map[string]any{"barcode": barcode, "error": err.Error()})
		row.Note = types.NoteLookupFailed
		return row, statusProblem
	}

	res, err := evaluate.Evaluate(cat, rec)
	if err != nil {
		r.logger.Error("evaluation failed", map[string]any{"barcode": barcode, "error": err.Error()})
		row.Note = err.Error()
		return row, statusProblem
	}

	if res.Unresolvable {
		if rec.Error.NotFound() {
			r.collector.IncBarcodesNotFound()
			r.logger.Info("barcode not found", map[string]any{"barcode": barcode})
			row.Note = types.NoteNotFound
			return row, statusNotFound
		}
		r.collector.IncGatewayErrors()
		r.logger.Warn("item lookup returned an error", map[string]any{
			"barcode": barcode,
			"code":    rec.Error.Code,
			"error":   rec.Error.Message,
		})
		row.Note = "update-error-response, ``" + rec.Error.Message + "``"
		return row, statusProblem
	}

	if res.Gate == evaluate.GateSkip {
		r.collector.IncSkipped()
		r.logger.Debug("process type not eligible", map[string]any{
			"barcode":      barcode,
			"process_type": rec.ProcessType.Value,
		})
	}
	if res.Payload != nil {
		r.collector.IncUpdatesPlanned()
	}

	if apply {
		out := r.applier.Apply(ctx, res.Payload)
		switch {
		case out.Err != nil:
			row.Note = updateFailureNote(out.Err)
		case out.Record != nil:
			ResolveAfter(rec, out.Record, res.Dispositions)
		}
	}

	row.Title = types.TruncateTitle(rec.Title)
	row.SetDispositions(res.Dispositions)
	row.Permalink = r.permalinkFor(rec.MMSID)
	return row, statusOK
}

func (r *Runner) permalinkFor(mmsID string) string {
	return "<" + strings.ReplaceAll(r.permalink, "{MMSID}", mmsID) + ">"
}
