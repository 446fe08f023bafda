package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/types"
)

// EmailThreshold is the problematic-barcode count a category must exceed
// before a run sends its report.
const EmailThreshold = 1

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	RunID      string                  `json:"run_id"`
	Version    string                  `json:"version"`
	Mode       string                  `json:"mode"`
	DryRun     bool                    `json:"dry_run"`
	StartedAt  time.Time               `json:"started_at"`
	DurationMs int64                   `json:"duration_ms"`
	ExitCode   int                     `json:"exit_code"`
	Emailed    bool                    `json:"emailed"`
	Message    string                  `json:"message,omitempty"`
	Categories []types.CategorySummary `json:"categories"`
	Metrics    *metrics.Snapshot       `json:"metrics"`

	// Batches holds every processed file in order. Rows are not part of
	// the JSON report; they go to the CSV attachments.
	Batches []*types.BatchReport `json:"-"`
}

// NewRunReport starts a report for a run.
func NewRunReport(runID, mode string, dryRun bool, started time.Time) *RunReport {
	return &RunReport{
		RunID:      runID,
		Version:    types.Version,
		Mode:       mode,
		DryRun:     dryRun,
		StartedAt:  started.UTC(),
		Categories: []types.CategorySummary{},
	}
}

// Add appends a processed batch.
func (r *RunReport) Add(b *types.BatchReport) {
	r.Batches = append(r.Batches, b)
	r.Categories = types.Summarize(r.Batches)
}

// ShouldEmail reports whether any category has more than EmailThreshold
// problematic barcodes.
func (r *RunReport) ShouldEmail() bool {
	return ShouldEmail(r.Categories)
}

// ShouldEmail reports whether any summary exceeds EmailThreshold.
func ShouldEmail(summaries []types.CategorySummary) bool {
	for _, s := range summaries {
		if s.CountProblematic > EmailThreshold {
			return true
		}
	}
	return false
}

// Finish stamps the duration, exit code and final metrics.
func (r *RunReport) Finish(snap metrics.Snapshot, exitCode int, now time.Time) {
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
	r.ExitCode = exitCode
	r.Metrics = &snap
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRunReportTo writes report JSON to any writer (for testing).
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
