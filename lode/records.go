package lode

import (
	"time"

	"github.com/justapithecus/anxeod/runtime"
	"github.com/justapithecus/anxeod/types"
)

// RecordKind discriminator values.
const (
	RecordKindRun   = "run"
	RecordKindBatch = "batch"
)

// RunCategory is the category partition value for run-level records.
const RunCategory = "ALL"

// RunRecord is the run-level entry read back by history queries.
type RunRecord struct {
	RunID          string    `json:"run_id"`
	Day            string    `json:"day"`
	Version        string    `json:"version"`
	Mode           string    `json:"mode"`
	DryRun         bool      `json:"dry_run"`
	Emailed        bool      `json:"emailed"`
	ExitCode       int       `json:"exit_code"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
	Files          int64     `json:"files"`
	Barcodes       int64     `json:"barcodes"`
	Problematic    int64     `json:"problematic"`
	NotFound       int64     `json:"not_found"`
	UpdatesApplied int64     `json:"updates_applied"`
}

// toRunRecordMap converts a finished run report to a map for storage.
// Lode HiveLayout requires records as map[string]any.
func toRunRecordMap(r *runtime.RunReport, cfg Config) map[string]any {
	var barcodes, problematic, notFound int
	for _, s := range r.Categories {
		barcodes += s.CountBarcodes
		problematic += s.CountProblematic
		notFound += len(s.BarcodesNotFound)
	}
	m := map[string]any{
		"record_kind": RecordKindRun,
		"run_id":      cfg.RunID,
		"category":    RunCategory,
		"day":         cfg.Day,
		"version":     r.Version,
		"mode":        r.Mode,
		"dry_run":     r.DryRun,
		"emailed":     r.Emailed,
		"exit_code":   r.ExitCode,
		"started_at":  r.StartedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms": r.DurationMs,
		"files":       len(r.Batches),
		"barcodes":    barcodes,
		"problematic": problematic,
		"not_found":   notFound,
	}
	if r.Message != "" {
		m["message"] = r.Message
	}
	if r.Metrics != nil {
		m["updates_applied"] = r.Metrics.UpdatesApplied
		m["updates_failed"] = r.Metrics.UpdatesFailed
		m["gateway_calls"] = r.Metrics.GatewayCalls
	}
	return m
}

// toBatchRecordMap converts one processed file to a map for storage.
func toBatchRecordMap(b *types.BatchReport, cfg Config) map[string]any {
	notFound := b.Counts.BarcodesNotFound
	if notFound == nil {
		notFound = []string{}
	}
	return map[string]any{
		"record_kind":        RecordKindBatch,
		"run_id":             cfg.RunID,
		"category":           string(b.Category),
		"day":                cfg.Day,
		"source_file":        b.SourceFile,
		"archive_path":       b.ArchivePath,
		"count_barcodes":     b.Counts.BarcodesSeen,
		"count_problematic":  b.Counts.BarcodesProblematic,
		"barcodes_not_found": notFound,
	}
}

// fromRunRecordMap reads back a run record. Fields decoded from JSONL come
// back as float64, so numbers go through toInt64.
func fromRunRecordMap(m map[string]any) RunRecord {
	rec := RunRecord{
		RunID:          toString(m["run_id"]),
		Day:            toString(m["day"]),
		Version:        toString(m["version"]),
		Mode:           toString(m["mode"]),
		DryRun:         toBool(m["dry_run"]),
		Emailed:        toBool(m["emailed"]),
		ExitCode:       int(toInt64(m["exit_code"])),
		DurationMs:     toInt64(m["duration_ms"]),
		Files:          toInt64(m["files"]),
		Barcodes:       toInt64(m["barcodes"]),
		Problematic:    toInt64(m["problematic"]),
		NotFound:       toInt64(m["not_found"]),
		UpdatesApplied: toInt64(m["updates_applied"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, toString(m["started_at"])); err == nil {
		rec.StartedAt = ts
	}
	return rec
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
