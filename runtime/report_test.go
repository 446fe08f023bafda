package runtime

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/types"
)

func batch(cat types.FileCategory, seen, problematic int, notFound ...string) *types.BatchReport {
	return &types.BatchReport{
		Category: cat,
		Counts: types.BatchCounts{
			BarcodesSeen:        seen,
			BarcodesProblematic: problematic,
			BarcodesNotFound:    notFound,
		},
	}
}

func TestShouldEmail_StrictThreshold(t *testing.T) {
	tests := []struct {
		name    string
		batches []*types.BatchReport
		want    bool
	}{
		{"none", nil, false},
		{"one problematic", []*types.BatchReport{batch(types.MainCampusRefile, 5, 1)}, false},
		{"two problematic", []*types.BatchReport{batch(types.MainCampusRefile, 5, 2)}, true},
		{"spread across categories", []*types.BatchReport{
			batch(types.MainCampusRefile, 5, 1),
			batch(types.AnnexCampusRefile, 5, 1),
		}, false},
		{"same category across files", []*types.BatchReport{
			batch(types.MainCampusRefile, 5, 1),
			batch(types.MainCampusRefile, 5, 1),
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunReport("run-1", "run", false, time.Now())
			for _, b := range tt.batches {
				r.Add(b)
			}
			if got := r.ShouldEmail(); got != tt.want {
				t.Errorf("ShouldEmail() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunReport_Summaries(t *testing.T) {
	r := NewRunReport("run-1", "run", false, time.Now())
	r.Add(batch(types.MainCampusRefile, 3, 1, "C"))
	r.Add(batch(types.AnnexCampusAccession, 2, 0))

	if len(r.Categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(r.Categories))
	}
	// ordered by category list, not insertion
	if r.Categories[0].Category != types.AnnexCampusAccession {
		t.Errorf("first category = %q, want %q", r.Categories[0].Category, types.AnnexCampusAccession)
	}
	if got := r.Categories[1].BarcodesNotFound; len(got) != 1 || got[0] != "C" {
		t.Errorf("not found = %v, want [C]", got)
	}
}

func TestWriteRunReport_File(t *testing.T) {
	started := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	r := NewRunReport("run-001", "run", true, started)
	r.Add(batch(types.MainCampusRefile, 3, 2, "C"))
	r.Emailed = true
	r.Finish(metrics.Snapshot{BarcodesSeen: 3, RunID: "run-001"}, 0, started.Add(1500*time.Millisecond))

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteRunReport(r, path); err != nil {
		t.Fatalf("WriteRunReport: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["run_id"] != "run-001" {
		t.Errorf("run_id = %v, want run-001", got["run_id"])
	}
	if got["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v, want 1500", got["duration_ms"])
	}
	if got["dry_run"] != true || got["emailed"] != true {
		t.Errorf("flags = dry_run:%v emailed:%v", got["dry_run"], got["emailed"])
	}
	if _, ok := got["Batches"]; ok {
		t.Error("batches with rows should not be serialized")
	}
	cats := got["categories"].([]any)
	first := cats[0].(map[string]any)
	if first["count_problematic_barcodes"] != float64(2) {
		t.Errorf("count_problematic_barcodes = %v, want 2", first["count_problematic_barcodes"])
	}
}

func TestWriteRunReport_EmptyPath(t *testing.T) {
	if err := WriteRunReport(NewRunReport("r", "run", false, time.Now()), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWriteRunReportTo(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRunReportTo(NewRunReport("r", "process", false, time.Now()), &buf); err != nil {
		t.Fatalf("writeRunReportTo: %v", err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("}\n")) {
		t.Errorf("report should end with a newline, got %q", buf.String())
	}
}
