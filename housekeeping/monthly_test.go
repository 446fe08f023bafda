package housekeeping

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/justapithecus/anxeod/types"
)

func TestCombineMonthly(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFile(t, src, "ORIG_QSREF_2026-03-02T17-00-00.txt", "A\nB\n")
	writeFile(t, src, "ORIG_QSREF_2026-03-15T17-00-00.txt", "B\nC\n")
	writeFile(t, src, "ORIG_QHACS_2026-03-09T17-00-00.txt", "X\n")
	writeFile(t, src, "ORIG_QSREF_2026-04-01T17-00-00.txt", "Z\n")
	writeFile(t, src, "QSREF_2026-03-02T17-00-00.txt", "Y\n")

	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := CombineMonthly(src, out, month, "")
	if err != nil {
		t.Fatalf("CombineMonthly: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if got[0].Category != types.AnnexCampusAccession || got[1].Category != types.MainCampusRefile {
		t.Errorf("categories = %q, %q", got[0].Category, got[1].Category)
	}

	ref := got[1]
	if ref.Barcodes != 3 || ref.Duplicates != 1 {
		t.Errorf("QSREF counts = %d/%d, want 3/1", ref.Barcodes, ref.Duplicates)
	}
	if want := filepath.Join(out, "QSREF_2026-03_monthly.txt"); ref.Path != want {
		t.Errorf("path = %q, want %q", ref.Path, want)
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if diff := cmp.Diff("A\nB\nC\n", string(data)); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestMonthlyFiles_IgnoresMalformed(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "ORIG_QSREF_notadate.txt", "")
	writeFile(t, src, "ORIG_QXXXX_2026-03-02T17-00-00.txt", "")
	writeFile(t, src, "ORIG_QSACS_2026-03-31.txt", "")

	got, err := MonthlyFiles(src, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("MonthlyFiles: %v", err)
	}
	if diff := cmp.Diff([]string{"ORIG_QSACS_2026-03-31.txt"}, got); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}
