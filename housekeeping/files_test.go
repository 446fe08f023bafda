package housekeeping

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/justapithecus/anxeod/category"
	"github.com/justapithecus/anxeod/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestCheckDirectories(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "plain.txt", "x")

	if err := CheckDirectories(dir); err != nil {
		t.Errorf("existing dir: %v", err)
	}
	if err := CheckDirectories(dir, file); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("file: err = %v, want ErrNotDirectory", err)
	}
	if err := CheckDirectories(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing: err = %v, want not exist", err)
	}
}

func TestScanDirectory_SkipsDirsAndDSStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "QSREF_b.txt", "")
	writeFile(t, dir, "QHACS_a.txt", "")
	writeFile(t, dir, ".DS_Store", "")
	if err := os.Mkdir(filepath.Join(dir, "QSACS_dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ScanDirectory(dir)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	if diff := cmp.Diff([]string{"QHACS_a.txt", "QSREF_b.txt"}, got); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestNewFiles(t *testing.T) {
	prefixes := []string{"QSACS", "QHACS", "QSREF", "QHREF"}
	names := []string{"QSREF_2.txt", "notes.txt", "QHACS_1.txt", "QSACS_old.txt", "QS", "ORIG_QSREF_2026-03-01.txt"}
	tracked := []string{"QSACS_old.txt"}

	got := NewFiles(prefixes, names, tracked)
	if diff := cmp.Diff([]string{"QHACS_1.txt", "QSREF_2.txt"}, got); diff != "" {
		t.Errorf("new files mismatch (-want +got):\n%s", diff)
	}
}

func TestArchive(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "QSREF_scan.txt", "A\nB\n")
	writeFile(t, src, "QHACS_scan.txt", "C\n")
	now := time.Date(2026, 3, 2, 17, 4, 5, 0, time.Local)

	got, err := Archive([]string{"QSREF_scan.txt", "QHACS_scan.txt"}, src, dst, now)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("archived = %d, want 2", len(got))
	}
	if want := filepath.Join(dst, "QSREF_2026-03-02T17-04-05.txt"); got[0].ArchivePath != want {
		t.Errorf("archive path = %q, want %q", got[0].ArchivePath, want)
	}
	if got[1].Category != types.AnnexCampusAccession {
		t.Errorf("category = %q", got[1].Category)
	}
	data, err := os.ReadFile(got[0].ArchivePath)
	if err != nil || string(data) != "A\nB\n" {
		t.Errorf("archived content = %q, %v", data, err)
	}
	// source is left in place
	if _, err := os.Stat(filepath.Join(src, "QSREF_scan.txt")); err != nil {
		t.Errorf("source removed: %v", err)
	}
}

func TestArchive_UnclassifiedCopiesNothing(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "QSREF_ok.txt", "A\n")
	writeFile(t, src, "QXXXX_bad.txt", "B\n")

	_, err := Archive([]string{"QSREF_ok.txt", "QXXXX_bad.txt"}, src, dst, time.Now())
	if !errors.Is(err, category.ErrUnrecognized) {
		t.Fatalf("err = %v, want ErrUnrecognized", err)
	}
	entries, _ := os.ReadDir(dst)
	if len(entries) != 0 {
		t.Errorf("archive dir has %d entries, want 0", len(entries))
	}
}

func TestDeleteProcessed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "QSREF_a.txt", "")
	writeFile(t, dir, "QSREF_keep.txt", "")

	if err := DeleteProcessed([]string{"QSREF_a.txt", "QSREF_gone.txt"}, dir); err != nil {
		t.Fatalf("DeleteProcessed: %v", err)
	}
	names, _ := ScanDirectory(dir)
	if diff := cmp.Diff([]string{"QSREF_keep.txt"}, names); diff != "" {
		t.Errorf("remaining mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBarcodes(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "QSREF.txt", "\ufeff31236001\r\n  31236002 \n\n31236001\n")

	got, err := ReadBarcodes(p, "")
	if err != nil {
		t.Fatalf("ReadBarcodes: %v", err)
	}
	if diff := cmp.Diff([]string{"31236001", "31236002", "31236001"}, got); diff != "" {
		t.Errorf("barcodes mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBarcodes_Latin1(t *testing.T) {
	// 0xE9 is e-acute in ISO-8859-1
	got, err := DecodeBarcodes(strings.NewReader("caf\xe9\n"), "latin-1")
	if err != nil {
		t.Fatalf("DecodeBarcodes: %v", err)
	}
	if len(got) != 1 || got[0] != "café" {
		t.Errorf("got %q, want [café]", got)
	}
}

func TestLookupEncoding_Unknown(t *testing.T) {
	if _, err := LookupEncoding("ebcdic"); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}
