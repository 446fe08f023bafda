package housekeeping

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/justapithecus/anxeod/iox"
	"github.com/justapithecus/anxeod/types"
)

// MonthlyPrefix marks the original scanner files that feed the monthly
// combine.
const MonthlyPrefix = "ORIG"

// MonthlyResult describes one combined category file.
type MonthlyResult struct {
	Category   types.FileCategory `json:"category"`
	Path       string             `json:"path"`
	Barcodes   int                `json:"barcodes"`
	Duplicates int                `json:"duplicates"`
	Sources    []string           `json:"sources"`
}

// MonthlyFiles returns the ORIG_<CODE>_<YYYY-MM-DD>T... files in dir whose
// date falls in the same year and month as month, sorted by name.
func MonthlyFiles(dir string, month time.Time) ([]string, error) {
	names, err := ScanDirectory(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		cat, day, ok := parseMonthlyName(name)
		if !ok || !cat.Valid() {
			continue
		}
		if day.Year() == month.Year() && day.Month() == month.Month() {
			out = append(out, name)
		}
	}
	return out, nil
}

func parseMonthlyName(name string) (types.FileCategory, time.Time, bool) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) != 3 || parts[0] != MonthlyPrefix {
		return "", time.Time{}, false
	}
	dateStr, _, _ := strings.Cut(parts[2], "T")
	dateStr = strings.TrimSuffix(dateStr, filepath.Ext(dateStr))
	day, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return "", time.Time{}, false
	}
	return types.FileCategory(parts[1]), day, true
}

// CombineMonthly merges the month's ORIG files per category, keeping the
// first occurrence of each barcode, and writes <CODE>_<YYYY-MM>_monthly.txt
// into outputDir. Categories with no files produce no output.
func CombineMonthly(sourceDir, outputDir string, month time.Time, enc string) ([]MonthlyResult, error) {
	files, err := MonthlyFiles(sourceDir, month)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		barcodes []string
		seen     map[string]bool
		dups     int
		sources  []string
	}
	buckets := make(map[types.FileCategory]*bucket)

	for _, name := range files {
		cat, _, _ := parseMonthlyName(name)
		b, ok := buckets[cat]
		if !ok {
			b = &bucket{seen: make(map[string]bool)}
			buckets[cat] = b
		}
		barcodes, err := ReadBarcodes(filepath.Join(sourceDir, name), enc)
		if err != nil {
			return nil, err
		}
		b.sources = append(b.sources, name)
		for _, bc := range barcodes {
			if b.seen[bc] {
				b.dups++
				continue
			}
			b.seen[bc] = true
			b.barcodes = append(b.barcodes, bc)
		}
	}

	var out []MonthlyResult
	for _, cat := range types.Categories {
		b, ok := buckets[cat]
		if !ok {
			continue
		}
		path := filepath.Join(outputDir, MonthlyName(cat, month))
		var content string
		if len(b.barcodes) > 0 {
			content = strings.Join(b.barcodes, "\n") + "\n"
		}
		if err := iox.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write monthly %s: %w", path, err)
		}
		out = append(out, MonthlyResult{
			Category:   cat,
			Path:       path,
			Barcodes:   len(b.barcodes),
			Duplicates: b.dups,
			Sources:    slices.Clone(b.sources),
		})
	}
	return out, nil
}

// MonthlyName is the combined file name for cat in month.
func MonthlyName(cat types.FileCategory, month time.Time) string {
	return fmt.Sprintf("%s_%s_monthly.txt", cat, month.Format("2006-01"))
}

// EnsureDir creates dir if it does not exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
