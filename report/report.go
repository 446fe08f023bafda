// Package report renders batch reports as CSV, XLSX and plain-text
// summaries for the end-of-day email.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/justapithecus/anxeod/types"
)

// WriteCSV writes the header and one record per row using the spreadsheet
// dialect (comma separated, CRLF line endings).
func WriteCSV(w io.Writer, rows []types.ReportRow) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(types.ReportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.Barcode, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// CSVBytes renders rows as CSV.
func CSVBytes(rows []types.ReportRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CSVName derives the attachment name for a source file: everything before
// the first dot, plus ".csv".
func CSVName(sourceFile string) string {
	base := filepath.Base(sourceFile)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		base = "report"
	}
	return base + ".csv"
}

// BatchCSVName names a batch's CSV: after the archived copy when there is
// one, else after the source file, else after the category.
func BatchCSVName(b *types.BatchReport) string {
	switch {
	case b.ArchivePath != "":
		return CSVName(b.ArchivePath)
	case b.SourceFile != "":
		return CSVName(b.SourceFile)
	}
	return CSVName(string(b.Category))
}

// column widths for the workbook, in ReportHeader order
var colWidths = []float64{32, 18, 36, 30, 40, 30, 30, 40, 30, 26, 36, 26, 36, 44, 36, 70}

// WriteXLSX renders every batch as a sheet of one workbook.
func WriteXLSX(batches []*types.BatchReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	used := make(map[string]bool)
	first := ""
	for i, b := range batches {
		sheet := sheetName(b, i, used)
		if first == "" {
			first = sheet
		}
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("xlsx sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, b.Rows, headerStyle); err != nil {
			return nil, err
		}
	}

	if first != "" {
		// drop the default sheet once a real one exists
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("xlsx delete default sheet: %w", err)
		}
		idx, _ := f.GetSheetIndex(first)
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, rows []types.ReportRow, headerStyle int) error {
	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	for i, h := range types.ReportHeader {
		if err := write(i+1, 1, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(types.ReportHeader), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)

	for r, row := range rows {
		for c, v := range row.Record() {
			if err := write(c+1, r+2, v); err != nil {
				return fmt.Errorf("xlsx row %s: %w", row.Barcode, err)
			}
		}
	}

	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}
	return nil
}

// sheetName picks a unique sheet name of at most 31 characters.
func sheetName(b *types.BatchReport, i int, used map[string]bool) string {
	name := string(b.Category)
	if b.SourceFile != "" {
		name = strings.TrimSuffix(filepath.Base(b.SourceFile), filepath.Ext(b.SourceFile))
	}
	if len(name) > 31 {
		name = name[:31]
	}
	if name == "" || name == "Sheet1" {
		name = fmt.Sprintf("batch-%d", i+1)
	}
	candidate := name
	for n := 2; used[candidate]; n++ {
		suffix := fmt.Sprintf("-%d", n)
		base := name
		if len(base)+len(suffix) > 31 {
			base = base[:31-len(suffix)]
		}
		candidate = base + suffix
	}
	used[candidate] = true
	return candidate
}

// Summary renders the email body: a timestamp and the per-category
// aggregates as indented JSON.
func Summary(summaries []types.CategorySummary, now time.Time) (string, error) {
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Annex end-of-day report, %s\n\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString("Summary by category:\n")
	b.Write(data)
	b.WriteString("\n")
	return b.String(), nil
}
