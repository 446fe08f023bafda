package types

import "unicode/utf8"

// Per-barcode report notes.
const (
	NoteLookupFailed = "could not query barcode"
	NoteNotFound     = "no match found for barcode"
)

// ReportHeader is the column order of the per-file CSV report.
var ReportHeader = []string{
	"title", "barcode", "note",
	"library_before", "library_todo", "library_after",
	"location_before", "location_todo", "location_after",
	"base_status_before", "base_status_todo", "base_status_after",
	"process_type_before", "process_type_todo", "process_type_after",
	"bruknow_url",
}

// ReportRow is one barcode's line in the report.
// Rows for unresolvable barcodes carry only Barcode and Note.
type ReportRow struct {
	Title       string           `json:"title"`
	Barcode     string           `json:"barcode"`
	Note        string           `json:"note"`
	Library     FieldDisposition `json:"library"`
	Location    FieldDisposition `json:"location"`
	BaseStatus  FieldDisposition `json:"base_status"`
	ProcessType FieldDisposition `json:"process_type"`
	Permalink   string           `json:"bruknow_url"`
}

// SetDispositions copies per-field dispositions into the row.
func (r *ReportRow) SetDispositions(d map[Field]*FieldDisposition) {
	for f, disp := range d {
		if disp == nil {
			continue
		}
		switch f {
		case FieldLibrary:
			r.Library = *disp
		case FieldLocation:
			r.Location = *disp
		case FieldBaseStatus:
			r.BaseStatus = *disp
		case FieldProcessType:
			r.ProcessType = *disp
		}
	}
}

// Record returns the row's cells in ReportHeader order.
func (r ReportRow) Record() []string {
	return []string{
		r.Title, r.Barcode, r.Note,
		r.Library.Before, r.Library.Planned, r.Library.After,
		r.Location.Before, r.Location.Planned, r.Location.After,
		r.BaseStatus.Before, r.BaseStatus.Planned, r.BaseStatus.After,
		r.ProcessType.Before, r.ProcessType.Planned, r.ProcessType.After,
		r.Permalink,
	}
}

// TruncateTitle shortens titles longer than 30 characters to 27 plus "...".
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= 30 {
		return title
	}
	return string([]rune(title)[:27]) + "..."
}

// BatchCounts aggregates one batch.
type BatchCounts struct {
	BarcodesSeen        int      `json:"count_barcodes"`
	BarcodesProblematic int      `json:"count_problematic_barcodes"`
	BarcodesNotFound    []string `json:"barcodes_not_found"`
}

// BatchReport is the outcome of processing one input file.
type BatchReport struct {
	Category    FileCategory `json:"category"`
	SourceFile  string       `json:"source_file,omitempty"`
	ArchivePath string       `json:"archive_path,omitempty"`
	Rows        []ReportRow  `json:"rows"`
	Counts      BatchCounts  `json:"counts"`
}

// CategorySummary aggregates every batch of one category in a run.
type CategorySummary struct {
	Category         FileCategory `json:"category"`
	CountBarcodes    int          `json:"count_barcodes"`
	CountProblematic int          `json:"count_problematic_barcodes"`
	BarcodesNotFound []string     `json:"barcodes_not_found"`
	ArchivePaths     []string     `json:"archive_paths,omitempty"`
	SourceFiles      []string     `json:"source_files,omitempty"`
}

// Summarize folds batches into one summary per category, in Categories
// order. Categories without batches are omitted.
func Summarize(batches []*BatchReport) []CategorySummary {
	byCat := make(map[FileCategory]*CategorySummary)
	for _, b := range batches {
		if b == nil {
			continue
		}
		s, ok := byCat[b.Category]
		if !ok {
			s = &CategorySummary{Category: b.Category, BarcodesNotFound: []string{}}
			byCat[b.Category] = s
		}
		s.CountBarcodes += b.Counts.BarcodesSeen
		s.CountProblematic += b.Counts.BarcodesProblematic
		s.BarcodesNotFound = append(s.BarcodesNotFound, b.Counts.BarcodesNotFound...)
		if b.ArchivePath != "" {
			s.ArchivePaths = append(s.ArchivePaths, b.ArchivePath)
		}
		if b.SourceFile != "" {
			s.SourceFiles = append(s.SourceFiles, b.SourceFile)
		}
	}

	out := make([]CategorySummary, 0, len(byCat))
	for _, cat := range Categories {
		if s, ok := byCat[cat]; ok {
			out = append(out, *s)
		}
	}
	return out
}
