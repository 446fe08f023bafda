// Package types defines core domain types for anxeod.
//
//nolint:revive // types is a common Go package naming convention
package types

// FileCategory identifies the workflow an input file belongs to.
// The value is the vendor code embedded in the file name.
type FileCategory string

const (
	// AnnexCampusAccession is a new accession at the Hay annex.
	AnnexCampusAccession FileCategory = "QHACS"
	// AnnexCampusRefile is a refile at the Hay annex.
	AnnexCampusRefile FileCategory = "QHREF"
	// MainCampusAccession is a new accession at the main-campus annex.
	MainCampusAccession FileCategory = "QSACS"
	// MainCampusRefile is a refile at the main-campus annex.
	MainCampusRefile FileCategory = "QSREF"
)

// Categories lists every known category in report order.
var Categories = []FileCategory{
	AnnexCampusAccession,
	AnnexCampusRefile,
	MainCampusAccession,
	MainCampusRefile,
}

// Valid reports whether c is a known category.
func (c FileCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the vendor code.
func (c FileCategory) String() string { return string(c) }

// Field names one of the evaluated item fields.
type Field string

const (
	FieldLibrary     Field = "library"
	FieldLocation    Field = "location"
	FieldBaseStatus  Field = "base_status"
	FieldProcessType Field = "process_type"
)

// Fields lists the evaluated fields in report column order.
var Fields = []Field{FieldLibrary, FieldLocation, FieldBaseStatus, FieldProcessType}

const (
	// NoChange is the planned value of a field that needs no correction.
	NoChange = "no-change"
	// NoChangeMade is the after value of a field the update did not alter.
	NoChangeMade = "no-change-made"
)

// FieldDisposition is the per-field outcome for one barcode.
type FieldDisposition struct {
	Before  string `json:"before"`
	Planned string `json:"planned"`
	After   string `json:"after"`
}

// NewDisposition returns a disposition with the given before value and
// default planned and after markers.
func NewDisposition(before string) *FieldDisposition {
	return &FieldDisposition{Before: before, Planned: NoChange, After: NoChangeMade}
}
