package types //nolint:revive // types is a valid package name

import "testing"

func TestFileCategory_Valid(t *testing.T) {
	tests := []struct {
		cat  FileCategory
		want bool
	}{
		{AnnexCampusAccession, true},
		{AnnexCampusRefile, true},
		{MainCampusAccession, true},
		{MainCampusRefile, true},
		{"QXXXX", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			if got := tt.cat.Valid(); got != tt.want {
				t.Errorf("FileCategory(%q).Valid() = %v, want %v", tt.cat, got, tt.want)
			}
		})
	}
}

func TestNewDisposition_Defaults(t *testing.T) {
	d := NewDisposition("x")
	if d.Planned != NoChange {
		t.Errorf("Planned = %q, want %q", d.Planned, NoChange)
	}
	if d.After != NoChangeMade {
		t.Errorf("After = %q, want %q", d.After, NoChangeMade)
	}
}
