// Package category maps input file names to workflow categories and their
// canonical shelving targets.
package category

import (
	"errors"
	"fmt"
	"strings"

	"github.com/justapithecus/anxeod/types"
)

var (
	// ErrUnrecognized is returned when a file name carries no known category code.
	ErrUnrecognized = errors.New("unrecognized file category")
	// ErrAmbiguous is returned when a file name carries more than one category code.
	ErrAmbiguous = errors.New("ambiguous file category")
)

// Target is the canonical library and location for a category.
type Target struct {
	Library  types.CodeDesc
	Location types.CodeDesc
}

var (
	annexTarget = Target{
		Library:  types.Code("HAY", "John Hay Library"),
		Location: types.Code("HAYSTOR", "Annex Hay"),
	}
	mainTarget = Target{
		Library:  types.Code("ROCK", "Rockefeller Library"),
		Location: types.Code("RKSTORAGE", "Annex Storage"),
	}
)

// Classify returns the category whose code appears in fileName.
// Exactly one distinct code must be present.
func Classify(fileName string) (types.FileCategory, error) {
	var found []types.FileCategory
	for _, cat := range types.Categories {
		if strings.Contains(fileName, string(cat)) {
			found = append(found, cat)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrUnrecognized, fileName)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %v", ErrAmbiguous, fileName, found)
	}
}

// Parse returns the category for a bare vendor code such as "QSREF".
func Parse(code string) (types.FileCategory, error) {
	cat := types.FileCategory(strings.ToUpper(strings.TrimSpace(code)))
	if !cat.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnrecognized, code)
	}
	return cat, nil
}

// Targets returns the canonical library and location for cat.
// The second result is false for unknown categories.
func Targets(cat types.FileCategory) (Target, bool) {
	switch cat {
	case types.AnnexCampusAccession, types.AnnexCampusRefile:
		return cloneTarget(annexTarget), true
	case types.MainCampusAccession, types.MainCampusRefile:
		return cloneTarget(mainTarget), true
	}
	return Target{}, false
}

func cloneTarget(t Target) Target {
	lib, loc := *t.Library.Desc, *t.Location.Desc
	return Target{
		Library:  types.CodeDesc{Value: t.Library.Value, Desc: &lib},
		Location: types.CodeDesc{Value: t.Location.Value, Desc: &loc},
	}
}
