// Package evaluate decides which corrections an item record needs.
//
// Evaluation is pure: it reads a fetched record and returns the planned
// per-field dispositions plus an update payload. It never mutates the input
// and never talks to the network.
package evaluate

import (
	"fmt"

	"github.com/justapithecus/anxeod/category"
	"github.com/justapithecus/anxeod/types"
)

// Gate is the result of the process-type check.
type Gate int

const (
	// GateContinue means the remaining fields were evaluated.
	GateContinue Gate = iota
	// GateSkip means evaluation stopped; no further fields were planned.
	GateSkip
)

func (g Gate) String() string {
	if g == GateSkip {
		return "skip"
	}
	return "continue"
}

var (
	// Technical is the process type assigned by the catalog migration.
	Technical = types.Code("TECHNICAL", "Technical - Migration")
	// InPlace is the canonical base status of a shelved item.
	InPlace = types.Code("1", "Item in place")
)

// Result is the outcome of evaluating one record.
type Result struct {
	// Payload is a modified copy of the record, or nil when nothing changes.
	Payload *types.ItemRecord
	// Dispositions holds one entry per evaluated field. Nil for
	// unresolvable records.
	Dispositions map[types.Field]*types.FieldDisposition
	Gate         Gate
	// Unresolvable is set when the record carries a gateway error.
	Unresolvable bool
}

// Evaluate plans corrections for rec under cat.
//
// Order: unresolvable records stop immediately; process type gates the
// rest; base status, library and location are then compared with their
// canonical values.
func Evaluate(cat types.FileCategory, rec *types.ItemRecord) (Result, error) {
	if rec == nil {
		return Result{}, fmt.Errorf("evaluate: nil record")
	}
	if rec.Error != nil {
		return Result{Gate: GateSkip, Unresolvable: true}, nil
	}
	target, ok := category.Targets(cat)
	if !ok {
		return Result{}, fmt.Errorf("evaluate: %w: %q", category.ErrUnrecognized, cat)
	}

	disp := make(map[types.Field]*types.FieldDisposition, len(types.Fields))
	for _, f := range types.Fields {
		disp[f] = types.NewDisposition(rec.Get(f).String())
	}
	payload := rec.Clone()

	plan := func(f types.Field, want types.CodeDesc) {
		if rec.Get(f).Equal(want) {
			return
		}
		payload.Set(f, want)
		disp[f].Planned = PlannedText(want)
	}

	switch {
	case rec.ProcessType.Equal(Technical):
		plan(types.FieldProcessType, types.Cleared)
	case rec.ProcessType.Equal(types.Cleared):
	default:
		return Result{Dispositions: disp, Gate: GateSkip}, nil
	}

	plan(types.FieldBaseStatus, InPlace)
	plan(types.FieldLibrary, target.Library)
	plan(types.FieldLocation, target.Location)

	res := Result{Dispositions: disp, Gate: GateContinue}
	if len(payload.Changed()) > 0 {
		res.Payload = payload
	}
	return res, nil
}

// PlannedText renders the report text for a planned change.
func PlannedText(want types.CodeDesc) string {
	return fmt.Sprintf("should change to ``%s``", want)
}
