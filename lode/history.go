package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoRunsFound is returned when no run records exist in the dataset.
var ErrNoRunsFound = errors.New("no archived runs found")

// HistoryFilter narrows a history query. Empty fields match everything.
type HistoryFilter struct {
	Day   string
	RunID string
	// Category keeps runs that processed a file of this category.
	Category string
	// Limit caps the number of runs returned; 0 means no cap.
	Limit int
}

// RecentRuns reads run records newest first.
// Returns ErrNoRunsFound if nothing matches.
func RecentRuns(ctx context.Context, ds lode.Dataset, f HistoryFilter) ([]RunRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	var out []RunRecord
	// snapshots are ordered by creation time
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !isRunSnapshot(snap) {
			continue
		}
		if !snapshotMatchesFilter(snap, "run_id", f.RunID) ||
			!snapshotMatchesFilter(snap, "day", f.Day) ||
			!snapshotMatchesFilter(snap, "category", f.Category) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are
		// authoritative.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindRun {
				continue
			}
			if f.RunID != "" && toString(record["run_id"]) != f.RunID {
				continue
			}
			if f.Day != "" && toString(record["day"]) != f.Day {
				continue
			}
			out = append(out, fromRunRecordMap(record))
		}
		if f.Limit > 0 && len(out) >= f.Limit {
			out = out[:f.Limit]
			break
		}
	}

	if len(out) == 0 {
		return nil, ErrNoRunsFound
	}
	return out, nil
}
