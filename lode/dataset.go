package lode

import (
	"strings"

	"github.com/justapithecus/lode/lode"
)

// NewDataset opens the run dataset over factory. Reads and writes share
// the same codec and layout.
func NewDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("category", "day", "run_id", "record_kind"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// isRunSnapshot checks if a snapshot contains a run record by examining
// file paths for the record_kind=run partition.
func isRunSnapshot(snap *lode.DatasetSnapshot) bool {
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, "record_kind", RecordKindRun) {
			return true
		}
	}
	return false
}

// snapshotMatchesFilter checks if a snapshot's file paths match
// the given partition key=value filter.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks if a Hive-partitioned path contains an exact
// key=value segment, so run_id=run-1 does not match run_id=run-10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
