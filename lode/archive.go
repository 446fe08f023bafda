// Package lode archives completed runs in a Lode dataset.
//
// Each run is written as one snapshot holding a run record plus one record
// per processed file, Hive-partitioned by category, day and run_id. The
// per-file CSV reports land beside the records as sidecar files.
package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/report"
	"github.com/justapithecus/anxeod/runtime"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "anxeod"

// DeriveDay computes the partition day from run start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition values for one run.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Day is the partition key derived from run start time.
	Day string
	// RunID is the partition key for run identifier.
	RunID string
}

// Archive writes run records and report sidecars to a Lode store.
type Archive struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	collector *metrics.Collector
}

// NewArchive creates an archive over factory.
// Use lode.NewMemoryFactory() for testing.
func NewArchive(cfg Config, factory lode.StoreFactory) (*Archive, error) {
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.RunID == "" {
		return nil, errors.New("archive run id is required")
	}
	if cfg.Day == "" {
		return nil, errors.New("archive day is required")
	}
	ds, err := NewDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return &Archive{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}, nil
}

// WithMetrics attaches a collector that counts archive writes.
func (a *Archive) WithMetrics(c *metrics.Collector) *Archive {
	a.collector = c
	return a
}

// WriteRun stores the run record, one record per batch, and each batch's
// CSV report as a sidecar file. Sidecars are written after the records so
// a failed record write leaves nothing behind.
func (a *Archive) WriteRun(ctx context.Context, r *runtime.RunReport) error {
	if r == nil {
		return errors.New("nil run report")
	}

	records := make([]any, 0, len(r.Batches)+1)
	records = append(records, toRunRecordMap(r, a.config))
	for _, b := range r.Batches {
		records = append(records, toBatchRecordMap(b, a.config))
	}

	if _, err := a.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		a.collector.IncArchiveWriteFailure()
		return WrapWriteError(err, a.config.Dataset)
	}
	a.collector.IncArchiveWriteSuccess()

	for _, b := range r.Batches {
		data, err := report.CSVBytes(b.Rows)
		if err != nil {
			return err
		}
		name := report.BatchCSVName(b)
		if err := a.PutFile(ctx, string(b.Category), name, data); err != nil {
			a.collector.IncArchiveWriteFailure()
			return err
		}
		a.collector.IncArchiveWriteSuccess()
	}
	return nil
}

// PutFile writes a sidecar file to the store at the computed Hive path.
// The filename must not contain path separators or "..".
func (a *Archive) PutFile(ctx context.Context, category, filename string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid sidecar filename %q", filename)
	}
	store, err := a.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, a.config.Dataset)
	}
	path := a.buildFilePath(category, filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

// Close releases archive resources.
func (a *Archive) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// getOrCreateStore lazily initializes the Store from the factory.
func (a *Archive) getOrCreateStore() (lode.Store, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = a.storeFactory()
	})
	return a.store, a.storeErr
}

// buildFilePath computes the Hive-partitioned path for a sidecar file.
// Format: datasets/<dataset>/partitions/category=<c>/day=<d>/run_id=<r>/files/<filename>
func (a *Archive) buildFilePath(category, filename string) string {
	return SidecarPath(a.config.Dataset, category, a.config.Day, a.config.RunID, filename)
}

// SidecarPath is the store key for a sidecar file.
func SidecarPath(dataset, category, day, runID, filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/category=%s/day=%s/run_id=%s/files/%s",
		dataset, category, day, runID, filename)
}
