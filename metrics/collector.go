// Package metrics provides per-run counters.
//
// The Collector accumulates counters during a single run. It is a leaf package
// with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the run counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Files
	FilesProcessed int64 `json:"files_processed"`

	// Barcodes
	BarcodesSeen     int64 `json:"barcodes_seen"`
	LookupFailures   int64 `json:"lookup_failures"`
	BarcodesNotFound int64 `json:"barcodes_not_found"`
	GatewayErrors    int64 `json:"gateway_errors"`
	Skipped          int64 `json:"skipped"`

	// Updates
	UpdatesPlanned int64 `json:"updates_planned"`
	UpdatesApplied int64 `json:"updates_applied"`
	UpdatesFailed  int64 `json:"updates_failed"`

	// Gateway traffic
	GatewayCalls int64 `json:"gateway_calls"`

	// Delivery and archive
	EmailsSent          int64 `json:"emails_sent"`
	ArchiveWriteSuccess int64 `json:"archive_write_success"`
	ArchiveWriteFailure int64 `json:"archive_write_failure"`

	// Dimensions (informational, set at construction)
	Mode           string `json:"mode"`
	StorageBackend string `json:"storage_backend"`
	RunID          string `json:"run_id"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	filesProcessed int64

	barcodesSeen     int64
	lookupFailures   int64
	barcodesNotFound int64
	gatewayErrors    int64
	skipped          int64

	updatesPlanned int64
	updatesApplied int64
	updatesFailed  int64

	gatewayCalls int64

	emailsSent          int64
	archiveWriteSuccess int64
	archiveWriteFailure int64

	mode           string
	storageBackend string
	runID          string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend may be empty when archiving is disabled.
func NewCollector(mode, storageBackend, runID string) *Collector {
	return &Collector{
		mode:           mode,
		storageBackend: storageBackend,
		runID:          runID,
	}
}

// inc must only be called on a non-nil receiver.
func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// IncFilesProcessed records one input file fully processed.
func (c *Collector) IncFilesProcessed() {
	if c == nil {
		return
	}
	c.inc(&c.filesProcessed)
}

// --- Barcodes ---

// IncBarcodesSeen records one barcode taken from an input file.
func (c *Collector) IncBarcodesSeen() {
	if c == nil {
		return
	}
	c.inc(&c.barcodesSeen)
}

// IncLookupFailures records a lookup that failed before any envelope was read.
func (c *Collector) IncLookupFailures() {
	if c == nil {
		return
	}
	c.inc(&c.lookupFailures)
}

// IncBarcodesNotFound records a lookup answered with a not-found envelope.
func (c *Collector) IncBarcodesNotFound() {
	if c == nil {
		return
	}
	c.inc(&c.barcodesNotFound)
}

// IncGatewayErrors records a lookup answered with any other error envelope.
func (c *Collector) IncGatewayErrors() {
	if c == nil {
		return
	}
	c.inc(&c.gatewayErrors)
}

// IncSkipped records a record left alone because of its process type.
func (c *Collector) IncSkipped() {
	if c == nil {
		return
	}
	c.inc(&c.skipped)
}

// --- Updates ---

// IncUpdatesPlanned records a non-empty update payload.
func (c *Collector) IncUpdatesPlanned() {
	if c == nil {
		return
	}
	c.inc(&c.updatesPlanned)
}

// IncUpdatesApplied records an update the gateway accepted.
func (c *Collector) IncUpdatesApplied() {
	if c == nil {
		return
	}
	c.inc(&c.updatesApplied)
}

// IncUpdatesFailed records an update that failed or was rejected.
func (c *Collector) IncUpdatesFailed() {
	if c == nil {
		return
	}
	c.inc(&c.updatesFailed)
}

// IncGatewayCalls records one HTTP call to the item API.
func (c *Collector) IncGatewayCalls() {
	if c == nil {
		return
	}
	c.inc(&c.gatewayCalls)
}

// --- Delivery and archive ---
// Archive counters are per-call, not per-record.

// IncEmailsSent records a delivered report email.
func (c *Collector) IncEmailsSent() {
	if c == nil {
		return
	}
	c.inc(&c.emailsSent)
}

// IncArchiveWriteSuccess records a successful archive write.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteSuccess)
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.archiveWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FilesProcessed:      c.filesProcessed,
		BarcodesSeen:        c.barcodesSeen,
		LookupFailures:      c.lookupFailures,
		BarcodesNotFound:    c.barcodesNotFound,
		GatewayErrors:       c.gatewayErrors,
		Skipped:             c.skipped,
		UpdatesPlanned:      c.updatesPlanned,
		UpdatesApplied:      c.updatesApplied,
		UpdatesFailed:       c.updatesFailed,
		GatewayCalls:        c.gatewayCalls,
		EmailsSent:          c.emailsSent,
		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,
		Mode:                c.mode,
		StorageBackend:      c.storageBackend,
		RunID:               c.runID,
	}
}
