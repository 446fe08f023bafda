// Package adapter publishes run-completed notifications to downstream
// systems (webhook, Redis pub/sub, AMQP exchange).
//
// The CLI owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/runtime"
	"github.com/justapithecus/anxeod/types"
)

// EventTypeRunCompleted is the only event type published.
const EventTypeRunCompleted = "run_completed"

// Run outcomes carried in RunCompletedEvent.Outcome.
const (
	OutcomeSuccess        = "success"
	OutcomeRunError       = "run_error"
	OutcomeDeliveryFailed = "delivery_failed"
)

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	ContractVersion string                  `json:"contract_version"`
	EventType       string                  `json:"event_type"` // always "run_completed"
	RunID           string                  `json:"run_id"`
	Day             string                  `json:"day"`
	Mode            string                  `json:"mode"`
	Outcome         string                  `json:"outcome"`
	DryRun          bool                    `json:"dry_run"`
	Emailed         bool                    `json:"emailed"`
	Files           []string                `json:"files"`
	Categories      []types.CategorySummary `json:"categories"`
	Metrics         *metrics.Snapshot       `json:"metrics,omitempty"`
	StoragePath     string                  `json:"storage_path,omitempty"`
	Timestamp       string                  `json:"timestamp"` // ISO 8601
	DurationMs      int64                   `json:"duration_ms"`
}

// NewRunCompletedEvent builds the event for a finished run report.
func NewRunCompletedEvent(r *runtime.RunReport, outcome, day, storagePath string, now time.Time) *RunCompletedEvent {
	files := make([]string, 0, len(r.Batches))
	for _, b := range r.Batches {
		files = append(files, b.SourceFile)
	}
	return &RunCompletedEvent{
		ContractVersion: types.ReportSchemaVersion,
		EventType:       EventTypeRunCompleted,
		RunID:           r.RunID,
		Day:             day,
		Mode:            r.Mode,
		Outcome:         outcome,
		DryRun:          r.DryRun,
		Emailed:         r.Emailed,
		Files:           files,
		Categories:      r.Categories,
		Metrics:         r.Metrics,
		StoragePath:     storagePath,
		Timestamp:       now.UTC().Format(time.RFC3339),
		DurationMs:      r.DurationMs,
	}
}

// Adapter publishes run completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a run completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry; it doubles per attempt.
const BaseBackoff = 500 * time.Millisecond

// Retry runs attempt once plus retries more times with exponential
// backoff. A nil permanent func treats every error as retriable.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		// not before the first attempt
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
