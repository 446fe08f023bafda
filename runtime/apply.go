package runtime

import (
	"context"
	"errors"

	"github.com/justapithecus/anxeod/log"
	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/types"
)

// Updater writes an item record back to the catalog.
type Updater interface {
	Update(ctx context.Context, payload *types.ItemRecord) (*types.ItemRecord, error)
}

// ApplyOutcome is the result of one Apply call.
type ApplyOutcome struct {
	// Attempted is false when there was nothing to send or the applier
	// is in dry-run mode.
	Attempted bool
	// Record is the record returned by the catalog on success.
	Record *types.ItemRecord
	// Err is set when the update was attempted and failed.
	Err error
}

// Applier sends update payloads. Failures are logged and reported in the
// outcome; they never abort the batch.
type Applier struct {
	updater   Updater
	logger    *log.Logger
	collector *metrics.Collector
	dryRun    bool
}

// NewApplier creates an Applier. logger and collector may be nil.
func NewApplier(u Updater, logger *log.Logger, collector *metrics.Collector, dryRun bool) *Applier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Applier{updater: u, logger: logger, collector: collector, dryRun: dryRun}
}

// Apply sends payload. A nil payload makes no call.
func (a *Applier) Apply(ctx context.Context, payload *types.ItemRecord) ApplyOutcome {
	if payload == nil {
		return ApplyOutcome{}
	}
	if a.dryRun {
		a.logger.Info("dry run, update skipped", map[string]any{
			"barcode": payload.Barcode,
			"fields":  payload.Changed(),
		})
		return ApplyOutcome{}
	}

	updated, err := a.updater.Update(ctx, payload)
	if err != nil {
		a.collector.IncUpdatesFailed()
		a.logger.Error("item update failed", map[string]any{
			"barcode": payload.Barcode,
			"error":   err.Error(),
		})
		return ApplyOutcome{Attempted: true, Err: err}
	}

	a.collector.IncUpdatesApplied()
	a.logger.Info("item updated", map[string]any{
		"barcode": payload.Barcode,
		"fields":  payload.Changed(),
	})
	return ApplyOutcome{Attempted: true, Record: updated}
}

// ResolveAfter records the returned value of every field that differs from
// its value before the update. Other fields keep their default marker.
func ResolveAfter(before, updated *types.ItemRecord, dispositions map[types.Field]*types.FieldDisposition) {
	if before == nil || updated == nil {
		return
	}
	for _, f := range types.Fields {
		d, ok := dispositions[f]
		if !ok {
			continue
		}
		if got := updated.Get(f); !got.Equal(before.Get(f)) {
			d.After = got.String()
		}
	}
}

// updateFailureNote renders the report note for a failed update.
func updateFailureNote(err error) string {
	msg := err.Error()
	var ge *types.GatewayError
	if errors.As(err, &ge) {
		msg = ge.Message
	}
	return "update error-response, ``" + msg + "``"
}
