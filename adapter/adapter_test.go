package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/justapithecus/anxeod/runtime"
	"github.com/justapithecus/anxeod/types"
)

func TestNewRunCompletedEvent(t *testing.T) {
	started := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	r := runtime.NewRunReport("run-001", "run", false, started)
	r.Add(&types.BatchReport{Category: types.MainCampusRefile, SourceFile: "QSREF_a.txt",
		Counts: types.BatchCounts{BarcodesSeen: 3, BarcodesProblematic: 2}})
	r.Emailed = true

	e := NewRunCompletedEvent(r, OutcomeSuccess, "2026-03-02", "file:///archive", started.Add(time.Minute))

	if e.EventType != EventTypeRunCompleted || e.ContractVersion != types.ReportSchemaVersion {
		t.Errorf("envelope = %s %s", e.EventType, e.ContractVersion)
	}
	if len(e.Files) != 1 || e.Files[0] != "QSREF_a.txt" {
		t.Errorf("files = %v", e.Files)
	}
	if !e.Emailed || e.Categories[0].CountProblematic != 2 {
		t.Errorf("event = %+v", e)
	}
	if e.Timestamp != "2026-03-02T17:01:00Z" {
		t.Errorf("timestamp = %s", e.Timestamp)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), "test", 2, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_PermanentStops(t *testing.T) {
	calls := 0
	perm := errors.New("bad request")
	err := Retry(t.Context(), "test", 3, func(context.Context) error {
		calls++
		return perm
	}, func(err error) bool { return errors.Is(err, perm) })
	if !errors.Is(err, perm) || !strings.Contains(err.Error(), "non-retriable") {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := Retry(ctx, "test", 3, func(context.Context) error { return nil }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
