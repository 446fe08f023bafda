package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/justapithecus/anxeod/alma"
	"github.com/justapithecus/anxeod/alma/almatest"
	"github.com/justapithecus/anxeod/evaluate"
	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/types"
)

func mainItem(barcode string) almatest.Item {
	return almatest.Item{
		Barcode:     barcode,
		Title:       "Proceedings of the Thirty-Third Annual Meeting",
		MMSID:       "99" + barcode,
		HoldingID:   "22" + barcode,
		PID:         "23" + barcode,
		ProcessType: types.Cleared,
		BaseStatus:  evaluate.InPlace,
		Library:     types.Code("ROCK", "Rockefeller Library"),
		Location:    types.Code("RKSTORAGE", "Annex Storage"),
	}
}

func newGateway(t *testing.T, srv *almatest.Server, collector *metrics.Collector) *alma.Client {
	t.Helper()
	c, err := alma.New(alma.Config{
		ItemRoot:    srv.ItemRoot(),
		PutTemplate: srv.PutTemplate(),
		APIKey:      almatest.APIKey,
		CallDelay:   -1,
	}, alma.WithMetrics(collector))
	if err != nil {
		t.Fatalf("alma.New: %v", err)
	}
	return c
}

func TestRun_EndToEndBatch(t *testing.T) {
	srv := almatest.NewServer(t)
	technical := mainItem("A")
	technical.ProcessType = evaluate.Technical
	technical.Library = types.Code("HAY", "John Hay Library")
	srv.Add(technical, mainItem("B"))

	collector := metrics.NewCollector("run", "", "run-1")
	runner := NewRunner(newGateway(t, srv, collector), WithMetrics(collector))

	report, err := runner.Run(t.Context(), types.MainCampusRefile, []string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(srv.Puts()) != 1 {
		t.Fatalf("puts = %d, want exactly 1", len(srv.Puts()))
	}
	put := srv.Puts()[0]
	if put.PID != "23A" {
		t.Errorf("put PID = %q, want 23A", put.PID)
	}
	putItem := put.Body["item_data"].(map[string]any)
	if lib := putItem["library"].(map[string]any); lib["value"] != "ROCK" {
		t.Errorf("put library = %v, want ROCK", lib)
	}

	wantCounts := types.BatchCounts{BarcodesSeen: 3, BarcodesProblematic: 1, BarcodesNotFound: []string{"C"}}
	if diff := cmp.Diff(wantCounts, report.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	if len(report.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(report.Rows))
	}
	a, b, c := report.Rows[0], report.Rows[1], report.Rows[2]

	if a.ProcessType.After != types.Cleared.String() {
		t.Errorf("A process_type after = %q, want %q", a.ProcessType.After, types.Cleared.String())
	}
	rock := types.Code("ROCK", "Rockefeller Library").String()
	if a.Library.Before != types.Code("HAY", "John Hay Library").String() {
		t.Errorf("A library before = %q", a.Library.Before)
	}
	if a.Library.After != rock {
		t.Errorf("A library after = %q, want %q", a.Library.After, rock)
	}
	if a.Location.After != types.NoChangeMade {
		t.Errorf("A location after = %q, want %q", a.Location.After, types.NoChangeMade)
	}
	if a.Title != "Proceedings of the Thirty-T..." {
		t.Errorf("A title = %q, want truncated", a.Title)
	}
	if a.Permalink != "<https://bruknow.library.brown.edu/discovery/fulldisplay?docid=alma99A&vid=01BU_INST:BROWN>" {
		t.Errorf("A permalink = %q", a.Permalink)
	}

	if b.Note != "" || b.ProcessType.Planned != types.NoChange {
		t.Errorf("B should be untouched, got %+v", b)
	}

	if c.Note != types.NoteNotFound {
		t.Errorf("C note = %q, want %q", c.Note, types.NoteNotFound)
	}
	if c.Title != "" || c.Library.Before != "" {
		t.Errorf("C should carry only barcode and note, got %+v", c)
	}

	s := collector.Snapshot()
	if s.UpdatesApplied != 1 || s.BarcodesNotFound != 1 || s.BarcodesSeen != 3 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestRun_LookupFailureAndOtherEnvelope(t *testing.T) {
	srv := almatest.NewServer(t)
	srv.Add(mainItem("A"), mainItem("B"))
	srv.FailLookup("A")
	srv.LookupError("B", "Item is under maintenance")

	runner := NewRunner(newGateway(t, srv, nil))
	report, err := runner.Run(t.Context(), types.MainCampusAccession, []string{"A", "B"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := report.Rows[0].Note; got != types.NoteLookupFailed {
		t.Errorf("A note = %q, want %q", got, types.NoteLookupFailed)
	}
	if got, want := report.Rows[1].Note, "update-error-response, ``Item is under maintenance``"; got != want {
		t.Errorf("B note = %q, want %q", got, want)
	}
	if report.Counts.BarcodesProblematic != 2 {
		t.Errorf("problematic = %d, want 2", report.Counts.BarcodesProblematic)
	}
	if len(report.Counts.BarcodesNotFound) != 0 {
		t.Errorf("not found = %v, want none", report.Counts.BarcodesNotFound)
	}
}

func TestRun_UpdateRejected(t *testing.T) {
	srv := almatest.NewServer(t)
	item := mainItem("A")
	item.Location = types.Code("RKSTACKS", "Stacks")
	srv.Add(item)
	srv.RejectUpdate("A", "Item is locked")

	runner := NewRunner(newGateway(t, srv, nil))
	report, err := runner.Run(t.Context(), types.MainCampusRefile, []string{"A"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	row := report.Rows[0]
	if !strings.Contains(row.Note, "Item is locked") {
		t.Errorf("note = %q, want update error", row.Note)
	}
	if row.Location.After != types.NoChangeMade {
		t.Errorf("location after = %q, want %q", row.Location.After, types.NoChangeMade)
	}
	if !strings.HasPrefix(row.Location.Planned, "should change to") {
		t.Errorf("location planned = %q", row.Location.Planned)
	}
	if report.Counts.BarcodesProblematic != 0 {
		t.Errorf("problematic = %d, want 0", report.Counts.BarcodesProblematic)
	}
}

func TestRun_DryRunMakesNoUpdates(t *testing.T) {
	srv := almatest.NewServer(t)
	item := mainItem("A")
	item.ProcessType = evaluate.Technical
	srv.Add(item)

	runner := NewRunner(newGateway(t, srv, nil), WithDryRun(true))
	report, err := runner.Run(t.Context(), types.MainCampusRefile, []string{"A"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(srv.Puts()) != 0 {
		t.Errorf("puts = %d, want 0 in dry run", len(srv.Puts()))
	}
	if report.Rows[0].ProcessType.After != types.NoChangeMade {
		t.Errorf("after = %q, want %q", report.Rows[0].ProcessType.After, types.NoChangeMade)
	}
}

func TestRun_UnknownCategory(t *testing.T) {
	srv := almatest.NewServer(t)
	runner := NewRunner(newGateway(t, srv, nil))
	if _, err := runner.Run(t.Context(), "QXXXX", []string{"A"}); err == nil {
		t.Fatal("expected error for unknown category")
	}
	if srv.Gets() != 0 {
		t.Errorf("gets = %d, want 0", srv.Gets())
	}
}

func TestCheck_DoesNotUpdate(t *testing.T) {
	srv := almatest.NewServer(t)
	item := mainItem("A")
	item.Library = types.Code("HAY", "John Hay Library")
	srv.Add(item)

	runner := NewRunner(newGateway(t, srv, nil))
	row, err := runner.Check(t.Context(), types.MainCampusRefile, "A")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(srv.Puts()) != 0 {
		t.Errorf("puts = %d, want 0", len(srv.Puts()))
	}
	if !strings.Contains(row.Library.Planned, "ROCK") {
		t.Errorf("library planned = %q, want change to ROCK", row.Library.Planned)
	}
}

// recordingGateway counts calls and serves canned records.
type recordingGateway struct {
	mu      sync.Mutex
	lookups int
	updates int
	records map[string]*types.ItemRecord
}

func (g *recordingGateway) Lookup(_ context.Context, barcode string) (*types.ItemRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups++
	rec, ok := g.records[barcode]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return rec, nil
}

func (g *recordingGateway) Update(_ context.Context, payload *types.ItemRecord) (*types.ItemRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates++
	return payload, nil
}

func TestApply_NilPayloadMakesNoCall(t *testing.T) {
	gw := &recordingGateway{}
	a := NewApplier(gw, nil, nil, false)

	out := a.Apply(t.Context(), nil)
	if out.Attempted || out.Err != nil || out.Record != nil {
		t.Errorf("outcome = %+v, want zero", out)
	}
	if gw.updates != 0 {
		t.Errorf("updates = %d, want 0", gw.updates)
	}
}

func TestApply_TransportErrorIsReported(t *testing.T) {
	a := NewApplier(failingUpdater{}, nil, nil, false)
	rec := &types.ItemRecord{Barcode: "A"}

	out := a.Apply(t.Context(), rec)
	if !out.Attempted || out.Err == nil {
		t.Fatalf("outcome = %+v, want attempted with error", out)
	}
	if got := updateFailureNote(out.Err); got != "update error-response, ``timeout``" {
		t.Errorf("note = %q", got)
	}
}

type failingUpdater struct{}

func (failingUpdater) Update(context.Context, *types.ItemRecord) (*types.ItemRecord, error) {
	return nil, errors.New("timeout")
}

func TestResolveAfter(t *testing.T) {
	before := &types.ItemRecord{
		ProcessType: evaluate.Technical,
		Library:     types.Code("ROCK", "Rockefeller Library"),
	}
	updated := &types.ItemRecord{
		ProcessType: types.Cleared,
		Library:     types.Code("ROCK", "Rockefeller Library"),
	}
	disp := map[types.Field]*types.FieldDisposition{
		types.FieldProcessType: types.NewDisposition(before.ProcessType.String()),
		types.FieldLibrary:     types.NewDisposition(before.Library.String()),
	}

	ResolveAfter(before, updated, disp)

	if got := disp[types.FieldProcessType].After; got != types.Cleared.String() {
		t.Errorf("process_type after = %q, want %q", got, types.Cleared.String())
	}
	if got := disp[types.FieldLibrary].After; got != types.NoChangeMade {
		t.Errorf("library after = %q, want %q", got, types.NoChangeMade)
	}
}

func TestRun_TransportErrorRowsAreProblematic(t *testing.T) {
	gw := &recordingGateway{records: map[string]*types.ItemRecord{}}
	runner := NewRunner(gw)

	report, err := runner.Run(t.Context(), types.AnnexCampusAccession, []string{"X", "Y"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gw.lookups != 2 {
		t.Errorf("lookups = %d, want 2", gw.lookups)
	}
	if report.Counts.BarcodesProblematic != 2 {
		t.Errorf("problematic = %d, want 2", report.Counts.BarcodesProblematic)
	}
}
