package housekeeping

import (
	"context"
	"testing"
	"time"
)

func TestWatcher_DebouncesCandidates(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(t.Context(), WatchConfig{
		Dir:      dir,
		Prefixes: []string{"QSREF", "QHACS"},
		Debounce: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Close() }()

	writeFile(t, dir, "QSREF_a.txt", "A\n")
	writeFile(t, dir, "notes.txt", "ignored\n")
	writeFile(t, dir, "QHACS_b.txt", "B\n")

	seen := map[string]bool{}
	deadline := time.After(5 * time.Second)
	for !seen["QSREF_a.txt"] || !seen["QHACS_b.txt"] {
		select {
		case names := <-w.C():
			for _, n := range names {
				if n == "notes.txt" {
					t.Errorf("non-candidate file reported")
				}
				seen[n] = true
			}
		case <-deadline:
			t.Fatalf("timed out, seen = %v", seen)
		}
	}
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	w, err := NewWatcher(ctx, WatchConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	cancel()

	select {
	case _, ok := <-w.C():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	_ = w.Close()
}

func TestNewWatcher_RequiresDirectory(t *testing.T) {
	if _, err := NewWatcher(t.Context(), WatchConfig{}); err == nil {
		t.Fatal("expected error without dir")
	}
	if _, err := NewWatcher(t.Context(), WatchConfig{Dir: "/does/not/exist"}); err == nil {
		t.Fatal("expected error for missing dir")
	}
}
