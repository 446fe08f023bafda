package housekeeping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/justapithecus/anxeod/iox"
)

// Tracker is the processed-file ledger: a JSON array of file names,
// persisted at Path. Membership check and append go through the same
// value, and each append is written with an atomic rename so an
// interrupted write leaves the previous ledger intact.
//
// Tracker is safe for use within one process. Separate processes sharing
// a ledger must be serialized by the caller.
type Tracker struct {
	path string

	mu    sync.Mutex
	names []string
}

// OpenTracker reads the ledger at path. A missing file is an empty ledger.
func OpenTracker(path string) (*Tracker, error) {
	t := &Tracker{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tracker %s: %w", path, err)
	}
	if len(data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, &t.names); err != nil {
		return nil, fmt.Errorf("parse tracker %s: %w", path, err)
	}
	return t, nil
}

// Path returns the ledger location.
func (t *Tracker) Path() string { return t.path }

// Names returns a copy of the tracked file names, in append order.
func (t *Tracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.names)
}

// Has reports whether name is tracked.
func (t *Tracker) Has(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Contains(t.names, name)
}

// Append records name and persists the ledger. Already-tracked names are
// a no-op.
func (t *Tracker) Append(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slices.Contains(t.names, name) {
		return nil
	}
	next := append(slices.Clone(t.names), name)
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracker: %w", err)
	}
	if err := iox.WriteFileAtomic(t.path, data, 0o644); err != nil {
		return fmt.Errorf("write tracker %s: %w", t.path, err)
	}
	t.names = next
	return nil
}
