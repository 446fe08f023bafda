package housekeeping

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/justapithecus/anxeod/log"
)

// DefaultDebounce coalesces bursts of events from a scanner upload.
const DefaultDebounce = 2 * time.Second

// WatchConfig configures a Watcher.
type WatchConfig struct {
	Dir      string
	Prefixes []string
	Debounce time.Duration
	Logger   *log.Logger
}

// Watcher reports when candidate batch files land in a directory.
// Each signal on C means "scan again"; bursts are collapsed into one.
type Watcher struct {
	cfg WatchConfig
	fsw *fsnotify.Watcher

	c    chan []string
	errs chan error
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once
}

// NewWatcher starts watching cfg.Dir. Callers must Close the watcher.
func NewWatcher(ctx context.Context, cfg WatchConfig) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if err := CheckDirectories(cfg.Dir); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		cfg:  cfg,
		fsw:  fsw,
		c:    make(chan []string, 1),
		errs: make(chan error, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.loop(ctx)
	return w, nil
}

// C delivers the batch of candidate names seen since the last signal.
// It is closed when the watcher stops.
func (w *Watcher) C() <-chan []string { return w.c }

// Errors delivers watcher errors. Only the latest unread error is kept.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.quit)
		err = w.fsw.Close()
	})
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.c)

	var timer *time.Timer
	var fire <-chan time.Time
	pending := map[string]struct{}{}

	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.fsw.Close()
			return
		case <-w.quit:
			return

		case e, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(e.Name)
			if !w.candidate(name) {
				continue
			}
			pending[name] = struct{}{}
			stop()
			timer = time.NewTimer(w.cfg.Debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			names := make([]string, 0, len(pending))
			for n := range pending {
				names = append(names, n)
			}
			clear(pending)
			slices.Sort(names)
			w.cfg.Logger.Debug("watch batch ready", map[string]any{"files": names})
			select {
			case w.c <- names:
			case <-ctx.Done():
				_ = w.fsw.Close()
				return
			case <-w.quit:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Warn("watcher error", map[string]any{"error": err.Error()})
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) candidate(name string) bool {
	if name == ".DS_Store" || len(name) < PrefixLen {
		return false
	}
	if len(w.cfg.Prefixes) == 0 {
		return true
	}
	return slices.Contains(w.cfg.Prefixes, name[:PrefixLen])
}
