package geo

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Reloader is a source that can be re-read from a local file.
type Reloader interface {
	Name() string
	Location() string
	IsFile() bool
	Reload(ctx context.Context) error
}

// Watcher reloads file-backed sources when their files change. It watches
// the parent directories so editors that replace files by rename are seen.
type Watcher struct {
	log      zerolog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	byPath  map[string]Reloader
	pending map[string]time.Time
	running bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher for the file-backed sources among srcs.
// URL sources are ignored.
func NewWatcher(log zerolog.Logger, debounce time.Duration, srcs ...Reloader) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	w := &Watcher{
		log:      log.With().Str("component", "geo-watcher").Logger(),
		watcher:  fw,
		debounce: debounce,
		byPath:   make(map[string]Reloader),
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, s := range srcs {
		if !s.IsFile() {
			continue
		}
		path, err := filepath.Abs(s.Location())
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", s.Location(), err)
		}
		w.byPath[path] = s
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Watching returns the number of watched files.
func (w *Watcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byPath)
}

// Start runs the event loop in a goroutine until ctx is done or Stop.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop ends the event loop and releases the fsnotify watcher. A watcher
// that was never started is only closed.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.log.Error().Err(err).Msg("close watcher")
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := time.NewTicker(w.debounce / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watch error")
		case <-tick.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.byPath[path]; ok {
		w.pending[path] = time.Now()
	}
}

// flush reloads sources whose files have been quiet for the debounce period.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var due []Reloader

	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) < w.debounce {
			continue
		}
		delete(w.pending, path)
		due = append(due, w.byPath[path])
	}
	w.mu.Unlock()

	for _, s := range due {
		if err := s.Reload(ctx); err != nil {
			w.log.Warn().Err(err).Str("source", s.Name()).Msg("reload failed, keeping previous geometry")
			continue
		}
		w.log.Info().Str("source", s.Name()).Str("location", s.Location()).Msg("geometry reloaded")
	}
}
