package dvr

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/importer"
)

// fileState tracks a growing capture file.
type fileState struct {
	size       int64
	lastChange time.Time
}

// OutputWatcher reports capture files that have stopped growing. The
// recorder's own exit is the primary completion signal; the watcher covers
// recorder processes that die without reporting and files produced by an
// external recorder writing into the same directory.
type OutputWatcher struct {
	dir       string
	stableFor time.Duration
	fsWatcher *fsnotify.Watcher
	logger    zerolog.Logger

	stable chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tracked map[string]fileState
}

// NewOutputWatcher creates a stability watcher over the capture directory.
func NewOutputWatcher(dir string, stableFor time.Duration, logger zerolog.Logger) (*OutputWatcher, error) {
	if stableFor <= 0 {
		stableFor = time.Minute
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &OutputWatcher{
		dir:       dir,
		stableFor: stableFor,
		fsWatcher: fsWatcher,
		logger:    logger.With().Str("component", "dvr-watcher").Logger(),
		stable:    make(chan string, 16),
		ctx:       ctx,
		cancel:    cancel,
		tracked:   make(map[string]fileState),
	}, nil
}

// Stable delivers paths whose size has not changed for the stability window.
func (w *OutputWatcher) Stable() <-chan string {
	return w.stable
}

// Start begins watching. The capture directory is created if missing.
func (w *OutputWatcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop()
	w.logger.Info().Str("dir", w.dir).Dur("stableFor", w.stableFor).Msg("watching capture directory")
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *OutputWatcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.fsWatcher.Close()
}

func (w *OutputWatcher) loop() {
	defer w.wg.Done()

	interval := w.stableFor / 2
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")

		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *OutputWatcher) handleEvent(event fsnotify.Event) {
	if !importer.IsVideoFile(filepath.Base(event.Name)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		delete(w.tracked, event.Name)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		state := w.tracked[event.Name]
		if info, err := os.Stat(event.Name); err == nil {
			state.size = info.Size()
		}
		state.lastChange = time.Now()
		w.tracked[event.Name] = state
	}
}

// sweep promotes files that have been quiet for the stability window.
// Size is re-checked against the filesystem: fsnotify can drop events
// under load, and a still-growing file must never be promoted.
func (w *OutputWatcher) sweep() {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, state := range w.tracked {
		if now.Sub(state.lastChange) < w.stableFor {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			delete(w.tracked, path)
			continue
		}
		if info.Size() != state.size {
			state.size = info.Size()
			state.lastChange = now
			w.tracked[path] = state
			continue
		}
		ready = append(ready, path)
		delete(w.tracked, path)
	}
	w.mu.Unlock()

	for _, path := range ready {
		select {
		case w.stable <- path:
			w.logger.Debug().Str("path", path).Msg("capture file stable")
		case <-w.ctx.Done():
			return
		}
	}
}
