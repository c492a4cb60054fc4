package db

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tgienger/taskboard/internal/remote"
)

// DefaultDebounce coalesces the burst of file events a single commit
// produces (main file, WAL, shm) into one notification.
const DefaultDebounce = 150 * time.Millisecond

// Watcher detects writes made to the database file by other processes
// and publishes them on the database's change feed. The file does not
// say which table changed, so every table gets an EventAny.
type Watcher struct {
	db       *DB
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for db. It must be started with Start.
func NewWatcher(db *DB, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		db:       db,
		watcher:  watcher,
		logger:   logger.With("component", "db-watch"),
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the directory holding the database file
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(w.db.Path())
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch database directory %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	w.logger.Info("watching database for external writes", "path", w.db.Path())
	return nil
}

// Stop ends watching and blocks until the event loop has exited. No
// event is published after Stop returns.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// IsRunning reports whether the watcher is started
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.logger.Debug("external write detected")
			for _, table := range remote.Tables {
				w.db.Publish(remote.NewEvent(remote.EventAny, table))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// relevant reports whether event touched the database or its journal
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	base := filepath.Base(w.db.Path())
	switch filepath.Base(event.Name) {
	case base, base + "-wal", base + "-journal":
		return true
	}
	return false
}
