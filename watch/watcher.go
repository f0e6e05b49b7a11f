// Package watch observes a case workspace for record changes and emits
// debounced per-case change events, so an operator can keep derived
// state continuously in sync while records are edited.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config configures the workspace watcher.
type Config struct {
	// Workspace is the root directory containing cases/.
	Workspace string

	// DebounceDelay is how long to wait for more changes before emitting.
	DebounceDelay time.Duration

	// Logger for logging events.
	Logger *slog.Logger
}

// CaseEvent reports that a case's records changed.
type CaseEvent struct {
	// CaseID is the case whose records changed.
	CaseID string

	// Files are the record filenames that changed, relative to the case
	// directory.
	Files []string
}

// Watcher watches case record files and emits per-case change events.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// Debouncing: collect changed files per case before emitting.
	pendingMu sync.Mutex
	pending   map[string]map[string]struct{} // case id -> record filenames

	events chan CaseEvent
}

// New creates a workspace watcher.
func New(config Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if config.DebounceDelay == 0 {
		config.DebounceDelay = 500 * time.Millisecond
	}

	return &Watcher{
		config:  config,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]map[string]struct{}),
		events:  make(chan CaseEvent, 100),
	}, nil
}

// Events returns the channel of case change events.
func (w *Watcher) Events() <-chan CaseEvent {
	return w.events
}

// Start begins watching the workspace. It watches the cases directory
// and every existing case directory, and picks up case directories
// created later.
func (w *Watcher) Start(ctx context.Context) error {
	casesDir := filepath.Join(w.config.Workspace, "cases")
	if err := w.watcher.Add(casesDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(casesDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := w.watcher.Add(filepath.Join(casesDir, entry.Name())); err != nil {
			w.logger.Warn("failed to watch case directory",
				"case_id", entry.Name(),
				"error", err)
		}
	}

	go w.processEvents(ctx)

	w.logger.Info("workspace watcher started",
		"workspace", w.config.Workspace,
		"debounce", w.config.DebounceDelay)
	return nil
}

// Stop stops the watcher. The events channel is closed by the
// processing goroutine once it drains, so sends never race the close.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// processEvents handles fsnotify events with debouncing. It is the
// only sender on w.events and closes it on exit.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleFSEvent accumulates one fsnotify event into the pending set.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	// A new case directory needs its own watch.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(path), ".") {
				if err := w.watcher.Add(path); err != nil {
					w.logger.Warn("failed to watch new case directory",
						"path", path,
						"error", err)
				}
			}
			return
		}
	}

	if !strings.HasSuffix(path, ".json") {
		return
	}
	caseID := filepath.Base(filepath.Dir(path))
	file := filepath.Base(path)

	w.pendingMu.Lock()
	if w.pending[caseID] == nil {
		w.pending[caseID] = make(map[string]struct{})
	}
	w.pending[caseID][file] = struct{}{}
	w.pendingMu.Unlock()

	w.logger.Debug("record change detected",
		"case_id", caseID,
		"file", file,
		"op", event.Op.String())
}

// flushPending emits one event per case with accumulated changes.
func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toEmit := w.pending
	w.pending = make(map[string]map[string]struct{})
	w.pendingMu.Unlock()

	for caseID, files := range toEmit {
		event := CaseEvent{CaseID: caseID}
		for f := range files {
			event.Files = append(event.Files, f)
		}

		select {
		case w.events <- event:
			w.logger.Debug("case change emitted",
				"case_id", caseID,
				"files", len(event.Files))
		default:
			w.logger.Warn("event channel full, dropping case change",
				"case_id", caseID)
		}
	}
}
