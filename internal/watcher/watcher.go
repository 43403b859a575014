// Package watcher polls files for changes made by other processes.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// EventType represents the type of file change
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event represents a change to one watched file
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// ChangeHandler is called with the changes collected during one quiet period
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	PollInterval time.Duration
	Debounce     time.Duration
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: 250 * time.Millisecond,
		Debounce:     150 * time.Millisecond,
	}
}

// fileState is what a poll compares
type fileState struct {
	exists  bool
	size    int64
	modTime time.Time
}

// Watcher polls a set of files and reports changes through a batch debouncer.
// Polling keeps it independent of platform notification APIs and works for files
// that are replaced rather than written in place.
type Watcher struct {
	config    Config
	logger    *slog.Logger
	debouncer *BatchDebouncer

	mu     sync.Mutex
	files  map[string]fileState
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher; nothing is polled until Start
func New(config Config, logger *slog.Logger, handler ChangeHandler) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	return &Watcher{
		config:    config,
		logger:    logger,
		debouncer: NewBatchDebouncer(config.Debounce, handler),
		files:     make(map[string]fileState),
	}
}

// Watch adds path, remembering its current state. The file need not exist yet.
func (w *Watcher) Watch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.files[path]; exists {
		return
	}
	w.files[path] = stat(path)
}

// Unwatch stops watching path
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.files, path)
}

// Start begins polling until ctx ends or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.logger.Debug("Starting file watcher", "files", len(w.Watched()), "pollInterval", w.config.PollInterval)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Check()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops polling and drops changes still waiting for their quiet period
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	w.debouncer.Cancel()
	w.logger.Debug("File watcher stopped")
}

// Check polls every watched file once and queues the changes it finds
func (w *Watcher) Check() {
	w.mu.Lock()
	var events []Event
	now := time.Now()
	for path, prev := range w.files {
		cur := stat(path)
		var typ EventType
		switch {
		case cur.exists && !prev.exists:
			typ = EventCreate
		case !cur.exists && prev.exists:
			typ = EventDelete
		case cur.exists && (cur.size != prev.size || !cur.modTime.Equal(prev.modTime)):
			typ = EventModify
		default:
			continue
		}
		w.files[path] = cur
		events = append(events, Event{Type: typ, Path: path, Timestamp: now})
	}
	w.mu.Unlock()

	for _, ev := range events {
		w.logger.Debug("File changed", "path", ev.Path, "type", ev.Type.String())
		w.debouncer.Add(ev)
	}
}

// Watched returns the watched paths, sorted
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for path := range w.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func stat(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, size: info.Size(), modTime: info.ModTime()}
}
