package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer collects events until none arrived for the delay and then
// emits them together. Several changes to one path collapse into the last one,
// kept at the position of the first.
type BatchDebouncer struct {
	delay time.Duration
	emit  func([]Event)

	mu     sync.Mutex
	timer  *time.Timer
	byPath map[string]int
	batch  []Event
}

// NewBatchDebouncer creates a debouncer calling emit from its own goroutine
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{
		delay:  delay,
		emit:   emit,
		byPath: make(map[string]int),
	}
}

// Add queues ev and restarts the quiet period
func (b *BatchDebouncer) Add(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i, ok := b.byPath[ev.Path]; ok {
		b.batch[i] = ev
	} else {
		b.byPath[ev.Path] = len(b.batch)
		b.batch = append(b.batch, ev)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.flush)
}

func (b *BatchDebouncer) take() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.batch
	b.batch = nil
	b.byPath = make(map[string]int)
	return batch
}

func (b *BatchDebouncer) flush() {
	if batch := b.take(); len(batch) > 0 && b.emit != nil {
		b.emit(batch)
	}
}

// Flush emits the queued events now
func (b *BatchDebouncer) Flush() {
	b.flush()
}

// Cancel drops the queued events
func (b *BatchDebouncer) Cancel() {
	b.take()
}

// EventCount returns the number of queued paths
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batch)
}
