package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrLoopClosed is returned when work is posted after Close
	ErrLoopClosed = fmt.Errorf("mutation loop is closed")
	// ErrPanicked is returned by Do when the closure panicked
	ErrPanicked = fmt.Errorf("mutation panicked")
)

// Loop is the single mutation thread of a session. Closures posted to it run one
// at a time on one goroutine, in posting order. Mapping, history and session state
// are only touched from inside the loop, so none of them need locks.
type Loop struct {
	queue   chan func()
	done    chan struct{}
	closing chan struct{}
	logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup
	wg      sync.WaitGroup
}

// NewLoop starts a loop whose queue holds up to queueSize pending closures
func NewLoop(queueSize int, logger *slog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Loop{
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
		logger:  logger,
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	defer close(l.done)

	for fn := range l.queue {
		l.invoke(fn)
	}
	l.logger.Debug("Mutation loop stopped")
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.logger.Error("Recovered panic in mutation loop", "panic", fmt.Sprint(p))
		}
	}()
	fn()
}

// Post queues fn and returns without waiting. It blocks while the queue is full
// and returns ErrLoopClosed after Close, including when Close starts while it is
// blocked. Closures running on the loop should not Post more work than the
// queue can hold.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.senders.Add(1)
	l.mu.Unlock()
	defer l.senders.Done()

	select {
	case l.queue <- fn:
		return nil
	case <-l.closing:
		return ErrLoopClosed
	}
}

// Do runs fn on the loop and waits for its result. If ctx ends first, Do returns
// ctx.Err(); fn still runs when its turn comes. Do must not be called from inside
// the loop.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	err := l.Post(func() {
		err := ErrPanicked
		defer func() { result <- err }()
		err = fn()
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs what is already queued and waits for the
// loop goroutine to exit. Close is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	first := !l.closed
	if first {
		l.closed = true
		close(l.closing)
	}
	l.mu.Unlock()
	if first {
		// the queue is closed once no Post can still send on it
		l.senders.Wait()
		close(l.queue)
	}
	l.wg.Wait()
}

// Done is closed once the loop goroutine has exited
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
