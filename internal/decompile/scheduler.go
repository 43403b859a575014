package decompile

import (
	"context"
	"log/slog"
	"sync"
)

// Poster delivers a closure to the mutation thread
type Poster interface {
	Post(fn func()) error
}

// Result is a finished decompilation of one class
type Result struct {
	Class  string
	Source string
	Err    error
	Seq    uint64
}

// Scheduler runs decompilations in the background, latest request wins: a new
// request for a class cancels the one in flight, and a completion that is no
// longer the latest for its class is dropped, both when the worker finishes and
// again on the mutation thread just before delivery.
type Scheduler struct {
	decompiler Decompiler
	remapper   *Remapper
	poster     Poster
	logger     *slog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]*request
	closed  bool
	wg      sync.WaitGroup
}

type request struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. remapper may be nil to deliver the source as
// decompiled.
func NewScheduler(decompiler Decompiler, remapper *Remapper, poster Poster, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		decompiler: decompiler,
		remapper:   remapper,
		poster:     poster,
		logger:     logger,
		pending:    make(map[string]*request),
	}
}

// Request starts decompiling names.Class() and calls deliver on the mutation
// thread when it finishes, unless a newer request for the same class came in
// meanwhile. names must be taken on the mutation thread. Returns the request's
// sequence number, or 0 when the scheduler is closed.
func (s *Scheduler) Request(ctx context.Context, names *Names, deliver func(Result)) uint64 {
	class := names.Class()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	if prev, ok := s.pending[class]; ok {
		prev.cancel()
		s.logger.Debug("Superseded decompilation", "class", class, "seq", prev.seq)
	}
	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(ctx)
	s.pending[class] = &request{seq: seq, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()

		result := s.run(ctx, class, names)
		result.Seq = seq

		if !s.isLatest(class, seq) {
			s.logger.Debug("Dropped stale decompilation", "class", class, "seq", seq)
			return
		}
		err := s.poster.Post(func() {
			if !s.finish(class, seq) {
				return
			}
			deliver(result)
		})
		if err != nil {
			s.logger.Debug("Decompilation finished after shutdown", "class", class)
		}
	}()
	return seq
}

func (s *Scheduler) run(ctx context.Context, class string, names *Names) Result {
	source, err := s.decompiler.Decompile(ctx, class)
	if err == nil && s.remapper != nil {
		source, err = s.remapper.Remap(ctx, source, names)
	}
	if err != nil {
		return Result{Class: class, Err: err}
	}
	return Result{Class: class, Source: source}
}

func (s *Scheduler) isLatest(class string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[class]
	return ok && req.seq == seq
}

// finish clears the pending entry if seq is still the latest for class
func (s *Scheduler) finish(class string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[class]
	if !ok || req.seq != seq {
		return false
	}
	delete(s.pending, class)
	return true
}

// Cancel abandons the request in flight for class, if any
func (s *Scheduler) Cancel(class string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.pending[class]; ok {
		req.cancel()
		delete(s.pending, class)
	}
}

// Pending returns the number of requests that have not been delivered
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every request and waits for the workers to exit. Nothing is
// delivered after Close returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for class, req := range s.pending {
		req.cancel()
		delete(s.pending, class)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
