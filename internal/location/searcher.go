package location

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce is the pause after the last keystroke before searching.
const DefaultDebounce = 300 * time.Millisecond

// Finder performs a forward lookup.
type Finder interface {
	Search(ctx context.Context, query string) ([]Place, error)
}

// Result is a completed lookup.
type Result struct {
	Seq    uint64
	Query  string
	Places []Place
	Err    error
}

// Searcher debounces search-as-you-type. Each Query cancels the pending
// timer and any in-flight lookup, then schedules a new one. A lookup that
// completes after a newer Query is dropped.
type Searcher struct {
	finder  Finder
	delay   time.Duration
	deliver func(Result)

	mu       sync.Mutex
	seq      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	stopped  bool
	delivery sync.Mutex
}

// NewSearcher creates a searcher delivering current results to fn.
func NewSearcher(f Finder, delay time.Duration, fn func(Result)) *Searcher {
	if delay < 0 {
		delay = 0
	}
	return &Searcher{finder: f, delay: delay, deliver: fn}
}

// Query schedules a lookup for q and returns its sequence number.
func (s *Searcher) Query(q string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.seq
	}
	s.cancelLocked()
	s.seq++
	seq := s.seq

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.timer = time.AfterFunc(s.delay, func() { s.run(ctx, seq, q) })
	return seq
}

// Latest returns the sequence number of the most recent Query.
func (s *Searcher) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Stop cancels pending work. Later Query calls are ignored.
func (s *Searcher) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelLocked()
}

func (s *Searcher) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && seq == s.seq
}

func (s *Searcher) run(ctx context.Context, seq uint64, q string) {
	if !s.current(seq) {
		return
	}
	places, err := s.finder.Search(ctx, q)

	s.delivery.Lock()
	defer s.delivery.Unlock()
	if !s.current(seq) || ctx.Err() != nil {
		return
	}
	if s.deliver != nil {
		s.deliver(Result{Seq: seq, Query: q, Places: places, Err: err})
	}
}
