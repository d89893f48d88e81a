package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type reply struct {
	value any
	err   error
}

// scripted is a fetcher whose responses are fed by the test, one per call.
type scripted struct {
	calls   atomic.Int32
	replies chan reply
}

func newScripted(prefill ...reply) *scripted {
	s := &scripted{replies: make(chan reply, 16)}
	for _, r := range prefill {
		s.replies <- r
	}
	return s
}

func (s *scripted) fetch(ctx context.Context) (any, error) {
	s.calls.Add(1)
	select {
	case r := <-s.replies:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scripted) send(value any, err error) {
	s.replies <- reply{value: value, err: err}
}

func (s *scripted) count() int {
	return int(s.calls.Load())
}

// counter is a fetcher that returns its call number immediately.
type counter struct {
	calls atomic.Int32
}

func (c *counter) fetch(context.Context) (any, error) {
	return int(c.calls.Add(1)), nil
}

func (c *counter) count() int {
	return int(c.calls.Load())
}

type switchGate struct {
	ready atomic.Bool
}

func (g *switchGate) Ready() bool {
	return g.ready.Load()
}

// recorder collects entries passed to a listener.
type recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *recorder) listen(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

func (r *recorder) last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}
