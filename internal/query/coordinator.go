package query

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// Fetcher reads a resource from the remote. It runs on its own goroutine.
type Fetcher func(ctx context.Context) (any, error)

// Gate reports whether the remote prerequisite is ready.
type Gate interface {
	Ready() bool
}

// GateFunc adapts a function to Gate.
type GateFunc func() bool

// Ready implements Gate.
func (f GateFunc) Ready() bool { return f() }

type alwaysReady struct{}

func (alwaysReady) Ready() bool { return true }

type registration struct {
	fetch  Fetcher
	policy Policy
}

type fetchCall struct {
	key        Key
	fetch      Fetcher
	epoch      uint64
	prev       Status
	stale      atomic.Bool
	superseded atomic.Bool
	done       chan struct{}
	next       *fetchCall
	once       sync.Once
	err        error
}

func (c *fetchCall) finish(err error) {
	c.finishWith(err, nil)
}

// finishWith completes the call and links the follow-up fetch, if any, that
// Wait should chain to.
func (c *fetchCall) finishWith(err error, next *fetchCall) {
	c.once.Do(func() {
		c.err = err
		c.next = next
		close(c.done)
	})
}

// Coordinator decides when to fetch. It deduplicates concurrent fetches per
// key, gates on the prerequisite, applies freshness policies and writes
// results back through the Store, dropping responses whose key was superseded
// or whose session was reset in the meantime.
type Coordinator struct {
	store  *Store
	gate   Gate
	clock  Clock
	logger *slog.Logger
	stats  *Stats

	ctx    context.Context
	cancel context.CancelFunc
	epoch  atomic.Uint64

	mu       sync.Mutex
	inflight map[string]*fetchCall
	queries  map[string]registration
}

// NewCoordinator creates a Coordinator writing into store.
func NewCoordinator(store *Store, opts ...Option) *Coordinator {
	return newCoordinator(store, buildOptions(opts), &Stats{})
}

func newCoordinator(store *Store, o options, stats *Stats) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:    store,
		gate:     o.gate,
		clock:    o.clock,
		logger:   o.logger,
		stats:    stats,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]*fetchCall),
		queries:  make(map[string]registration),
	}
}

// Register records the fetcher and policy used when key has to be refetched
// without a caller at hand (invalidation, polling, Resume).
func (c *Coordinator) Register(key Key, fetch Fetcher, policy Policy) {
	if key.IsZero() || fetch == nil {
		return
	}
	c.mu.Lock()
	c.queries[key.ID()] = registration{fetch: fetch, policy: policy}
	c.mu.Unlock()
}

// EnsureFresh starts a fetch for key unless the cached entry is fresh under
// policy or a fetch is already in flight. The result is observed through the
// Store; EnsureFresh never blocks on the remote.
func (c *Coordinator) EnsureFresh(key Key, fetch Fetcher, policy Policy) {
	c.Register(key, fetch, policy)
	c.start(key, fetch, policy, false)
}

// Refetch starts a fetch regardless of freshness, still deduplicated against
// an in-flight one. A nil fetch uses the registered fetcher.
func (c *Coordinator) Refetch(key Key, fetch Fetcher) {
	if fetch == nil {
		c.mu.Lock()
		reg, ok := c.queries[key.ID()]
		c.mu.Unlock()
		if !ok {
			return
		}
		fetch = reg.fetch
	}
	c.start(key, fetch, Policy{}, true)
}

// Wait blocks until the in-flight fetch for key, if any, completes and returns
// its error. A fetch invalidated while in flight is followed by its
// follow-up, so Wait returns only once data newer than the invalidation has
// landed.
func (c *Coordinator) Wait(ctx context.Context, key Key) error {
	c.mu.Lock()
	call := c.inflight[key.ID()]
	c.mu.Unlock()
	for call != nil {
		select {
		case <-call.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if call.next == nil {
			return call.err
		}
		call = call.next
	}
	return nil
}

// InFlight reports whether a fetch for key is pending.
func (c *Coordinator) InFlight(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key.ID()]
	return ok
}

// Supersede abandons the in-flight fetch for key. The remote call is not
// cancelled; its response is dropped when it arrives and the entry goes back
// to the status it had before the fetch started. It reports whether a fetch
// was dropped.
func (c *Coordinator) Supersede(key Key) bool {
	id := key.ID()
	c.mu.Lock()
	call, ok := c.inflight[id]
	if ok {
		delete(c.inflight, id)
		call.superseded.Store(true)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	c.store.update(key, false, func(e Entry) (Entry, bool) {
		if e.Status != Loading {
			return e, false
		}
		e.Status = call.prev
		return e, true
	})
	call.finish(ErrSuperseded)
	c.logger.Debug("fetch superseded", "key", key.String())
	return true
}

// Invalidate marks every entry under the given prefixes stale, flags matching
// in-flight fetches so their result triggers one follow-up fetch, and
// refetches keys that currently have subscribers. It returns the matched keys.
func (c *Coordinator) Invalidate(prefixes ...Key) []Key {
	var matched []Key
	for _, prefix := range prefixes {
		c.mu.Lock()
		for _, call := range c.inflight {
			if call.key.HasPrefix(prefix) {
				call.stale.Store(true)
			}
		}
		c.mu.Unlock()
		matched = append(matched, c.store.Invalidate(prefix)...)
	}

	for _, key := range matched {
		if e, ok := c.store.Peek(key); ok && e.Subscribers > 0 {
			c.Refetch(key, nil)
		}
	}
	return matched
}

// Resume runs EnsureFresh for every subscribed key with a registered fetcher.
// Call it when the gate becomes ready.
func (c *Coordinator) Resume() {
	for _, key := range c.store.Subscribed() {
		c.mu.Lock()
		reg, ok := c.queries[key.ID()]
		c.mu.Unlock()
		if ok {
			c.start(key, reg.fetch, reg.policy, false)
		}
	}
}

// Reset drops every in-flight fetch and registration and clears the store.
// Responses that arrive afterwards are discarded.
func (c *Coordinator) Reset() {
	c.epoch.Add(1)
	c.mu.Lock()
	calls := c.inflight
	c.inflight = make(map[string]*fetchCall)
	c.queries = make(map[string]registration)
	c.mu.Unlock()

	for _, call := range calls {
		call.superseded.Store(true)
		call.finish(ErrSuperseded)
	}
	c.store.Reset()
}

// Close stops the coordinator. In-flight fetches see a cancelled context.
func (c *Coordinator) Close() {
	c.cancel()
}

func (c *Coordinator) start(key Key, fetch Fetcher, policy Policy, force bool) *fetchCall {
	if key.IsZero() || fetch == nil {
		return nil
	}
	if !c.gate.Ready() {
		c.logger.Debug("fetch deferred until remote is ready", "key", key.String())
		return nil
	}

	id := key.ID()
	c.mu.Lock()
	if call, ok := c.inflight[id]; ok {
		c.mu.Unlock()
		c.stats.deduped.Add(1)
		return call
	}
	current := c.store.Get(key)
	if !force && policy.IsFresh(current, c.clock.Now()) {
		c.mu.Unlock()
		return nil
	}
	call := &fetchCall{
		key:   NewKey(key...),
		fetch: fetch,
		epoch: c.epoch.Load(),
		prev:  current.Status,
		done:  make(chan struct{}),
	}
	c.inflight[id] = call
	c.mu.Unlock()

	c.stats.fetches.Add(1)
	c.store.update(key, true, func(e Entry) (Entry, bool) {
		if !c.live(call) {
			return e, false
		}
		e.Status = Loading
		return e, true
	})
	go c.run(call)
	return call
}

func (c *Coordinator) live(call *fetchCall) bool {
	return !call.superseded.Load() && call.epoch == c.epoch.Load()
}

func (c *Coordinator) run(call *fetchCall) {
	key := call.key
	value, err := call.fetch(c.ctx)
	if err == nil && isNil(value) {
		err = ErrNoValue
	}
	now := c.clock.Now()

	_, applied := c.store.update(key, false, func(e Entry) (Entry, bool) {
		if !c.live(call) {
			return e, false
		}
		if err != nil {
			e.Status = Error
			e.Err = err
			e.ConsecutiveFailures++
			return e, true
		}
		e.Status = Success
		e.Value = value
		e.Err = nil
		e.ConsecutiveFailures = 0
		e.LastFetchedAt = now
		if call.stale.Load() {
			e.LastFetchedAt = time.Time{}
		}
		return e, true
	})

	c.mu.Lock()
	if c.inflight[key.ID()] == call {
		delete(c.inflight, key.ID())
	}
	c.mu.Unlock()

	if !applied {
		c.stats.discarded.Add(1)
		c.logger.Debug("discarded response for superseded fetch", "key", key.String())
		call.finish(ErrSuperseded)
		return
	}
	if err != nil {
		c.stats.failures.Add(1)
		c.logger.Warn("fetch failed", "key", key.String(), "error", err)
	}
	var next *fetchCall
	if call.stale.Load() {
		next = c.start(key, call.fetch, Policy{}, true)
	}
	call.finishWith(err, next)
}

// isNil treats untyped nil and nil pointers as missing values. Nil slices and
// maps are valid empty results.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
