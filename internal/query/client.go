package query

import (
	"context"
	"log/slog"
	"sync"
)

// Client wires a Store, Coordinator and Poller into the surface the
// presentation layer uses.
type Client struct {
	store    *Store
	coord    *Coordinator
	poller   *Poller
	gate     Gate
	policies Policies
	logger   *slog.Logger
	stats    *Stats

	mu       sync.Mutex
	nextBind uint64
	bound    map[uint64]func()
}

// New creates a Client.
func New(opts ...Option) *Client {
	o := buildOptions(opts)
	stats := &Stats{}
	store := NewStore(WithIdleCapacity(o.idleCapacity), WithStoreLogger(o.logger))
	coord := newCoordinator(store, o, stats)
	return &Client{
		store:    store,
		coord:    coord,
		poller:   newPoller(coord, o),
		gate:     o.gate,
		policies: o.policies,
		logger:   o.logger,
		stats:    stats,
		bound:    make(map[uint64]func()),
	}
}

// Store returns the underlying cache.
func (c *Client) Store() *Store { return c.store }

// Coordinator returns the fetch coordinator.
func (c *Client) Coordinator() *Coordinator { return c.coord }

// Poller returns the polling scheduler.
func (c *Client) Poller() *Poller { return c.poller }

// Policy resolves p against the family policies when p is zero.
func (c *Client) Policy(key Key, p Policy) Policy {
	if !p.IsZero() {
		return p
	}
	return c.policies.For(key)
}

// Subscribe registers fn for key, ensures the entry is fresh and, for poll
// policies, arms the poll timer. The returned function unsubscribes and
// disarms polling once the key has no subscribers left.
func (c *Client) Subscribe(key Key, fetch Fetcher, policy Policy, fn Listener) (unsubscribe func()) {
	if key.IsZero() {
		return func() {}
	}
	policy = c.Policy(key, policy)
	unsub := c.store.Subscribe(key, fn)
	c.coord.EnsureFresh(key, fetch, policy)
	if policy.Polls() {
		c.poller.Arm(key, fetch, policy.Interval)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			if e, ok := c.store.Peek(key); !ok || e.Subscribers == 0 {
				c.poller.Disarm(key)
			}
		})
	}
}

// EnsureFresh fetches key if its entry is not fresh under policy.
func (c *Client) EnsureFresh(key Key, fetch Fetcher, policy Policy) {
	c.coord.EnsureFresh(key, fetch, c.Policy(key, policy))
}

// Fetch is the blocking form of EnsureFresh: it waits for any fetch it
// started or joined and returns the resulting entry. A stale-while-error
// entry is returned together with its error.
func (c *Client) Fetch(ctx context.Context, key Key, fetch Fetcher, policy Policy) (Entry, error) {
	if !c.gate.Ready() {
		return c.store.Get(key), ErrUnavailable
	}
	c.EnsureFresh(key, fetch, policy)
	if err := c.coord.Wait(ctx, key); err != nil {
		return c.store.Get(key), err
	}
	e := c.store.Get(key)
	if e.Status == Error {
		return e, e.Err
	}
	return e, nil
}

// Invalidate marks keys under the prefixes stale and refetches subscribed ones.
func (c *Client) Invalidate(prefixes ...Key) []Key {
	return c.coord.Invalidate(prefixes...)
}

// Resume fetches every subscribed key once the gate has become ready.
func (c *Client) Resume() {
	c.logger.Debug("remote ready, resuming subscribed queries")
	c.coord.Resume()
}

// Watch registers fn for changes to any entry under prefix. An empty prefix
// watches every entry. Watchers do not count as subscribers.
func (c *Client) Watch(prefix Key, fn Listener) (cancel func()) {
	return c.store.Watch(prefix, fn)
}

// Reset clears the session: every timer is cancelled, in-flight responses
// are dropped and every entry is removed. Bound resources then resubscribe
// to their current keys, so they refetch instead of going silent.
func (c *Client) Reset() {
	c.poller.DisarmAll()
	c.coord.Reset()
	c.logger.Info("cache reset")

	c.mu.Lock()
	rebinds := make([]func(), 0, len(c.bound))
	for _, fn := range c.bound {
		rebinds = append(rebinds, fn)
	}
	c.mu.Unlock()
	for _, fn := range rebinds {
		fn()
	}
}

// bind registers a resource to be resubscribed after Reset.
func (c *Client) bind(rebind func()) (release func()) {
	c.mu.Lock()
	c.nextBind++
	id := c.nextBind
	c.bound[id] = rebind
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.bound, id)
		c.mu.Unlock()
	}
}

// Close stops polling and cancels in-flight fetch contexts.
func (c *Client) Close() {
	c.poller.DisarmAll()
	c.coord.Close()
}

// Stats returns a snapshot of fetch and mutation counters.
func (c *Client) Stats() Snapshot {
	return c.stats.Snapshot()
}
