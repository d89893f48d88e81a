package query

import (
	"log/slog"
	"sync"
	"time"
)

const maxBackoff = 30 * time.Second

type pollTimer struct {
	key      Key
	fetch    Fetcher
	interval time.Duration
	stop     chan struct{}
}

// Poller refetches subscribed resources on a fixed interval. Each armed key
// owns one timer goroutine; disarming stops it, and a tick from a timer that
// is no longer the armed one for its key ends that goroutine without fetching.
type Poller struct {
	coord   *Coordinator
	store   *Store
	logger  *slog.Logger
	backoff bool

	mu     sync.Mutex
	timers map[string]*pollTimer
	wg     sync.WaitGroup
}

// NewPoller creates a Poller that refetches through coord.
func NewPoller(coord *Coordinator, opts ...Option) *Poller {
	return newPoller(coord, buildOptions(opts))
}

func newPoller(coord *Coordinator, o options) *Poller {
	return &Poller{
		coord:   coord,
		store:   coord.store,
		logger:  o.logger,
		backoff: o.pollBackoff,
		timers:  make(map[string]*pollTimer),
	}
}

// Arm starts polling key every interval. Re-arming with the same interval is
// a no-op; a different interval replaces the timer.
func (p *Poller) Arm(key Key, fetch Fetcher, interval time.Duration) {
	if key.IsZero() || fetch == nil || interval <= 0 {
		return
	}
	id := key.ID()

	p.mu.Lock()
	if t, ok := p.timers[id]; ok {
		if t.interval == interval {
			p.mu.Unlock()
			return
		}
		close(t.stop)
	}
	t := &pollTimer{
		key:      NewKey(key...),
		fetch:    fetch,
		interval: interval,
		stop:     make(chan struct{}),
	}
	p.timers[id] = t
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Debug("poll armed", "key", key.String(), "interval", interval)
	go p.loop(t)
}

// Disarm stops polling key.
func (p *Poller) Disarm(key Key) {
	id := key.ID()
	p.mu.Lock()
	t, ok := p.timers[id]
	if ok {
		delete(p.timers, id)
		close(t.stop)
	}
	p.mu.Unlock()

	if ok {
		p.logger.Debug("poll disarmed", "key", key.String())
	}
}

// DisarmAll stops every timer and waits for their goroutines to exit.
func (p *Poller) DisarmAll() {
	p.mu.Lock()
	for id, t := range p.timers {
		close(t.stop)
		delete(p.timers, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Armed reports whether key is being polled.
func (p *Poller) Armed(key Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.timers[key.ID()]
	return ok
}

func (p *Poller) loop(t *pollTimer) {
	defer p.wg.Done()

	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}
		if !p.current(t) {
			return
		}
		p.coord.Refetch(t.key, t.fetch)
		timer.Reset(p.nextDelay(t))
	}
}

func (p *Poller) current(t *pollTimer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timers[t.key.ID()] == t
}

func (p *Poller) nextDelay(t *pollTimer) time.Duration {
	if !p.backoff {
		return t.interval
	}
	e, ok := p.store.Peek(t.key)
	if !ok {
		return t.interval
	}
	return calculateBackoff(e.ConsecutiveFailures, t.interval)
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff. Intervals already longer than the cap are left alone.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base >= maxBackoff {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
