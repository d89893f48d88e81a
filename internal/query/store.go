package query

import (
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Listener receives a copy of an entry after every change to it.
type Listener func(Entry)

type record struct {
	entry     Entry
	listeners map[uint64]Listener
}

type watcher struct {
	prefix Key
	fn     Listener
}

type notification struct {
	entry     Entry
	listeners []Listener
}

// Store is the keyed in-memory cache. It is the only owner of entries:
// coordinators read and change them exclusively through Get and Set.
//
// Listeners run synchronously on the goroutine that called Set, after the
// store lock is released, so they may call back into the store. Concurrent
// Sets can deliver notifications out of order; Entry.Version is monotonic and
// lets listeners drop older states.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*record
	watchers   map[uint64]watcher
	idle       *simplelru.LRU[string, struct{}]
	version    uint64
	nextID     uint64
	generation uint64
	logger     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIdleCapacity bounds how many unsubscribed entries are retained. Entries
// with subscribers or a fetch in flight are never evicted. Zero keeps all.
func WithIdleCapacity(n int) StoreOption {
	return func(s *Store) {
		if n <= 0 {
			s.idle = nil
			return
		}
		idle, err := simplelru.NewLRU[string, struct{}](n, s.evictIdle)
		if err != nil {
			return
		}
		s.idle = idle
	}
}

// WithStoreLogger sets the logger used for eviction diagnostics.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:  make(map[string]*record),
		watchers: make(map[uint64]watcher),
		logger:   slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current entry for key, creating an Idle entry if absent.
func (s *Store) Get(key Key) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordFor(key).entry
}

// Peek returns the entry for key without creating it.
func (s *Store) Peek(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[key.ID()]
	if !ok {
		return Entry{}, false
	}
	return rec.entry, true
}

// Set atomically replaces the entry for key with patch(current) and notifies
// the key's subscribers and every family watcher whose prefix matches.
// It returns the stored entry.
func (s *Store) Set(key Key, patch Patch) Entry {
	next, _ := s.update(key, true, func(e Entry) (Entry, bool) {
		if patch == nil {
			return e, true
		}
		return patch(e), true
	})
	return next
}

// update is the single mutation point behind Set. fn may decline the change
// by returning false, in which case nothing is stored or notified. When create
// is false a missing entry is left missing.
func (s *Store) update(key Key, create bool, fn func(Entry) (Entry, bool)) (Entry, bool) {
	s.mu.Lock()
	rec, ok := s.entries[key.ID()]
	if !ok {
		if !create {
			s.mu.Unlock()
			return Entry{}, false
		}
		rec = s.recordFor(key)
	}
	next, apply := fn(rec.entry)
	if !apply {
		current := rec.entry
		s.mu.Unlock()
		return current, false
	}
	next.Key = rec.entry.Key
	next.Subscribers = rec.entry.Subscribers
	s.version++
	next.Version = s.version
	rec.entry = next
	s.touchIdle(key.ID(), rec)
	n := s.collect(rec)
	s.mu.Unlock()

	n.deliver()
	return next, true
}

// Subscribe registers fn for changes to key and increments the entry's
// subscriber count. The returned function removes the subscription; the entry
// and its value stay cached at zero subscribers.
func (s *Store) Subscribe(key Key, fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	rec := s.recordFor(key)
	s.nextID++
	id := s.nextID
	gen := s.generation
	rec.listeners[id] = fn
	rec.entry.Subscribers = len(rec.listeners)
	s.touchIdle(key.ID(), rec)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if gen != s.generation {
				return
			}
			rec, ok := s.entries[key.ID()]
			if !ok {
				return
			}
			delete(rec.listeners, id)
			rec.entry.Subscribers = len(rec.listeners)
			s.touchIdle(key.ID(), rec)
		})
	}
}

// Watch registers fn for changes to any key under prefix. Watchers do not
// count as subscribers.
func (s *Store) Watch(prefix Key, fn Listener) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = watcher{prefix: NewKey(prefix...), fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Invalidate marks every entry under prefix stale by clearing LastFetchedAt.
// Values are kept so the last known data stays visible while refetching.
// It returns the matched keys.
func (s *Store) Invalidate(prefix Key) []Key {
	s.mu.Lock()
	var (
		keys  []Key
		notes []notification
	)
	for _, id := range s.sortedIDs() {
		rec := s.entries[id]
		if !rec.entry.Key.HasPrefix(prefix) {
			continue
		}
		s.version++
		rec.entry.LastFetchedAt = time.Time{}
		rec.entry.Version = s.version
		keys = append(keys, rec.entry.Key)
		notes = append(notes, s.collect(rec))
	}
	s.mu.Unlock()

	for _, n := range notes {
		n.deliver()
	}
	return keys
}

// Keys returns the cached keys under prefix in a stable order.
func (s *Store) Keys(prefix Key) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []Key
	for _, id := range s.sortedIDs() {
		if k := s.entries[id].entry.Key; k.HasPrefix(prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Subscribed returns the keys that currently have at least one subscriber.
func (s *Store) Subscribed() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []Key
	for _, id := range s.sortedIDs() {
		if rec := s.entries[id]; len(rec.listeners) > 0 {
			keys = append(keys, rec.entry.Key)
		}
	}
	return keys
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset clears every entry. Subscribers receive a final Idle entry and are
// then dropped; their unsubscribe functions become no-ops.
func (s *Store) Reset() {
	s.mu.Lock()
	var notes []notification
	for _, id := range s.sortedIDs() {
		rec := s.entries[id]
		if len(rec.listeners) == 0 {
			continue
		}
		s.version++
		cleared := Entry{Key: rec.entry.Key, Version: s.version}
		notes = append(notes, notification{entry: cleared, listeners: listenersOf(rec)})
	}
	s.entries = make(map[string]*record)
	s.generation++
	if s.idle != nil {
		s.idle.Purge()
	}
	s.mu.Unlock()

	for _, n := range notes {
		n.deliver()
	}
}

func (s *Store) recordFor(key Key) *record {
	id := key.ID()
	rec, ok := s.entries[id]
	if !ok {
		rec = &record{
			entry:     Entry{Key: NewKey(key...)},
			listeners: make(map[uint64]Listener),
		}
		s.entries[id] = rec
		s.touchIdle(id, rec)
	}
	return rec
}

// touchIdle tracks entries that may be evicted. Must hold s.mu.
func (s *Store) touchIdle(id string, rec *record) {
	if s.idle == nil {
		return
	}
	if len(rec.listeners) == 0 && rec.entry.Status != Loading {
		s.idle.Add(id, struct{}{})
		return
	}
	s.idle.Remove(id)
}

// evictIdle runs inside idle.Add, so s.mu is already held.
func (s *Store) evictIdle(id string, _ struct{}) {
	rec, ok := s.entries[id]
	if !ok || len(rec.listeners) > 0 || rec.entry.Status == Loading {
		return
	}
	delete(s.entries, id)
	s.logger.Debug("evicted idle cache entry", "key", rec.entry.Key.String())
}

// collect snapshots the listeners interested in rec. Must hold s.mu.
func (s *Store) collect(rec *record) notification {
	n := notification{entry: rec.entry, listeners: listenersOf(rec)}
	for _, id := range sortedWatcherIDs(s.watchers) {
		w := s.watchers[id]
		if rec.entry.Key.HasPrefix(w.prefix) {
			n.listeners = append(n.listeners, w.fn)
		}
	}
	return n
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (n notification) deliver() {
	for _, fn := range n.listeners {
		fn(n.entry)
	}
}

func listenersOf(rec *record) []Listener {
	ids := make([]uint64, 0, len(rec.listeners))
	for id := range rec.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, rec.listeners[id])
	}
	return out
}

func sortedWatcherIDs(m map[uint64]watcher) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
