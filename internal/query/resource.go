package query

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// View is the typed, read-only state of a resource handed to the
// presentation layer.
type View[T any] struct {
	Key       Key
	Value     T
	HasValue  bool
	Status    Status
	Err       error
	Fetching  bool
	UpdatedAt time.Time
	Offline   bool
}

// NewView converts an entry into a typed view.
func NewView[T any](e Entry) View[T] {
	v := View[T]{
		Key:       e.Key,
		Status:    e.Status,
		Err:       e.Err,
		Fetching:  e.Status == Loading,
		UpdatedAt: e.LastFetchedAt,
		Offline:   e.IsOffline(),
	}
	if val, ok := e.Value.(T); ok {
		v.Value = val
		v.HasValue = true
	}
	return v
}

// Resource is a reactive read bound to one key at a time. Switching keys
// unsubscribes from the old key, supersedes its pending fetch when nobody
// else observes it, and subscribes to the new one. Notifications for any key
// other than the current one, or older than the last delivered version, are
// dropped.
type Resource[T any] struct {
	client *Client
	fetch  func(ctx context.Context, key Key) (T, error)
	policy Policy

	mu          sync.Mutex
	key         Key
	unsubscribe func()
	release     func()
	onChange    func(View[T])
	seen        bool
	lastVersion uint64
}

// NewResource creates an unbound resource. A zero policy inherits the
// family policy configured on the client.
func NewResource[T any](c *Client, policy Policy, fetch func(ctx context.Context, key Key) (T, error)) *Resource[T] {
	return &Resource[T]{client: c, fetch: fetch, policy: policy}
}

// OnChange sets the callback invoked with every new view. It runs on the
// goroutine that changed the entry and must not block.
func (r *Resource[T]) OnChange(fn func(View[T])) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Changes replaces the change callback with a coalescing signal. The
// channel holds at most one pending notification; read View for the state
// current at the time of reading.
func (r *Resource[T]) Changes() <-chan struct{} {
	ch := make(chan struct{}, 1)
	r.OnChange(func(View[T]) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch
}

// Key returns the current key.
func (r *Resource[T]) Key() Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key
}

// SetKey binds the resource to key. An empty key disables the resource.
func (r *Resource[T]) SetKey(key Key) {
	r.mu.Lock()
	if key.Equal(r.key) && (r.unsubscribe != nil || key.IsZero()) {
		r.mu.Unlock()
		return
	}
	old, oldUnsub := r.key, r.unsubscribe
	r.key = NewKey(key...)
	r.unsubscribe = nil
	r.seen = false
	r.lastVersion = 0
	r.mu.Unlock()

	if oldUnsub != nil {
		oldUnsub()
		if e, ok := r.client.store.Peek(old); !ok || e.Subscribers == 0 {
			r.client.coord.Supersede(old)
		}
	}

	if key.IsZero() {
		r.emit(View[T]{})
		return
	}

	unsub := r.client.Subscribe(key, r.fetcher(key), r.policy, r.listen)
	r.mu.Lock()
	if !r.key.Equal(key) {
		r.mu.Unlock()
		unsub()
		return
	}
	r.unsubscribe = unsub
	if r.release == nil {
		r.release = r.client.bind(r.rebind)
	}
	r.mu.Unlock()

	if e, ok := r.client.store.Peek(key); ok {
		r.listen(e)
	}
}

// View returns the current view without subscribing.
func (r *Resource[T]) View() View[T] {
	key := r.Key()
	if key.IsZero() {
		return View[T]{}
	}
	e, _ := r.client.store.Peek(key)
	return NewView[T](e)
}

// Refetch forces a fetch of the current key.
func (r *Resource[T]) Refetch() {
	key := r.Key()
	if key.IsZero() {
		return
	}
	r.client.coord.Refetch(key, r.fetcher(key))
}

// Close unbinds the resource.
func (r *Resource[T]) Close() {
	r.SetKey(nil)
	r.mu.Lock()
	release := r.release
	r.release = nil
	r.mu.Unlock()
	if release != nil {
		release()
	}
}

// rebind resubscribes to the current key after the store dropped every
// listener on Reset.
func (r *Resource[T]) rebind() {
	r.mu.Lock()
	key := r.key
	r.unsubscribe = nil
	r.mu.Unlock()
	if !key.IsZero() {
		r.SetKey(key)
	}
}

func (r *Resource[T]) fetcher(key Key) Fetcher {
	return func(ctx context.Context) (any, error) {
		v, err := r.fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func (r *Resource[T]) listen(e Entry) {
	r.mu.Lock()
	if !e.Key.Equal(r.key) || (r.seen && e.Version <= r.lastVersion) {
		r.mu.Unlock()
		return
	}
	r.seen = true
	r.lastVersion = e.Version
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(NewView[T](e))
	}
}

func (r *Resource[T]) emit(v View[T]) {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Mutator is a typed write with the cache effects produced by plan.
type Mutator[A, T any] struct {
	client *Client
	op     func(ctx context.Context, args A) (T, error)
	plan   func(args A) Mutation
}

// NewMutator creates a Mutator. plan may be nil for writes without cache
// effects.
func NewMutator[A, T any](c *Client, op func(ctx context.Context, args A) (T, error), plan func(args A) Mutation) *Mutator[A, T] {
	return &Mutator[A, T]{client: c, op: op, plan: plan}
}

// Run performs the write. Failures are returned after any optimistic patch
// has been rolled back.
func (m *Mutator[A, T]) Run(ctx context.Context, args A) (T, error) {
	var mut Mutation
	if m.plan != nil {
		mut = m.plan(args)
	}
	res, err := m.client.Mutate(ctx, mut, func(ctx context.Context) (any, error) {
		return m.op(ctx, args)
	})
	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result %T", mut.Name, res)
	}
	return v, nil
}
