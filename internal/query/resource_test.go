package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thread struct {
	ID       string
	Messages []string
}

// threadRemote serves threads and lets a test hold back responses per id.
type threadRemote struct {
	mu    sync.Mutex
	hold  map[string]chan struct{}
	calls map[string]int
}

func newThreadRemote() *threadRemote {
	return &threadRemote{hold: make(map[string]chan struct{}), calls: make(map[string]int)}
}

func (r *threadRemote) block(id string) {
	r.mu.Lock()
	r.hold[id] = make(chan struct{})
	r.mu.Unlock()
}

func (r *threadRemote) release(id string) {
	r.mu.Lock()
	ch := r.hold[id]
	delete(r.hold, id)
	r.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

func (r *threadRemote) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func (r *threadRemote) fetch(ctx context.Context, key Key) (*thread, error) {
	id := key[1]
	r.mu.Lock()
	r.calls[id]++
	ch := r.hold[id]
	r.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if id == "gone" {
		return nil, nil
	}
	return &thread{ID: id, Messages: []string{"hello from " + id}}, nil
}

type viewLog struct {
	mu    sync.Mutex
	views []View[*thread]
}

func (l *viewLog) add(v View[*thread]) {
	l.mu.Lock()
	l.views = append(l.views, v)
	l.mu.Unlock()
}

func (l *viewLog) all() []View[*thread] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]View[*thread](nil), l.views...)
}

func (l *viewLog) last() View[*thread] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.views) == 0 {
		return View[*thread]{}
	}
	return l.views[len(l.views)-1]
}

func TestResourceDeliversTypedView(t *testing.T) {
	client := New()
	defer client.Close()
	remote := newThreadRemote()

	res := NewResource(client, NeverStale(), remote.fetch)
	var log viewLog
	res.OnChange(log.add)
	res.SetKey(NewKey("conversation", "c1"))

	require.Eventually(t, func() bool { return log.last().Status == Success }, time.Second, 5*time.Millisecond)
	v := res.View()
	require.True(t, v.HasValue)
	assert.Equal(t, "c1", v.Value.ID)
	assert.False(t, v.Fetching)
	assert.False(t, v.UpdatedAt.IsZero())

	first := log.all()[0]
	assert.True(t, first.Fetching, "first view should report the pending fetch")
	assert.False(t, first.HasValue)
}

func TestResourceKeySwitchDropsStaleResponse(t *testing.T) {
	client := New()
	defer client.Close()
	remote := newThreadRemote()
	remote.block("c1")

	res := NewResource(client, Poll(time.Hour), remote.fetch)
	var log viewLog
	res.OnChange(log.add)

	k1, k2 := NewKey("conversation", "c1"), NewKey("conversation", "c2")
	res.SetKey(k1)
	require.Eventually(t, func() bool { return remote.count("c1") == 1 }, time.Second, time.Millisecond)

	res.SetKey(k2)
	require.Eventually(t, func() bool { return log.last().Status == Success }, time.Second, 5*time.Millisecond)
	remote.release("c1")
	require.Eventually(t, func() bool { return client.Stats().Discarded == 1 }, time.Second, 5*time.Millisecond)

	for _, v := range log.all() {
		if v.Key.Equal(k1) && v.HasValue {
			t.Fatalf("view for old key carried a value: %+v", v)
		}
	}
	assert.Equal(t, "c2", res.View().Value.ID)

	old, _ := client.Store().Peek(k1)
	assert.False(t, old.HasValue(), "superseded response must not populate the old key")
	assert.Equal(t, Idle, old.Status)
	assert.False(t, client.Poller().Armed(k1))
	assert.True(t, client.Poller().Armed(k2))
	res.Close()
	assert.False(t, client.Poller().Armed(k2))
}

func TestResourceEmptyKeyIsDisabled(t *testing.T) {
	client := New()
	defer client.Close()
	remote := newThreadRemote()

	res := NewResource(client, NeverStale(), remote.fetch)
	res.SetKey(nil)

	assert.Equal(t, 0, client.Store().Len())
	assert.Equal(t, Idle, res.View().Status)
	assert.False(t, res.View().HasValue)
}

func TestResourceMissingValue(t *testing.T) {
	client := New()
	defer client.Close()
	remote := newThreadRemote()

	res := NewResource(client, NeverStale(), remote.fetch)
	var log viewLog
	res.OnChange(log.add)
	res.SetKey(NewKey("conversation", "gone"))

	require.Eventually(t, func() bool { return log.last().Status == Error }, time.Second, 5*time.Millisecond)
	assert.True(t, errors.Is(log.last().Err, ErrNoValue))
	assert.False(t, log.last().HasValue)
}

func TestResourceSharesEntry(t *testing.T) {
	client := New()
	defer client.Close()
	remote := newThreadRemote()
	key := NewKey("conversation", "c1")

	a := NewResource(client, NeverStale(), remote.fetch)
	b := NewResource(client, NeverStale(), remote.fetch)
	a.SetKey(key)
	b.SetKey(key)

	require.Eventually(t, func() bool { return b.View().Status == Success }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, remote.count("c1"))

	e, _ := client.Store().Peek(key)
	assert.Equal(t, 2, e.Subscribers)
	a.Close()
	e, _ = client.Store().Peek(key)
	assert.Equal(t, 1, e.Subscribers)
}

func TestResourceDropsOlderVersions(t *testing.T) {
	client := New()
	defer client.Close()
	key := NewKey("posts")

	res := NewResource(client, NeverStale(), func(context.Context, Key) ([]string, error) {
		return []string{"p1"}, nil
	})
	var (
		mu    sync.Mutex
		views []View[[]string]
	)
	res.OnChange(func(v View[[]string]) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	})
	res.SetKey(key)
	require.Eventually(t, func() bool { return res.View().Status == Success }, time.Second, 5*time.Millisecond)

	current := client.Store().Get(key)
	mu.Lock()
	before := len(views)
	mu.Unlock()

	stale := current
	stale.Version--
	stale.Value = []string{"older"}
	res.listen(stale)
	res.listen(current)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, views, before)
}

func TestClientFetch(t *testing.T) {
	gate := &switchGate{}
	client := New(WithGate(gate))
	defer client.Close()
	key := NewKey("currentUserProfile")
	f := newScripted(reply{value: "alice"})

	_, err := client.Fetch(context.Background(), key, f.fetch, NeverStale())
	assert.ErrorIs(t, err, ErrUnavailable)

	gate.ready.Store(true)
	e, err := client.Fetch(context.Background(), key, f.fetch, NeverStale())
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Value)

	e, err = client.Fetch(context.Background(), key, f.fetch, NeverStale())
	require.NoError(t, err)
	assert.Equal(t, "alice", e.Value)
	assert.Equal(t, 1, f.count())
}

func TestClientPolicyInheritsFamily(t *testing.T) {
	client := New(WithPolicies(Policies{Families: map[string]Policy{
		"stories": Poll(time.Hour),
	}}))
	defer client.Close()

	key := NewKey("stories")
	var f counter
	unsubscribe := client.Subscribe(key, f.fetch, Policy{}, func(Entry) {})
	defer unsubscribe()

	assert.True(t, client.Poller().Armed(key))
	assert.Equal(t, NeverStale(), client.Policy(NewKey("posts"), Policy{}))
	assert.Equal(t, AlwaysStale(), client.Policy(key, AlwaysStale()))
}

func TestClientReset(t *testing.T) {
	client := New()
	defer client.Close()

	key := NewKey("conversation", "c1")
	var f counter
	client.Subscribe(key, f.fetch, Poll(time.Hour), func(Entry) {})
	require.Eventually(t, func() bool { return client.Store().Get(key).Status == Success }, time.Second, time.Millisecond)

	client.Reset()

	assert.False(t, client.Poller().Armed(key))
	assert.Equal(t, 0, client.Store().Len())
}

func TestResourceChangesCoalesce(t *testing.T) {
	client := New()
	defer client.Close()
	remote := newThreadRemote()
	remote.block("c1")

	res := NewResource(client, NeverStale(), remote.fetch)
	changes := res.Changes()
	res.SetKey(NewKey("conversation", "c1"))

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no change signalled for the pending fetch")
	}
	assert.True(t, res.View().Fetching)

	remote.release("c1")
	require.Eventually(t, func() bool {
		select {
		case <-changes:
		default:
		}
		return res.View().Status == Success
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, cap(changes))
}

func TestClientResetRebindsResources(t *testing.T) {
	client := New()
	defer client.Close()

	var f counter
	res := NewResource(client, NeverStale(), func(ctx context.Context, _ Key) (int, error) {
		v, err := f.fetch(ctx)
		return v.(int), err
	})
	defer res.Close()
	key := NewKey("posts")
	res.SetKey(key)
	require.Eventually(t, func() bool {
		v := res.View()
		return v.Status == Success && v.Value == 1
	}, time.Second, time.Millisecond)

	client.Reset()

	require.Eventually(t, func() bool {
		v := res.View()
		return v.Status == Success && v.Value == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, client.Store().Get(key).Subscribers)

	res.Close()
	client.Reset()
	assert.Equal(t, 2, f.count(), "closed resources stay unbound")
}

func TestClientWatchFamily(t *testing.T) {
	client := New()
	defer client.Close()

	var threads recorder
	cancel := client.Watch(NewKey("conversation"), threads.listen)
	client.Store().Set(NewKey("conversation", "c1"), nil)
	client.Store().Set(NewKey("posts"), nil)
	cancel()
	client.Store().Set(NewKey("conversation", "c2"), nil)

	got := threads.all()
	require.Len(t, got, 1)
	assert.Equal(t, NewKey("conversation", "c1"), got[0].Key)
}
