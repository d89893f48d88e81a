package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"
)

type MutationSuite struct {
	suite.Suite
	gate   *switchGate
	client *Client
	ctx    context.Context
}

func (s *MutationSuite) SetupTest() {
	s.gate = &switchGate{}
	s.gate.ready.Store(true)
	s.client = New(WithGate(s.gate), WithClock(newMockClock()))
	s.ctx = context.Background()
}

func (s *MutationSuite) TearDownTest() {
	s.client.Close()
}

func TestMutationSuite(t *testing.T) {
	suite.Run(t, new(MutationSuite))
}

func appendMessage(msg string) Patch {
	return func(e Entry) Entry {
		msgs, _ := Value[[]string](e)
		e.Value = append(append([]string(nil), msgs...), msg)
		return e
	}
}

// seed subscribes to key and loads value through f.
func (s *MutationSuite) seed(key Key, f *scripted, value any) func() {
	f.send(value, nil)
	unsubscribe := s.client.Subscribe(key, f.fetch, NeverStale(), func(Entry) {})
	s.Require().NoError(s.client.Coordinator().Wait(s.ctx, key))
	return unsubscribe
}

func (s *MutationSuite) TestOptimisticPatchVisibleBeforeOperation() {
	key := NewKey("conversation", "c1")
	f := newScripted()
	defer s.seed(key, f, []string{"hello"})()

	var during []string
	_, err := s.client.Mutate(s.ctx, Mutation{
		Name:       "sendMessage",
		Optimistic: []Optimistic{{Key: key, Patch: appendMessage("hi")}},
	}, func(context.Context) (any, error) {
		during, _ = Value[[]string](s.client.Store().Get(key))
		return "m2", nil
	})

	s.Require().NoError(err)
	s.Equal([]string{"hello", "hi"}, during)
}

func (s *MutationSuite) TestFailureRollsBack() {
	key := NewKey("conversation", "c1")
	f := newScripted()
	defer s.seed(key, f, []string{"hello"})()
	before := s.client.Store().Get(key)
	denied := errors.New("denied")

	_, err := s.client.Mutate(s.ctx, Mutation{
		Name:        "sendMessage",
		Optimistic:  []Optimistic{{Key: key, Patch: appendMessage("hi")}},
		Invalidates: []Key{key},
	}, func(context.Context) (any, error) {
		return nil, denied
	})

	s.ErrorIs(err, denied)
	after := s.client.Store().Get(key)
	s.Equal([]string{"hello"}, after.Value)
	s.Equal(before.Status, after.Status)
	s.Equal(before.LastFetchedAt, after.LastFetchedAt)
	s.Equal(1, f.count(), "failed mutation must not invalidate")
	s.Equal(int64(1), s.client.Stats().Rollbacks)
}

func (s *MutationSuite) TestRepeatedPatchOnOneKeyRollsBackFully() {
	key := NewKey("posts")
	f := newScripted()
	defer s.seed(key, f, []string{"p1"})()

	_, err := s.client.Mutate(s.ctx, Mutation{
		Name: "twice",
		Optimistic: []Optimistic{
			{Key: key, Patch: appendMessage("p2")},
			{Key: key, Patch: appendMessage("p3")},
		},
	}, func(context.Context) (any, error) {
		return nil, errors.New("nope")
	})

	s.Error(err)
	s.Equal([]string{"p1"}, s.client.Store().Get(key).Value)
}

func (s *MutationSuite) TestRollbackDefersToNewerWrite() {
	key := NewKey("conversation", "c1")
	f := newScripted()
	defer s.seed(key, f, []string{"hello"})()

	_, err := s.client.Mutate(s.ctx, Mutation{
		Name:       "sendMessage",
		Optimistic: []Optimistic{{Key: key, Patch: appendMessage("hi")}},
	}, func(context.Context) (any, error) {
		s.client.Store().Set(key, func(e Entry) Entry {
			e.Value = []string{"hello", "from poll"}
			return e
		})
		f.send([]string{"hello", "from refetch"}, nil)
		return nil, errors.New("offline")
	})

	s.Error(err)
	s.Require().NoError(s.client.Coordinator().Wait(s.ctx, key))
	e := s.client.Store().Get(key)
	s.Equal([]string{"hello", "from refetch"}, e.Value)
	s.Equal(int64(0), s.client.Stats().Rollbacks)
}

func (s *MutationSuite) TestSuccessInvalidatesAndRefetches() {
	thread := NewKey("conversation", "c1")
	list := NewKey("conversations")
	tf, lf := newScripted(), newScripted()
	defer s.seed(thread, tf, []string{"hello"})()
	defer s.seed(list, lf, []string{"c1"})()

	tf.send([]string{"hello", "hi"}, nil)
	lf.send([]string{"c1"}, nil)
	_, err := s.client.Mutate(s.ctx, Mutation{
		Name:         "sendMessage",
		Optimistic:   []Optimistic{{Key: thread, Patch: appendMessage("hi")}},
		Invalidates:  []Key{thread, list},
		AwaitRefetch: true,
	}, func(context.Context) (any, error) {
		return "m2", nil
	})

	s.Require().NoError(err)
	s.Equal(2, tf.count())
	s.Equal(2, lf.count())
	e := s.client.Store().Get(thread)
	s.Equal(Success, e.Status)
	s.Equal([]string{"hello", "hi"}, e.Value)
}

func (s *MutationSuite) TestInvalidateResult() {
	f := newScripted()
	key := NewKey("conversation", "new-id")
	defer s.seed(key, f, []string{})()
	f.send([]string{"welcome"}, nil)

	got, err := s.client.Mutate(s.ctx, Mutation{
		Name: "createConversation",
		InvalidateResult: func(result any) []Key {
			return []Key{NewKey("conversation", result.(string))}
		},
		AwaitRefetch: true,
	}, func(context.Context) (any, error) {
		return "new-id", nil
	})

	s.Require().NoError(err)
	s.Equal("new-id", got)
	s.Equal([]string{"welcome"}, s.client.Store().Get(key).Value)
}

func (s *MutationSuite) TestGateClosed() {
	s.gate.ready.Store(false)
	called := false

	_, err := s.client.Mutate(s.ctx, Mutation{Name: "likePost"}, func(context.Context) (any, error) {
		called = true
		return nil, nil
	})

	s.ErrorIs(err, ErrUnavailable)
	s.False(called)
	s.Equal(int64(0), s.client.Stats().Mutations)
}

func (s *MutationSuite) TestOptimisticSupersedesInFlightFetch() {
	key := NewKey("conversation", "c1")
	f := newScripted()
	defer s.seed(key, f, []string{"hello"})()

	s.client.Coordinator().Refetch(key, nil)
	s.Require().True(s.client.Coordinator().InFlight(key))

	_, err := s.client.Mutate(s.ctx, Mutation{
		Name:       "sendMessage",
		Optimistic: []Optimistic{{Key: key, Patch: appendMessage("hi")}},
	}, func(context.Context) (any, error) {
		f.send([]string{"hello"}, nil)
		return "m2", nil
	})
	s.Require().NoError(err)

	s.Eventually(func() bool {
		return s.client.Stats().Discarded == 1
	}, time.Second, 5*time.Millisecond)
	if diff := cmp.Diff([]string{"hello", "hi"}, s.client.Store().Get(key).Value); diff != "" {
		s.Failf("stale response erased optimistic write", "(-want +got):\n%s", diff)
	}
}

func TestMutatorRun(t *testing.T) {
	client := New()
	defer client.Close()

	key := NewKey("posts")
	client.Store().Set(key, func(e Entry) Entry {
		e.Status = Success
		e.Value = []string{"p1"}
		return e
	})

	create := NewMutator(client,
		func(_ context.Context, content string) (string, error) {
			if content == "" {
				return "", errors.New("empty post")
			}
			return "p2", nil
		},
		func(content string) Mutation {
			return Mutation{
				Name:        "createPost",
				Optimistic:  []Optimistic{{Key: key, Patch: appendMessage("pending:" + content)}},
				Invalidates: []Key{key},
			}
		})

	id, err := create.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if id != "p2" {
		t.Errorf("Run() = %q, want p2", id)
	}

	if _, err := create.Run(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty post")
	}
	got, _ := Value[[]string](client.Store().Get(key))
	if diff := cmp.Diff([]string{"p1", "pending:hello"}, got); diff != "" {
		t.Errorf("cache after failed run (-want +got):\n%s", diff)
	}
}

func (s *MutationSuite) TestInvalidationCostsExactlyOneRefetch() {
	key := NewKey("posts")
	f := newScripted(reply{value: []string{"p1"}}, reply{value: []string{"p1", "p2"}})

	_, err := s.client.Fetch(s.ctx, key, f.fetch, NeverStale())
	s.Require().NoError(err)

	_, err = s.client.Mutate(s.ctx, Mutation{
		Name:        "createPost",
		Invalidates: []Key{NewKey("posts")},
	}, func(context.Context) (any, error) {
		return "p2", nil
	})
	s.Require().NoError(err)
	s.Equal(1, f.count(), "unobserved keys are only marked stale")

	for i := 0; i < 3; i++ {
		e, err := s.client.Fetch(s.ctx, key, f.fetch, NeverStale())
		s.Require().NoError(err)
		s.Equal([]string{"p1", "p2"}, e.Value)
	}
	s.Equal(2, f.count())
}

func (s *MutationSuite) TestFailedMutationKeepsPendingInvalidation() {
	key := NewKey("posts")
	f := newScripted()
	defer s.seed(key, f, []string{"p1"})()

	s.client.Invalidate(key)
	s.Require().True(s.client.Coordinator().InFlight(key))

	_, err := s.client.Mutate(s.ctx, Mutation{
		Name:       "likePost",
		Optimistic: []Optimistic{{Key: key, Patch: appendMessage("liked")}},
	}, func(context.Context) (any, error) {
		return nil, errors.New("rejected")
	})
	s.Require().Error(err)

	// The dropped fetch and its replacement each take one reply.
	f.send([]string{"p1", "p2"}, nil)
	f.send([]string{"p1", "p2"}, nil)
	s.Eventually(func() bool {
		e := s.client.Store().Get(key)
		return e.Status == Success && !e.LastFetchedAt.IsZero() && cmp.Equal([]string{"p1", "p2"}, e.Value)
	}, time.Second, 5*time.Millisecond)
	s.Equal(3, f.count())
	s.Equal(int64(1), s.client.Stats().Rollbacks)
}

func (s *MutationSuite) TestAwaitRefetchWaitsForFollowUpFetch() {
	key := NewKey("characters")
	f := newScripted()
	unsubscribe := s.client.Subscribe(key, f.fetch, AlwaysStale(), func(Entry) {})
	defer unsubscribe()
	s.Require().True(s.client.Coordinator().InFlight(key))

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.send([]string{"old"}, nil)
		for i := 0; i < 1000 && f.count() < 2; i++ {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
		f.send([]string{"old", "new"}, nil)
	}()

	_, err := s.client.Mutate(s.ctx, Mutation{
		Name:         "createCharacter",
		Invalidates:  []Key{key},
		AwaitRefetch: true,
	}, func(context.Context) (any, error) {
		return "ch-new", nil
	})

	s.Require().NoError(err)
	s.Equal([]string{"old", "new"}, s.client.Store().Get(key).Value)
	s.Equal(2, f.count())
}

func TestMutatorRunNilResult(t *testing.T) {
	client := New()
	defer client.Close()

	touch := NewMutator(client,
		func(context.Context, string) (fmt.Stringer, error) { return nil, nil },
		nil)

	got, err := touch.Run(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != nil {
		t.Errorf("Run() = %v, want nil", got)
	}
}
