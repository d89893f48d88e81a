package social

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/suite"

	"github.com/five82/feedsync/internal/query"
	"github.com/five82/feedsync/internal/remote"
)

const caller = "user-1"

type QueriesSuite struct {
	suite.Suite
	backend *Memory
	client  *query.Client
	q       *Queries
	ctx     context.Context
}

func (s *QueriesSuite) SetupTest() {
	s.backend = NewMemory(caller)
	s.client = query.New(query.WithPolicies(DefaultPolicies()))
	var seq atomic.Int32
	s.q = NewQueries(s.client, NewAPI(s.backend), caller,
		WithIDs(func() string { return strconv.Itoa(int(seq.Add(1))) }),
	)
	s.ctx = context.Background()
}

func (s *QueriesSuite) TearDownTest() {
	s.client.Close()
}

func TestQueriesSuite(t *testing.T) {
	suite.Run(t, new(QueriesSuite))
}

func (s *QueriesSuite) waitFor(cond func() bool) {
	s.Require().Eventually(cond, 2*time.Second, 5*time.Millisecond)
}

func (s *QueriesSuite) TestSendMessageShowsExactlyOneCopy() {
	convID, err := s.q.CreateConversation.Run(s.ctx, []string{caller, "charX"})
	s.Require().NoError(err)

	thread := s.q.Conversation(convID)
	defer thread.Close()
	s.waitFor(func() bool { return thread.View().Status == query.Success })
	s.Empty(thread.View().Value.Messages)

	s.backend.SetDelay(50 * time.Millisecond)
	done := make(chan error, 1)
	go func() {
		_, err := s.q.SendMessage.Run(s.ctx, NewMessage{ConversationID: convID, SenderID: caller, Content: "hi"})
		done <- err
	}()

	s.waitFor(func() bool {
		v := thread.View()
		return v.HasValue && len(v.Value.Messages) == 1 && v.Value.Messages[0].Pending
	})
	s.Equal(PendingPrefix+"1", thread.View().Value.Messages[0].ID)

	s.Require().NoError(<-done)
	s.waitFor(func() bool {
		v := thread.View()
		return v.Status == query.Success && len(v.Value.Messages) == 1 && !v.Value.Messages[0].Pending
	})

	msgs := thread.View().Value.Messages
	want := []Message{{ConversationID: convID, Sender: caller, Content: "hi", ProfileOwner: caller}}
	opts := cmpopts.IgnoreFields(Message{}, "ID", "Timestamp")
	if diff := cmp.Diff(want, msgs, opts); diff != "" {
		s.Failf("thread mismatch", "(-want +got):\n%s", diff)
	}
	s.NotContains(msgs[0].ID, PendingPrefix)
}

func (s *QueriesSuite) TestSendMessageFailureRollsBack() {
	convID, err := s.q.CreateConversation.Run(s.ctx, []string{caller, "charX"})
	s.Require().NoError(err)
	_, err = s.q.SendMessage.Run(s.ctx, NewMessage{ConversationID: convID, SenderID: caller, Content: "hello"})
	s.Require().NoError(err)

	thread := s.q.Conversation(convID)
	defer thread.Close()
	s.waitFor(func() bool { return thread.View().Status == query.Success })
	before := thread.View().Value

	s.backend.FailNext("sendMessage", errors.New("canister trapped"))
	_, err = s.q.SendMessage.Run(s.ctx, NewMessage{ConversationID: convID, SenderID: caller, Content: "lost"})

	var callErr *remote.CallError
	s.Require().ErrorAs(err, &callErr)
	s.Equal("sendMessage", callErr.Method)
	if diff := cmp.Diff(before, thread.View().Value); diff != "" {
		s.Failf("thread changed after failed send", "(-want +got):\n%s", diff)
	}
}

func (s *QueriesSuite) TestSendMessageRefreshesConversationList() {
	convID, err := s.q.CreateConversation.Run(s.ctx, []string{caller, "charX"})
	s.Require().NoError(err)

	list := s.q.Conversations()
	defer list.Close()
	s.waitFor(func() bool { return list.View().Status == query.Success && len(list.View().Value) == 1 })

	_, err = s.q.SendMessage.Run(s.ctx, NewMessage{ConversationID: convID, SenderID: caller, Content: "ping"})
	s.Require().NoError(err)

	s.waitFor(func() bool {
		v := list.View()
		if !v.HasValue || len(v.Value) != 1 {
			return false
		}
		last, ok := v.Value[0].LastMessage()
		return ok && last.Content == "ping"
	})
}

func (s *QueriesSuite) TestCreateConversationLoadsNewThread() {
	list := s.q.Conversations()
	defer list.Close()
	s.waitFor(func() bool { return list.View().Status == query.Success })

	id, err := s.q.CreateConversation.Run(s.ctx, []string{caller, "charY"})
	s.Require().NoError(err)

	s.waitFor(func() bool {
		v := list.View()
		return v.Status == query.Success && len(v.Value) == 1 && v.Value[0].ID == id
	})
}

func (s *QueriesSuite) TestMissingConversation() {
	thread := s.q.Conversation("nope")
	defer thread.Close()

	s.waitFor(func() bool { return thread.View().Status == query.Error })
	s.ErrorIs(thread.View().Err, ErrNotFound)
	s.False(thread.View().HasValue)
}

func (s *QueriesSuite) TestEmptyConversationIDIsDisabled() {
	thread := s.q.Conversation("")
	defer thread.Close()

	s.Equal(query.Idle, thread.View().Status)
	s.Equal(0, s.backend.Calls("getConversation"))
}

func (s *QueriesSuite) TestLikePostToggle() {
	postID, err := s.q.CreatePost.Run(s.ctx, NewPost{AuthorID: "charX", Content: "first"})
	s.Require().NoError(err)

	posts := s.q.Posts()
	defer posts.Close()
	s.waitFor(func() bool { return posts.View().Status == query.Success && len(posts.View().Value) == 1 })

	_, err = s.q.LikePost.Run(s.ctx, postID)
	s.Require().NoError(err)
	s.waitFor(func() bool {
		v := posts.View()
		return v.Status == query.Success && v.Value[0].LikedBy(caller)
	})

	s.backend.FailNext("likePost", errors.New("rejected"))
	_, err = s.q.LikePost.Run(s.ctx, postID)
	s.Require().Error(err)
	s.True(posts.View().Value[0].LikedBy(caller), "failed unlike must roll back")
}

func (s *QueriesSuite) TestDeletePostOptimistic() {
	keep, err := s.q.CreatePost.Run(s.ctx, NewPost{AuthorID: "charX", Content: "keep"})
	s.Require().NoError(err)
	drop, err := s.q.CreatePost.Run(s.ctx, NewPost{AuthorID: "charX", Content: "drop"})
	s.Require().NoError(err)

	posts := s.q.Posts()
	defer posts.Close()
	s.waitFor(func() bool { return len(posts.View().Value) == 2 })

	s.backend.SetDelay(50 * time.Millisecond)
	done := make(chan error, 1)
	go func() {
		_, err := s.q.DeletePost.Run(s.ctx, drop)
		done <- err
	}()
	s.waitFor(func() bool { return len(posts.View().Value) == 1 })
	s.Equal(keep, posts.View().Value[0].ID)
	s.Require().NoError(<-done)
}

func (s *QueriesSuite) TestCreateCommentAppendsPending() {
	postID, err := s.q.CreatePost.Run(s.ctx, NewPost{AuthorID: "charX", Content: "post"})
	s.Require().NoError(err)

	comments := s.q.Comments(postID)
	defer comments.Close()
	s.waitFor(func() bool { return comments.View().Status == query.Success })

	s.backend.SetDelay(50 * time.Millisecond)
	done := make(chan error, 1)
	go func() {
		_, err := s.q.CreateComment.Run(s.ctx, NewComment{PostID: postID, AuthorID: "charY", Content: "nice"})
		done <- err
	}()
	s.waitFor(func() bool {
		v := comments.View()
		return len(v.Value) == 1 && v.Value[0].Pending
	})
	s.Require().NoError(<-done)
	s.waitFor(func() bool {
		v := comments.View()
		return len(v.Value) == 1 && !v.Value[0].Pending
	})
}

func (s *QueriesSuite) TestDeleteCharacterAwaitsRefetch() {
	s.backend.Seed([]Character{{ID: "ch-a", Name: "Ada"}, {ID: "ch-b", Name: "Bo"}}, nil)

	chars := s.q.Characters()
	defer chars.Close()
	s.waitFor(func() bool { return chars.View().Status == query.Success })
	fetchesBefore := s.backend.Calls("getCharacterProfiles")

	_, err := s.q.DeleteCharacter.Run(s.ctx, "ch-a")
	s.Require().NoError(err)

	s.Equal(fetchesBefore+1, s.backend.Calls("getCharacterProfiles"))
	got := chars.View().Value
	s.Require().Len(got, 1)
	s.Equal("ch-b", got[0].ID)
}

func (s *QueriesSuite) TestSaveProfile() {
	profile := s.q.Profile()
	defer profile.Close()
	s.waitFor(func() bool { return profile.View().Status == query.Success })
	s.True(profile.View().Value.IsZero())

	_, err := s.q.SaveProfile.Run(s.ctx, UserProfile{Name: "Ada", Bio: "hi"})
	s.Require().NoError(err)
	s.waitFor(func() bool {
		v := profile.View()
		return v.Status == query.Success && v.Value.Name == "Ada"
	})
}

func TestMutationsFailWhileUnavailable(t *testing.T) {
	gate := remote.NewAvailability()
	client := query.New(query.WithGate(gate))
	defer client.Close()
	backend := NewMemory(caller)
	q := NewQueries(client, NewAPI(backend), caller)

	_, err := q.SendMessage.Run(context.Background(), NewMessage{ConversationID: "c1", SenderID: caller, Content: "hi"})
	if !errors.Is(err, query.ErrUnavailable) {
		t.Fatalf("SendMessage error = %v, want ErrUnavailable", err)
	}
	if n := backend.Calls("sendMessage"); n != 0 {
		t.Fatalf("backend saw %d sendMessage calls", n)
	}

	posts := q.Posts()
	defer posts.Close()
	if got := posts.View().Status; got != query.Idle {
		t.Fatalf("posts status = %s before the gate opens", got)
	}

	gate.OnReady(client.Resume)
	gate.Set(true)
	deadline := time.Now().Add(2 * time.Second)
	for posts.View().Status != query.Success {
		if time.Now().After(deadline) {
			t.Fatal("posts never loaded after the gate opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	tests := []struct {
		key  query.Key
		want query.Policy
	}{
		{ProfileKey(), query.NeverStale()},
		{CharactersKey(), query.AlwaysStale()},
		{PostsKey(), query.NeverStale()},
		{CommentsKey("p1"), query.NeverStale()},
		{StoriesKey(), query.Poll(60 * time.Second)},
		{VideosKey(), query.NeverStale()},
		{ConversationsKey(), query.AlwaysStale()},
		{ConversationKey("c1"), query.Poll(3 * time.Second)},
	}
	for _, tt := range tests {
		if got := p.For(tt.key); got != tt.want {
			t.Errorf("policy for %s = %s, want %s", tt.key, got, tt.want)
		}
	}
	if len(p.Families) != len(Families()) {
		t.Errorf("policies cover %d families, want %d", len(p.Families), len(Families()))
	}
}

func TestEmptyIDsYieldEmptyKeys(t *testing.T) {
	if !CommentsKey("").IsZero() || !ConversationKey("").IsZero() {
		t.Fatal("empty ids must disable the resource")
	}
}
