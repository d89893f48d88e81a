package social

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/five82/feedsync/internal/query"
)

// CharacterInput creates a character.
type CharacterInput struct {
	Name string
	Bio  string
}

// CharacterUpdate edits a character.
type CharacterUpdate struct {
	ID   string
	Name string
	Bio  string
}

// AvatarUpload sets a character avatar.
type AvatarUpload struct {
	CharacterID string
	ImageURL    string
}

// NewPost publishes to the feed.
type NewPost struct {
	AuthorID string
	Content  string
	ImageURL string
}

// NewComment replies to a post.
type NewComment struct {
	PostID   string
	AuthorID string
	Content  string
}

// NewStory publishes a story.
type NewStory struct {
	AuthorID string
	ImageURL string
	Caption  string
}

// NewVideo publishes a video.
type NewVideo struct {
	AuthorID string
	VideoURL string
	Caption  string
}

// NewMessage posts to a thread.
type NewMessage struct {
	ConversationID string
	SenderID       string
	Content        string
}

// Queries binds the social API to the query engine: one definition of every
// resource with its key and policy, and one of every write with its
// optimistic patch and invalidations.
type Queries struct {
	client   *query.Client
	api      *API
	identity string
	now      func() time.Time
	newID    func() string

	SaveProfile        *query.Mutator[UserProfile, struct{}]
	CreateCharacter    *query.Mutator[CharacterInput, string]
	UpdateCharacter    *query.Mutator[CharacterUpdate, struct{}]
	UploadAvatar       *query.Mutator[AvatarUpload, struct{}]
	DeleteCharacter    *query.Mutator[string, struct{}]
	CreatePost         *query.Mutator[NewPost, string]
	LikePost           *query.Mutator[string, struct{}]
	DeletePost         *query.Mutator[string, struct{}]
	CreateComment      *query.Mutator[NewComment, string]
	CreateStory        *query.Mutator[NewStory, string]
	DeleteStory        *query.Mutator[string, struct{}]
	CreateVideo        *query.Mutator[NewVideo, string]
	DeleteVideo        *query.Mutator[string, struct{}]
	CreateConversation *query.Mutator[[]string, string]
	SendMessage        *query.Mutator[NewMessage, string]
}

// QueriesOption configures Queries.
type QueriesOption func(*Queries)

// WithNow sets the clock used to timestamp optimistic items.
func WithNow(now func() time.Time) QueriesOption {
	return func(q *Queries) {
		if now != nil {
			q.now = now
		}
	}
}

// WithIDs sets the generator of optimistic placeholder ids.
func WithIDs(newID func() string) QueriesOption {
	return func(q *Queries) {
		if newID != nil {
			q.newID = newID
		}
	}
}

// NewQueries wires api into client. identity is the caller id used for
// optimistic like toggles; it may be empty.
func NewQueries(client *query.Client, api *API, identity string, opts ...QueriesOption) *Queries {
	q := &Queries{
		client:   client,
		api:      api,
		identity: identity,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.bindMutators()
	return q
}

// Client returns the underlying query client.
func (q *Queries) Client() *query.Client { return q.client }

// Profile returns a resource bound to the caller's profile.
func (q *Queries) Profile() *query.Resource[UserProfile] {
	return bind(q, ProfileKey(), func(ctx context.Context, _ query.Key) (UserProfile, error) {
		return q.api.CallerProfile(ctx)
	})
}

// Characters returns a resource bound to the character list.
func (q *Queries) Characters() *query.Resource[[]Character] {
	return bind(q, CharactersKey(), func(ctx context.Context, _ query.Key) ([]Character, error) {
		return q.api.Characters(ctx)
	})
}

// Posts returns a resource bound to the feed.
func (q *Queries) Posts() *query.Resource[[]Post] {
	return bind(q, PostsKey(), func(ctx context.Context, _ query.Key) ([]Post, error) {
		return q.api.Posts(ctx)
	})
}

// Comments returns a resource bound to the comments of postID. Rebind it
// with SetKey(CommentsKey(id)).
func (q *Queries) Comments(postID string) *query.Resource[[]Comment] {
	return bind(q, CommentsKey(postID), func(ctx context.Context, key query.Key) ([]Comment, error) {
		return q.api.Comments(ctx, key[1])
	})
}

// Stories returns a resource bound to the story row.
func (q *Queries) Stories() *query.Resource[[]Story] {
	return bind(q, StoriesKey(), func(ctx context.Context, _ query.Key) ([]Story, error) {
		return q.api.Stories(ctx)
	})
}

// Videos returns a resource bound to the video list.
func (q *Queries) Videos() *query.Resource[[]Video] {
	return bind(q, VideosKey(), func(ctx context.Context, _ query.Key) ([]Video, error) {
		return q.api.Videos(ctx)
	})
}

// Conversations returns a resource bound to the conversation list.
func (q *Queries) Conversations() *query.Resource[[]Conversation] {
	return bind(q, ConversationsKey(), func(ctx context.Context, _ query.Key) ([]Conversation, error) {
		return q.api.Conversations(ctx)
	})
}

// Conversation returns a resource bound to one thread. An empty id leaves it
// disabled until SetKey(ConversationKey(id)).
func (q *Queries) Conversation(id string) *query.Resource[*Conversation] {
	return bind(q, ConversationKey(id), func(ctx context.Context, key query.Key) (*Conversation, error) {
		return q.api.Conversation(ctx, key[1])
	})
}

func bind[T any](q *Queries, key query.Key, fetch func(context.Context, query.Key) (T, error)) *query.Resource[T] {
	r := query.NewResource(q.client, query.Policy{}, fetch)
	r.SetKey(key)
	return r
}

func (q *Queries) bindMutators() {
	c := q.client

	q.SaveProfile = query.NewMutator(c,
		func(ctx context.Context, p UserProfile) (struct{}, error) {
			return struct{}{}, q.api.SaveProfile(ctx, p)
		},
		func(p UserProfile) query.Mutation {
			return query.Mutation{
				Name: "saveCallerUserProfile",
				Optimistic: []query.Optimistic{{Key: ProfileKey(), Patch: func(e query.Entry) query.Entry {
					e.Value = p
					return e
				}}},
				Invalidates: []query.Key{ProfileKey()},
			}
		})

	q.CreateCharacter = query.NewMutator(c,
		func(ctx context.Context, in CharacterInput) (string, error) {
			return q.api.CreateCharacter(ctx, in.Name, in.Bio)
		},
		func(CharacterInput) query.Mutation {
			return charactersChanged("createCharacter", nil)
		})

	q.UpdateCharacter = query.NewMutator(c,
		func(ctx context.Context, in CharacterUpdate) (struct{}, error) {
			return struct{}{}, q.api.UpdateCharacter(ctx, in.ID, in.Name, in.Bio)
		},
		func(in CharacterUpdate) query.Mutation {
			return charactersChanged("updateCharacter", patchList(func(list []Character) []Character {
				return mapByID(list, in.ID, characterIDOf, func(ch Character) Character {
					ch.Name, ch.Bio = in.Name, in.Bio
					return ch
				})
			}))
		})

	q.UploadAvatar = query.NewMutator(c,
		func(ctx context.Context, in AvatarUpload) (struct{}, error) {
			return struct{}{}, q.api.UploadAvatar(ctx, in.CharacterID, in.ImageURL)
		},
		func(AvatarUpload) query.Mutation {
			return charactersChanged("uploadAvatar", nil)
		})

	q.DeleteCharacter = query.NewMutator(c,
		func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, q.api.DeleteCharacter(ctx, id)
		},
		func(id string) query.Mutation {
			return charactersChanged("deleteCharacter", patchList(func(list []Character) []Character {
				return removeByID(list, id, characterIDOf)
			}))
		})

	q.CreatePost = query.NewMutator(c,
		func(ctx context.Context, in NewPost) (string, error) {
			return q.api.CreatePost(ctx, in.AuthorID, in.Content, in.ImageURL)
		},
		func(NewPost) query.Mutation {
			return query.Mutation{Name: "createPost", Invalidates: []query.Key{PostsKey()}}
		})

	q.LikePost = query.NewMutator(c,
		func(ctx context.Context, postID string) (struct{}, error) {
			return struct{}{}, q.api.LikePost(ctx, postID)
		},
		func(postID string) query.Mutation {
			m := query.Mutation{Name: "likePost", Invalidates: []query.Key{PostsKey()}}
			if q.identity != "" {
				m.Optimistic = []query.Optimistic{{Key: PostsKey(), Patch: patchList(func(list []Post) []Post {
					return mapByID(list, postID, postIDOf, func(p Post) Post {
						p.Likes = toggle(p.Likes, q.identity)
						return p
					})
				})}}
			}
			return m
		})

	q.DeletePost = query.NewMutator(c,
		func(ctx context.Context, postID string) (struct{}, error) {
			return struct{}{}, q.api.DeletePost(ctx, postID)
		},
		func(postID string) query.Mutation {
			return query.Mutation{
				Name: "deletePost",
				Optimistic: []query.Optimistic{{Key: PostsKey(), Patch: patchList(func(list []Post) []Post {
					return removeByID(list, postID, postIDOf)
				})}},
				Invalidates: []query.Key{PostsKey()},
			}
		})

	q.CreateComment = query.NewMutator(c,
		func(ctx context.Context, in NewComment) (string, error) {
			return q.api.CreateComment(ctx, in.PostID, in.AuthorID, in.Content)
		},
		func(in NewComment) query.Mutation {
			key := CommentsKey(in.PostID)
			pending := Comment{
				ID:        PendingPrefix + q.newID(),
				PostID:    in.PostID,
				Content:   in.Content,
				Author:    in.AuthorID,
				Timestamp: q.now().UnixNano(),
				Pending:   true,
			}
			return query.Mutation{
				Name: "createComment",
				Optimistic: []query.Optimistic{{Key: key, Patch: patchList(func(list []Comment) []Comment {
					return append(append([]Comment(nil), list...), pending)
				})}},
				Invalidates: []query.Key{key},
			}
		})

	q.CreateStory = query.NewMutator(c,
		func(ctx context.Context, in NewStory) (string, error) {
			return q.api.CreateStory(ctx, in.AuthorID, in.ImageURL, in.Caption)
		},
		func(NewStory) query.Mutation {
			return query.Mutation{Name: "createStory", Invalidates: []query.Key{StoriesKey()}}
		})

	q.DeleteStory = query.NewMutator(c,
		func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, q.api.DeleteStory(ctx, id)
		},
		func(id string) query.Mutation {
			return query.Mutation{
				Name: "deleteStory",
				Optimistic: []query.Optimistic{{Key: StoriesKey(), Patch: patchList(func(list []Story) []Story {
					return removeByID(list, id, storyIDOf)
				})}},
				Invalidates: []query.Key{StoriesKey()},
			}
		})

	q.CreateVideo = query.NewMutator(c,
		func(ctx context.Context, in NewVideo) (string, error) {
			return q.api.CreateVideo(ctx, in.AuthorID, in.VideoURL, in.Caption)
		},
		func(NewVideo) query.Mutation {
			return query.Mutation{Name: "createVideo", Invalidates: []query.Key{VideosKey()}}
		})

	q.DeleteVideo = query.NewMutator(c,
		func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, q.api.DeleteVideo(ctx, id)
		},
		func(id string) query.Mutation {
			return query.Mutation{
				Name: "deleteVideo",
				Optimistic: []query.Optimistic{{Key: VideosKey(), Patch: patchList(func(list []Video) []Video {
					return removeByID(list, id, videoIDOf)
				})}},
				Invalidates: []query.Key{VideosKey()},
			}
		})

	q.CreateConversation = query.NewMutator(c,
		func(ctx context.Context, participants []string) (string, error) {
			return q.api.CreateConversation(ctx, participants)
		},
		func([]string) query.Mutation {
			return query.Mutation{
				Name:        "createConversation",
				Invalidates: []query.Key{ConversationsKey()},
				InvalidateResult: func(result any) []query.Key {
					id, _ := result.(string)
					if key := ConversationKey(id); key != nil {
						return []query.Key{key}
					}
					return nil
				},
			}
		})

	q.SendMessage = query.NewMutator(c,
		func(ctx context.Context, in NewMessage) (string, error) {
			return q.api.SendMessage(ctx, in.ConversationID, in.SenderID, in.Content)
		},
		func(in NewMessage) query.Mutation {
			key := ConversationKey(in.ConversationID)
			pending := Message{
				ID:             PendingPrefix + q.newID(),
				ConversationID: in.ConversationID,
				Content:        in.Content,
				Sender:         in.SenderID,
				Timestamp:      q.now().UnixNano(),
				Pending:        true,
			}
			return query.Mutation{
				Name:        "sendMessage",
				Optimistic:  []query.Optimistic{{Key: key, Patch: appendMessage(pending)}},
				Invalidates: []query.Key{key, ConversationsKey()},
			}
		})
}

// charactersChanged invalidates the character list and waits for its
// refetch, so character pickers never offer a deleted or missing character.
func charactersChanged(name string, patch query.Patch) query.Mutation {
	m := query.Mutation{
		Name:         name,
		Invalidates:  []query.Key{CharactersKey()},
		AwaitRefetch: true,
	}
	if patch != nil {
		m.Optimistic = []query.Optimistic{{Key: CharactersKey(), Patch: patch}}
	}
	return m
}

func appendMessage(msg Message) query.Patch {
	return func(e query.Entry) query.Entry {
		conv, ok := query.Value[*Conversation](e)
		if !ok || conv == nil {
			return e
		}
		next := *conv
		next.Messages = append(append([]Message(nil), conv.Messages...), msg)
		e.Value = &next
		return e
	}
}

// patchList applies fn to a copy-on-write list value. Entries without a list
// value are left untouched.
func patchList[T any](fn func([]T) []T) query.Patch {
	return func(e query.Entry) query.Entry {
		list, ok := query.Value[[]T](e)
		if !ok {
			return e
		}
		e.Value = fn(list)
		return e
	}
}

func removeByID[T any](list []T, id string, idOf func(T) string) []T {
	out := make([]T, 0, len(list))
	for _, item := range list {
		if idOf(item) != id {
			out = append(out, item)
		}
	}
	return out
}

func mapByID[T any](list []T, id string, idOf func(T) string, fn func(T) T) []T {
	out := make([]T, len(list))
	for i, item := range list {
		if idOf(item) == id {
			item = fn(item)
		}
		out[i] = item
	}
	return out
}

func toggle(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, v := range ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func characterIDOf(c Character) string { return c.ID }
func postIDOf(p Post) string { return p.ID }
func storyIDOf(s Story) string { return s.ID }
func videoIDOf(v Video) string { return v.ID }
