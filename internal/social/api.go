package social

import (
	"context"

	"github.com/pkg/errors"

	"github.com/five82/feedsync/internal/remote"
)

// ErrNotFound is returned when the backend answers null for a lookup.
var ErrNotFound = errors.New("not found")

// API is the typed capability set of the social backend.
type API struct {
	actor remote.Actor
}

// NewAPI wraps actor.
func NewAPI(actor remote.Actor) *API {
	return &API{actor: actor}
}

func (a *API) call(ctx context.Context, method string, reply any, args ...any) error {
	if err := a.actor.Call(ctx, method, args, reply); err != nil {
		return errors.Wrap(err, method)
	}
	return nil
}

// CallerProfile returns the caller's profile, or the zero profile if none
// has been saved.
func (a *API) CallerProfile(ctx context.Context) (UserProfile, error) {
	var p *UserProfile
	if err := a.call(ctx, "getCallerUserProfile", &p); err != nil {
		return UserProfile{}, err
	}
	if p == nil {
		return UserProfile{}, nil
	}
	return *p, nil
}

// SaveProfile stores the caller's profile.
func (a *API) SaveProfile(ctx context.Context, p UserProfile) error {
	return a.call(ctx, "saveCallerUserProfile", nil, p)
}

// Characters lists every character.
func (a *API) Characters(ctx context.Context) ([]Character, error) {
	var out []Character
	if err := a.call(ctx, "getCharacterProfiles", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CreateCharacter creates a character and returns its id.
func (a *API) CreateCharacter(ctx context.Context, name, bio string) (string, error) {
	var id string
	err := a.call(ctx, "createCharacter", &id, name, bio)
	return id, err
}

// UpdateCharacter changes a character's name and bio.
func (a *API) UpdateCharacter(ctx context.Context, id, name, bio string) error {
	return a.call(ctx, "updateCharacter", nil, id, name, bio)
}

// UploadAvatar sets a character's avatar to the blob at imageURL.
func (a *API) UploadAvatar(ctx context.Context, id, imageURL string) error {
	return a.call(ctx, "uploadAvatar", nil, id, imageURL)
}

// DeleteCharacter removes a character.
func (a *API) DeleteCharacter(ctx context.Context, id string) error {
	return a.call(ctx, "deleteCharacter", nil, id)
}

// Posts lists the feed.
func (a *API) Posts(ctx context.Context) ([]Post, error) {
	var out []Post
	if err := a.call(ctx, "getPosts", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CreatePost publishes a post as authorID and returns its id. An empty
// imageURL posts text only.
func (a *API) CreatePost(ctx context.Context, authorID, content, imageURL string) (string, error) {
	var image any
	if imageURL != "" {
		image = imageURL
	}
	var id string
	err := a.call(ctx, "createPost", &id, authorID, content, image)
	return id, err
}

// LikePost toggles the caller's like on a post.
func (a *API) LikePost(ctx context.Context, postID string) error {
	return a.call(ctx, "likePost", nil, postID)
}

// DeletePost removes a post.
func (a *API) DeletePost(ctx context.Context, postID string) error {
	return a.call(ctx, "deletePost", nil, postID)
}

// Comments lists the comments of a post.
func (a *API) Comments(ctx context.Context, postID string) ([]Comment, error) {
	var out []Comment
	if err := a.call(ctx, "getComments", &out, postID); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CreateComment replies to a post as authorID and returns the comment id.
func (a *API) CreateComment(ctx context.Context, postID, authorID, content string) (string, error) {
	var id string
	err := a.call(ctx, "createComment", &id, postID, authorID, content)
	return id, err
}

// Stories lists the current stories.
func (a *API) Stories(ctx context.Context) ([]Story, error) {
	var out []Story
	if err := a.call(ctx, "getStories", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CreateStory publishes a story and returns its id.
func (a *API) CreateStory(ctx context.Context, authorID, imageURL, caption string) (string, error) {
	var id string
	err := a.call(ctx, "createStory", &id, authorID, imageURL, caption)
	return id, err
}

// DeleteStory removes a story.
func (a *API) DeleteStory(ctx context.Context, storyID string) error {
	return a.call(ctx, "deleteStory", nil, storyID)
}

// Videos lists the uploaded videos.
func (a *API) Videos(ctx context.Context) ([]Video, error) {
	var out []Video
	if err := a.call(ctx, "getVideos", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CreateVideo publishes a video and returns its id.
func (a *API) CreateVideo(ctx context.Context, authorID, videoURL, caption string) (string, error) {
	var id string
	err := a.call(ctx, "createVideo", &id, authorID, videoURL, caption)
	return id, err
}

// DeleteVideo removes a video.
func (a *API) DeleteVideo(ctx context.Context, videoID string) error {
	return a.call(ctx, "deleteVideo", nil, videoID)
}

// Conversations lists every conversation visible to the caller.
func (a *API) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := a.call(ctx, "getConversations", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Conversation returns one thread, or ErrNotFound.
func (a *API) Conversation(ctx context.Context, id string) (*Conversation, error) {
	var out *Conversation
	if err := a.call(ctx, "getConversation", &out, id); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.Wrapf(ErrNotFound, "conversation %s", id)
	}
	return out, nil
}

// CreateConversation starts a thread between participants and returns its id.
func (a *API) CreateConversation(ctx context.Context, participants []string) (string, error) {
	var id string
	err := a.call(ctx, "createConversation", &id, participants)
	return id, err
}

// SendMessage posts content to a thread as senderID and returns the message id.
func (a *API) SendMessage(ctx context.Context, conversationID, senderID, content string) (string, error) {
	var id string
	err := a.call(ctx, "sendMessage", &id, conversationID, senderID, content)
	return id, err
}

// nonNil keeps empty lists distinct from missing values in the cache.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
