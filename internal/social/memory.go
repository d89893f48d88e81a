package social

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/five82/feedsync/internal/remote"
)

// Ensure Memory implements the actor boundary at compile time.
var (
	_ remote.Actor  = (*Memory)(nil)
	_ remote.Pinger = (*Memory)(nil)
)

// Memory is an in-process social backend. It answers the same methods as the
// actor gateway, round-tripping arguments and results through JSON so callers
// never share memory with it. It backs the demo mode and tests.
type Memory struct {
	mu     sync.Mutex
	caller string
	now    func() time.Time
	seq    int
	delay  time.Duration
	fail   map[string]error

	profiles      map[string]UserProfile
	characters    []Character
	posts         []Post
	comments      []Comment
	stories       []Story
	videos        []Video
	conversations []Conversation
	calls         map[string]int
}

// NewMemory returns an empty backend acting on behalf of caller.
func NewMemory(caller string) *Memory {
	return &Memory{
		caller:   caller,
		now:      time.Now,
		fail:     make(map[string]error),
		profiles: make(map[string]UserProfile),
		calls:    make(map[string]int),
	}
}

// SetDelay makes every call wait d before answering.
func (m *Memory) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// FailNext makes the next call of method fail with err.
func (m *Memory) FailNext(method string, err error) {
	m.mu.Lock()
	m.fail[method] = err
	m.mu.Unlock()
}

// Calls returns how many times method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Ping implements remote.Pinger.
func (m *Memory) Ping(context.Context) error { return nil }

// Call implements remote.Actor.
func (m *Memory) Call(ctx context.Context, method string, args []any, reply any) error {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return errors.Wrapf(err, "encode %s arguments", method)
	}
	var params []json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return errors.Wrapf(err, "decode %s arguments", method)
	}

	m.mu.Lock()
	m.calls[method]++
	if ferr, ok := m.fail[method]; ok {
		delete(m.fail, method)
		m.mu.Unlock()
		return &remote.CallError{Method: method, Status: http.StatusInternalServerError, Message: ferr.Error()}
	}
	result, err := m.dispatch(method, params)
	if err != nil {
		m.mu.Unlock()
		return &remote.CallError{Method: method, Status: http.StatusBadRequest, Message: err.Error()}
	}
	out, err := json.Marshal(result)
	m.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "encode %s result", method)
	}

	if reply == nil {
		return nil
	}
	return json.Unmarshal(out, reply)
}

// Seed adds characters and conversations, for demos and tests.
func (m *Memory) Seed(characters []Character, conversations []Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters = append(m.characters, characters...)
	m.conversations = append(m.conversations, conversations...)
}

func (m *Memory) nextID(prefix string) string {
	m.seq++
	return prefix + strconv.Itoa(m.seq)
}

func (m *Memory) stamp() int64 {
	return m.now().UnixNano()
}

// dispatch runs with m.mu held.
func (m *Memory) dispatch(method string, p []json.RawMessage) (any, error) {
	switch method {
	case "getCallerUserProfile":
		profile, ok := m.profiles[m.caller]
		if !ok {
			return nil, nil
		}
		return profile, nil
	case "saveCallerUserProfile":
		var profile UserProfile
		if err := decodeArgs(p, &profile); err != nil {
			return nil, err
		}
		m.profiles[m.caller] = profile
		return nil, nil

	case "getCharacterProfiles":
		return m.characters, nil
	case "createCharacter":
		var name, bio string
		if err := decodeArgs(p, &name, &bio); err != nil {
			return nil, err
		}
		ch := Character{ID: m.nextID("ch"), Name: name, Bio: bio, Owner: m.caller, Followers: []string{}}
		m.characters = append(m.characters, ch)
		return ch.ID, nil
	case "updateCharacter":
		var id, name, bio string
		if err := decodeArgs(p, &id, &name, &bio); err != nil {
			return nil, err
		}
		i := indexOf(m.characters, id, characterIDOf)
		if i < 0 {
			return nil, errors.Errorf("character %s not found", id)
		}
		m.characters[i].Name, m.characters[i].Bio = name, bio
		return nil, nil
	case "uploadAvatar":
		var id, image string
		if err := decodeArgs(p, &id, &image); err != nil {
			return nil, err
		}
		i := indexOf(m.characters, id, characterIDOf)
		if i < 0 {
			return nil, errors.Errorf("character %s not found", id)
		}
		m.characters[i].Avatar = image
		return nil, nil
	case "deleteCharacter":
		var id string
		if err := decodeArgs(p, &id); err != nil {
			return nil, err
		}
		m.characters = removeByID(m.characters, id, characterIDOf)
		return nil, nil

	case "getPosts":
		return m.posts, nil
	case "createPost":
		var author, content string
		var image *string
		if err := decodeArgs(p, &author, &content, &image); err != nil {
			return nil, err
		}
		post := Post{ID: m.nextID("p"), Author: author, Content: content, Likes: []string{}, Timestamp: m.stamp(), ProfileOwner: m.caller}
		if image != nil {
			post.Image = *image
		}
		m.posts = append(m.posts, post)
		return post.ID, nil
	case "likePost":
		var id string
		if err := decodeArgs(p, &id); err != nil {
			return nil, err
		}
		i := indexOf(m.posts, id, postIDOf)
		if i < 0 {
			return nil, errors.Errorf("post %s not found", id)
		}
		m.posts[i].Likes = toggle(m.posts[i].Likes, m.caller)
		return nil, nil
	case "deletePost":
		var id string
		if err := decodeArgs(p, &id); err != nil {
			return nil, err
		}
		m.posts = removeByID(m.posts, id, postIDOf)
		return nil, nil

	case "getComments":
		var postID string
		if err := decodeArgs(p, &postID); err != nil {
			return nil, err
		}
		out := []Comment{}
		for _, c := range m.comments {
			if c.PostID == postID {
				out = append(out, c)
			}
		}
		return out, nil
	case "createComment":
		var postID, author, content string
		if err := decodeArgs(p, &postID, &author, &content); err != nil {
			return nil, err
		}
		c := Comment{ID: m.nextID("cm"), PostID: postID, Author: author, Content: content, Timestamp: m.stamp(), ProfileOwner: m.caller}
		m.comments = append(m.comments, c)
		return c.ID, nil

	case "getStories":
		return m.stories, nil
	case "createStory":
		var author, image, caption string
		if err := decodeArgs(p, &author, &image, &caption); err != nil {
			return nil, err
		}
		s := Story{ID: m.nextID("s"), Author: author, Image: image, Caption: caption, Timestamp: m.stamp(), ProfileOwner: m.caller}
		m.stories = append(m.stories, s)
		return s.ID, nil
	case "deleteStory":
		var id string
		if err := decodeArgs(p, &id); err != nil {
			return nil, err
		}
		m.stories = removeByID(m.stories, id, storyIDOf)
		return nil, nil

	case "getVideos":
		return m.videos, nil
	case "createVideo":
		var author, video, caption string
		if err := decodeArgs(p, &author, &video, &caption); err != nil {
			return nil, err
		}
		v := Video{ID: m.nextID("v"), Author: author, Video: video, Caption: caption, Timestamp: m.stamp(), ProfileOwner: m.caller}
		m.videos = append(m.videos, v)
		return v.ID, nil
	case "deleteVideo":
		var id string
		if err := decodeArgs(p, &id); err != nil {
			return nil, err
		}
		m.videos = removeByID(m.videos, id, videoIDOf)
		return nil, nil

	case "getConversations":
		return m.conversations, nil
	case "getConversation":
		var id string
		if err := decodeArgs(p, &id); err != nil {
			return nil, err
		}
		i := indexOf(m.conversations, id, conversationIDOf)
		if i < 0 {
			return nil, nil
		}
		return m.conversations[i], nil
	case "createConversation":
		var participants []string
		if err := decodeArgs(p, &participants); err != nil {
			return nil, err
		}
		if len(participants) == 0 {
			return nil, errors.New("conversation needs participants")
		}
		conv := Conversation{ID: m.nextID("c"), Participants: participants, Messages: []Message{}, ProfileOwner: m.caller}
		m.conversations = append(m.conversations, conv)
		return conv.ID, nil
	case "sendMessage":
		var convID, sender, content string
		if err := decodeArgs(p, &convID, &sender, &content); err != nil {
			return nil, err
		}
		i := indexOf(m.conversations, convID, conversationIDOf)
		if i < 0 {
			return nil, errors.Errorf("conversation %s not found", convID)
		}
		msg := Message{ID: m.nextID("m"), ConversationID: convID, Sender: sender, Content: content, Timestamp: m.stamp(), ProfileOwner: m.caller}
		m.conversations[i].Messages = append(m.conversations[i].Messages, msg)
		return msg.ID, nil
	}
	return nil, errors.Errorf("unknown method %q", method)
}

func decodeArgs(params []json.RawMessage, dest ...any) error {
	if len(params) < len(dest) {
		return errors.Errorf("expected %d arguments, got %d", len(dest), len(params))
	}
	for i, d := range dest {
		if err := json.Unmarshal(params[i], d); err != nil {
			return errors.Wrapf(err, "argument %d", i)
		}
	}
	return nil
}

func indexOf[T any](list []T, id string, idOf func(T) string) int {
	for i, item := range list {
		if idOf(item) == id {
			return i
		}
	}
	return -1
}

func conversationIDOf(c Conversation) string { return c.ID }
