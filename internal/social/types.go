package social

import (
	"strings"
	"time"
)

// PendingPrefix marks ids assigned locally to optimistic items.
const PendingPrefix = "pending-"

// UserProfile is the caller's own profile. A zero profile means the caller
// has not set one up yet.
type UserProfile struct {
	Name   string `json:"name"`
	Bio    string `json:"bio"`
	Avatar string `json:"avatar,omitempty"`
}

// IsZero reports whether the profile is missing.
func (p UserProfile) IsZero() bool {
	return strings.TrimSpace(p.Name) == "" && p.Bio == "" && p.Avatar == ""
}

// Character is a persona owned by a user; posts, stories and messages are
// authored as a character.
type Character struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Bio       string   `json:"bio"`
	Owner     string   `json:"owner"`
	Followers []string `json:"followers"`
	Avatar    string   `json:"avatar,omitempty"`
}

// Post is an entry in the home feed.
type Post struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Author       string   `json:"author"`
	Likes        []string `json:"likes"`
	Timestamp    int64    `json:"timestamp"`
	Image        string   `json:"image,omitempty"`
	ProfileOwner string   `json:"profileOwner"`
}

// Time returns the post creation time.
func (p Post) Time() time.Time { return fromNanos(p.Timestamp) }

// LikedBy reports whether id has liked the post.
func (p Post) LikedBy(id string) bool {
	for _, l := range p.Likes {
		if l == id {
			return true
		}
	}
	return false
}

// Comment is a reply to a post.
type Comment struct {
	ID           string `json:"id"`
	PostID       string `json:"postId"`
	Content      string `json:"content"`
	Author       string `json:"author"`
	Timestamp    int64  `json:"timestamp"`
	ProfileOwner string `json:"profileOwner"`
	Pending      bool   `json:"-"`
}

// Story is a short-lived image post shown above the feed.
type Story struct {
	ID           string `json:"id"`
	Author       string `json:"author"`
	Caption      string `json:"caption"`
	Image        string `json:"image,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	ProfileOwner string `json:"profileOwner"`
}

// Video is an uploaded clip.
type Video struct {
	ID           string `json:"id"`
	Author       string `json:"author"`
	Caption      string `json:"caption"`
	Video        string `json:"video,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	ProfileOwner string `json:"profileOwner"`
}

// Message is one entry of a conversation thread.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Sender         string `json:"sender"`
	Timestamp      int64  `json:"timestamp"`
	ProfileOwner   string `json:"profileOwner"`
	// Pending is set on messages appended locally that the backend has not
	// confirmed yet.
	Pending bool `json:"-"`
}

// Time returns the time the message was sent.
func (m Message) Time() time.Time { return fromNanos(m.Timestamp) }

// Conversation is a message thread between characters.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	ProfileOwner string    `json:"profileOwner"`
}

// LastMessage returns the newest message, if any.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Title joins the participant names for list display.
func (c Conversation) Title() string {
	if len(c.Participants) == 0 {
		return c.ID
	}
	return strings.Join(c.Participants, ", ")
}

func fromNanos(ns int64) time.Time {
	if ns <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
