package social

import (
	"time"

	"github.com/five82/feedsync/internal/query"
)

// Resource families.
const (
	FamilyProfile       = "currentUserProfile"
	FamilyCharacters    = "characters"
	FamilyPosts         = "posts"
	FamilyComments      = "comments"
	FamilyStories       = "stories"
	FamilyVideos        = "videos"
	FamilyConversations = "conversations"
	FamilyConversation  = "conversation"
)

// ProfileKey identifies the caller's profile.
func ProfileKey() query.Key { return query.NewKey(FamilyProfile) }

// CharactersKey identifies the character list.
func CharactersKey() query.Key { return query.NewKey(FamilyCharacters) }

// PostsKey identifies the feed.
func PostsKey() query.Key { return query.NewKey(FamilyPosts) }

// CommentsKey identifies the comments of one post. An empty id yields the
// empty key, which disables the resource.
func CommentsKey(postID string) query.Key {
	if postID == "" {
		return nil
	}
	return query.NewKey(FamilyComments, postID)
}

// StoriesKey identifies the story row.
func StoriesKey() query.Key { return query.NewKey(FamilyStories) }

// VideosKey identifies the video list.
func VideosKey() query.Key { return query.NewKey(FamilyVideos) }

// ConversationsKey identifies the conversation list.
func ConversationsKey() query.Key { return query.NewKey(FamilyConversations) }

// ConversationKey identifies one thread. An empty id yields the empty key.
func ConversationKey(id string) query.Key {
	if id == "" {
		return nil
	}
	return query.NewKey(FamilyConversation, id)
}

// DefaultPolicies returns the freshness policy of every family. Threads poll
// quickly to stand in for a push channel; the story row refreshes slowly.
func DefaultPolicies() query.Policies {
	return query.Policies{
		Default: query.NeverStale(),
		Families: map[string]query.Policy{
			FamilyProfile:       query.NeverStale(),
			FamilyCharacters:    query.AlwaysStale(),
			FamilyPosts:         query.NeverStale(),
			FamilyComments:      query.NeverStale(),
			FamilyStories:       query.Poll(60 * time.Second),
			FamilyVideos:        query.NeverStale(),
			FamilyConversations: query.AlwaysStale(),
			FamilyConversation:  query.Poll(3 * time.Second),
		},
	}
}

// Families lists every resource family.
func Families() []string {
	return []string{
		FamilyProfile,
		FamilyCharacters,
		FamilyPosts,
		FamilyComments,
		FamilyStories,
		FamilyVideos,
		FamilyConversations,
		FamilyConversation,
	}
}
