package app

import (
	"time"

	"github.com/five82/feedsync/internal/social"
)

const demoIdentity = "demo-user"

// seedDemo fills the in-process backend with a couple of characters and
// conversations so the UI has something to show.
func seedDemo(m *social.Memory, identity string) {
	base := time.Date(2026, time.January, 2, 9, 0, 0, 0, time.UTC)
	at := func(minutes int) int64 {
		return base.Add(time.Duration(minutes) * time.Minute).UnixNano()
	}

	characters := []social.Character{
		{ID: "demo-ada", Name: "Ada", Bio: "Writes compilers for fun.", Owner: identity, Followers: []string{}},
		{ID: "demo-bo", Name: "Bo", Bio: "Collects vintage keyboards.", Owner: "someone-else", Followers: []string{identity}},
	}
	conversations := []social.Conversation{
		{
			ID:           "demo-welcome",
			Participants: []string{identity, "demo-bo"},
			ProfileOwner: identity,
			Messages: []social.Message{
				{ID: "demo-m1", ConversationID: "demo-welcome", Sender: "demo-bo", Content: "Welcome to feedsync!", Timestamp: at(0)},
				{ID: "demo-m2", ConversationID: "demo-welcome", Sender: "demo-bo", Content: "Messages you send show up right away and settle once the backend confirms them.", Timestamp: at(1)},
			},
		},
		{
			ID:           "demo-ada",
			Participants: []string{identity, "demo-ada"},
			ProfileOwner: identity,
			Messages:     []social.Message{},
		},
	}
	m.Seed(characters, conversations)
}
