package store

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/putto11262002/chatter-client/core"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var (
	me    = core.User{ID: "me", Name: "Me", Status: core.UserOnline}
	alice = core.User{ID: "alice", Name: "Alice", Status: core.UserOnline}
	bob   = core.User{ID: "bob", Name: "Bob", Status: core.UserAway}
)

// message returns the n-th message of a conversation, n minutes after t0.
func message(conversationID string, n int, sender string) core.Message {
	return core.Message{
		ID:             fmt.Sprintf("%s-%02d", conversationID, n),
		ConversationID: conversationID,
		SenderID:       sender,
		Content:        fmt.Sprintf("message %d", n),
		Timestamp:      t0.Add(time.Duration(n) * time.Minute),
		Status:         core.MessageSent,
	}
}

func page(conversationID string, from, to int, hasMore bool) core.MessagePage {
	p := core.MessagePage{HasMore: hasMore}
	for n := from; n <= to; n++ {
		p.Messages = append(p.Messages, message(conversationID, n, "alice"))
	}
	if len(p.Messages) > 0 {
		p.OldestID = p.Messages[0].ID
	}
	return p
}

func conversations() []core.Conversation {
	last1 := message("c1", 10, "alice")
	last2 := message("c2", 5, "bob")
	return []core.Conversation{
		{ID: "c1", Type: core.DirectConversation, Participants: []string{"me", "alice"}, LastMessage: &last1, UnreadCount: 1, UpdatedAt: last1.Timestamp},
		{ID: "c2", Type: core.GroupConversation, Name: "Team", Participants: []string{"me", "alice", "bob"}, LastMessage: &last2, UpdatedAt: last2.Timestamp},
		{ID: "c3", Type: core.DirectConversation, Participants: []string{"me", "bob"}, UpdatedAt: t0},
	}
}

// seeded returns a state with users, conversations and the latest page of c1.
func seeded() State {
	s := NewState()
	for _, a := range []Action{
		SetCurrentUser{User: me},
		SetUsers{Users: []core.User{me, alice, bob}},
		SetConversations{Conversations: conversations()},
		SetMessages{ConversationID: "c1", Page: page("c1", 6, 10, true)},
	} {
		s = Reduce(s, a)
	}
	return s
}

func snapshot(t *testing.T, s State) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

// requireNormalized checks that every reference in s resolves.
func requireNormalized(t *testing.T, s State) {
	t.Helper()
	for id, m := range s.Messages {
		require.Equal(t, id, m.ID)
		_, ok := s.Conversations[m.ConversationID]
		require.True(t, ok, "message %s refers to unknown conversation %s", id, m.ConversationID)
	}
	for id := range s.Pagination {
		_, ok := s.Conversations[id]
		require.True(t, ok, "cursor of unknown conversation %s", id)
	}
	for id, u := range s.Users {
		require.Equal(t, u.Status == core.UserOnline, s.Online.Has(id), "online set out of sync for %s", id)
	}
	for id := range s.Online {
		_, ok := s.Users[id]
		require.True(t, ok, "online user %s is not in the directory", id)
	}
	if s.ActiveConversationID != "" {
		_, ok := s.Conversations[s.ActiveConversationID]
		require.True(t, ok)
	}
}

// requireInitialized is requireNormalized for a started session, in which
// every participant is also in the user directory.
func requireInitialized(t *testing.T, s State) {
	t.Helper()
	requireNormalized(t, s)
	for id, c := range s.Conversations {
		for _, p := range c.Participants {
			_, ok := s.Users[p]
			require.True(t, ok, "conversation %s has unknown participant %s", id, p)
		}
	}
}
