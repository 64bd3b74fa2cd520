package mockapi

import (
	"fmt"
	"time"

	"github.com/putto11262002/chatter-client/core"
)

// Seed is the initial content of a Backend.
type Seed struct {
	CurrentUserID string
	Users         []core.User
	Conversations []core.Conversation
	// Messages are grouped by conversation when the backend is created.
	Messages []core.Message
}

type seedConversation struct {
	id           string
	kind         core.ConversationType
	name         string
	participants []string
	messages     int
	unread       int
}

var phrases = []string{
	"Hey, how is it going?",
	"Did you get a chance to look at the draft?",
	"Sounds good to me.",
	"Can we move the call to tomorrow?",
	"I pushed the changes, take a look when you can.",
	"Haha, that's great",
	"Let me check and get back to you.",
	"Lunch at noon?",
	"The build is green again.",
	"Thanks!",
	"On my way.",
	"I'll send the notes after the meeting.",
}

// DefaultSeed returns a fixed data set whose latest message is at now.
func DefaultSeed(now time.Time) Seed {
	users := []core.User{
		{ID: "user-me", Name: "You", Status: core.UserOnline},
		{ID: "user-alice", Name: "Alice Johnson", Status: core.UserOnline},
		{ID: "user-bob", Name: "Bob Smith", Status: core.UserAway},
		{ID: "user-carol", Name: "Carol White", Status: core.UserOffline},
		{ID: "user-dave", Name: "Dave Brown", Status: core.UserOnline},
		{ID: "user-eve", Name: "Eve Davis", Status: core.UserOffline},
	}
	for i := range users {
		users[i].Avatar = fmt.Sprintf("https://i.pravatar.cc/150?u=%s", users[i].ID)
		users[i].LastSeen = now.Add(-time.Duration(i*17) * time.Minute)
	}

	convs := []seedConversation{
		{id: "conv-1", kind: core.DirectConversation, participants: []string{"user-me", "user-alice"}, messages: 45, unread: 2},
		{id: "conv-2", kind: core.GroupConversation, name: "Design Team", participants: []string{"user-me", "user-bob", "user-carol", "user-dave"}, messages: 30, unread: 5},
		{id: "conv-3", kind: core.DirectConversation, participants: []string{"user-me", "user-bob"}, messages: 8},
		{id: "conv-4", kind: core.DirectConversation, participants: []string{"user-me", "user-carol"}, messages: 3, unread: 1},
		{id: "conv-5", kind: core.GroupConversation, name: "Weekend Plans", participants: []string{"user-me", "user-alice", "user-eve"}, messages: 12},
	}

	seed := Seed{CurrentUserID: "user-me", Users: users}
	for i, sc := range convs {
		// conversations are staggered so that conv-1 is the most recent
		last := now.Add(-time.Duration(i) * 3 * time.Hour)
		conv := core.Conversation{
			ID:           sc.id,
			Type:         sc.kind,
			Name:         sc.name,
			Participants: sc.participants,
			UnreadCount:  sc.unread,
			UpdatedAt:    last,
		}
		for n := 0; n < sc.messages; n++ {
			sender := sc.participants[n%len(sc.participants)]
			remaining := sc.messages - n
			if remaining <= sc.unread {
				// unread messages are always from a peer
				sender = sc.participants[1+n%(len(sc.participants)-1)]
			}
			status := core.MessageRead
			if remaining <= sc.unread {
				status = core.MessageDelivered
			}
			m := core.Message{
				ID:             fmt.Sprintf("%s-msg-%03d", sc.id, n+1),
				ConversationID: sc.id,
				SenderID:       sender,
				Content:        phrases[(n+i)%len(phrases)],
				Timestamp:      last.Add(-time.Duration(remaining-1) * 7 * time.Minute),
				Status:         status,
			}
			seed.Messages = append(seed.Messages, m)
			if remaining == 1 {
				lastMessage := m
				conv.LastMessage = &lastMessage
			}
		}
		seed.Conversations = append(seed.Conversations, conv)
	}
	return seed
}
