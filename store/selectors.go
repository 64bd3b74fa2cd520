package store

import (
	"slices"
	"strings"

	"github.com/putto11262002/chatter-client/core"
)

// SortedConversations returns the conversations ordered by recency, most recent first.
func SortedConversations(s State) []core.Conversation {
	conversations := make([]core.Conversation, 0, len(s.Conversations))
	for _, c := range s.Conversations {
		conversations = append(conversations, c)
	}
	slices.SortFunc(conversations, func(a, b core.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return conversations
}

// FilteredConversations returns SortedConversations restricted to the
// conversations whose name contains the search query, ignoring case.
func FilteredConversations(s State) []core.Conversation {
	query := strings.ToLower(strings.TrimSpace(s.SearchQuery))
	sorted := SortedConversations(s)
	if query == "" {
		return sorted
	}
	return slices.DeleteFunc(sorted, func(c core.Conversation) bool {
		return !strings.Contains(strings.ToLower(ConversationName(s, c)), query)
	})
}

// ConversationName returns the display name of a conversation.
// A direct conversation is named after the other participant.
func ConversationName(s State, c core.Conversation) string {
	if c.Type == core.GroupConversation || c.Name != "" {
		return c.Name
	}
	names := make([]string, 0, len(c.Participants))
	for _, id := range c.Peers(s.currentUserID()) {
		if u, ok := s.Users[id]; ok {
			names = append(names, u.Name)
		}
	}
	return strings.Join(names, ", ")
}

// MessagesFor returns the messages of a conversation ordered by timestamp, oldest first.
func MessagesFor(s State, conversationID string) []core.Message {
	var messages []core.Message
	for _, m := range s.Messages {
		if m.ConversationID == conversationID {
			messages = append(messages, m)
		}
	}
	slices.SortFunc(messages, compareMessages)
	return messages
}

func compareMessages(a, b core.Message) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// TypingUsers returns the users typing in a conversation ordered by ID.
// IDs without a matching user are dropped.
func TypingUsers(s State, conversationID string) []core.User {
	ids := make([]string, 0, len(s.Typing[conversationID]))
	for id := range s.Typing[conversationID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	users := make([]core.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.Users[id]; ok {
			users = append(users, u)
		}
	}
	return users
}

// UserByID returns the user with the given ID.
// If the user is not found, the second return value is false.
func UserByID(s State, id string) (core.User, bool) {
	u, ok := s.Users[id]
	return u, ok
}

// ActiveConversation returns the active conversation, if any.
func ActiveConversation(s State) (core.Conversation, bool) {
	if s.ActiveConversationID == "" {
		return core.Conversation{}, false
	}
	c, ok := s.Conversations[s.ActiveConversationID]
	return c, ok
}

// PaginationFor returns the pagination cursor of a conversation.
// A conversation that was never loaded has a zero cursor.
func PaginationFor(s State, conversationID string) Cursor {
	return s.Pagination[conversationID]
}

// OnlineUsers returns the online users ordered by name.
func OnlineUsers(s State) []core.User {
	users := make([]core.User, 0, len(s.Online))
	for id := range s.Online {
		if u, ok := s.Users[id]; ok {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b core.User) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return users
}

// LatestMessage returns the most recent message of a conversation among the
// loaded ones.
func LatestMessage(s State, conversationID string) (core.Message, bool) {
	messages := MessagesFor(s, conversationID)
	if len(messages) == 0 {
		return core.Message{}, false
	}
	return messages[len(messages)-1], true
}
