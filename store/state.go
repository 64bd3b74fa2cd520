package store

import (
	"github.com/putto11262002/chatter-client/core"
)

// Cursor is the backward pagination state of a conversation.
type Cursor struct {
	HasMore bool `json:"has_more"`
	// OldestMessageID is the oldest loaded message, empty before the first page.
	OldestMessageID string `json:"oldest_message_id"`
	IsLoading       bool   `json:"is_loading"`
	// Loaded is true once the latest page has been merged.
	Loaded bool `json:"loaded"`
}

// CanLoadOlder reports whether a load-older request may be issued.
func (c Cursor) CanLoadOlder() bool {
	return c.Loaded && c.HasMore && !c.IsLoading
}

// Set is a set of IDs.
type Set map[string]struct{}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// State is the normalized state tree of a chat session.
//
// A State value is immutable once it has been returned by Reduce: the maps it
// holds are shared between successive states and must never be written to.
type State struct {
	CurrentUser *core.User `json:"current_user"`
	// Users, Conversations and Messages are keyed by entity ID.
	Users                map[string]core.User         `json:"users"`
	Conversations        map[string]core.Conversation `json:"conversations"`
	ConversationsHasMore bool                         `json:"conversations_has_more"`
	Messages             map[string]core.Message      `json:"messages"`
	ActiveConversationID string                       `json:"active_conversation_id"`
	// Pagination is keyed by conversation ID.
	Pagination map[string]Cursor `json:"pagination"`
	// Typing maps a conversation ID to the users typing in it.
	Typing map[string]Set `json:"typing"`
	// Online holds the IDs of users whose status is online.
	Online      Set                   `json:"online"`
	Connection  core.ConnectionStatus `json:"connection"`
	SearchQuery string                `json:"search_query"`
	Loading     bool                  `json:"loading"`
}

// NewState returns the state of a session before initialization.
func NewState() State {
	return State{
		Users:         map[string]core.User{},
		Conversations: map[string]core.Conversation{},
		Messages:      map[string]core.Message{},
		Pagination:    map[string]Cursor{},
		Typing:        map[string]Set{},
		Online:        Set{},
		Connection:    core.Disconnected,
	}
}

func (s State) currentUserID() string {
	if s.CurrentUser == nil {
		return ""
	}
	return s.CurrentUser.ID
}

// with returns a copy of m with k set to v.
func with[K comparable, V any](m map[K]V, k K, v V) map[K]V {
	c := make(map[K]V, len(m)+1)
	for key, val := range m {
		c[key] = val
	}
	c[k] = v
	return c
}

// without returns a copy of m without the given keys.
func without[K comparable, V any](m map[K]V, keys ...K) map[K]V {
	c := make(map[K]V, len(m))
	for key, val := range m {
		c[key] = val
	}
	for _, k := range keys {
		delete(c, k)
	}
	return c
}
