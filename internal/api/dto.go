package api

import (
	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/store"
)

type SelectConversationRequest struct {
	// ID is the conversation to make active, empty clears the selection.
	ID string `json:"id"`
}

type TypingRequest struct {
	Typing *bool `json:"typing" validate:"required"`
}

// SendMessageRequest is bounded by core.MaxContentSize when the message is
// created.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type SearchRequest struct {
	Query string `json:"query" validate:"max=256"`
}

type ConversationResponse struct {
	core.Conversation
	DisplayName string   `json:"display_name"`
	Typing      []string `json:"typing"`
}

func NewConversationResponse(s store.State, c core.Conversation) ConversationResponse {
	typing := make([]string, 0)
	for _, u := range store.TypingUsers(s, c.ID) {
		typing = append(typing, u.ID)
	}
	return ConversationResponse{
		Conversation: c,
		DisplayName:  store.ConversationName(s, c),
		Typing:       typing,
	}
}

type ConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	HasMore       bool                   `json:"has_more"`
	SearchQuery   string                 `json:"search_query"`
}

func NewConversationsResponse(s store.State) ConversationsResponse {
	conversations := store.FilteredConversations(s)
	res := ConversationsResponse{
		Conversations: make([]ConversationResponse, 0, len(conversations)),
		HasMore:       s.ConversationsHasMore,
		SearchQuery:   s.SearchQuery,
	}
	for _, c := range conversations {
		res.Conversations = append(res.Conversations, NewConversationResponse(s, c))
	}
	return res
}

type MessagesResponse struct {
	ConversationID string         `json:"conversation_id"`
	Messages       []core.Message `json:"messages"`
	Pagination     store.Cursor   `json:"pagination"`
}

func NewMessagesResponse(s store.State, conversationID string) MessagesResponse {
	return MessagesResponse{
		ConversationID: conversationID,
		Messages:       store.MessagesFor(s, conversationID),
		Pagination:     store.PaginationFor(s, conversationID),
	}
}

// StateSummary is a condensed view of the session state.
type StateSummary struct {
	CurrentUser          *core.User            `json:"current_user"`
	Connection           core.ConnectionStatus `json:"connection"`
	ActiveConversationID string                `json:"active_conversation_id"`
	SearchQuery          string                `json:"search_query"`
	Loading              bool                  `json:"loading"`
	Users                int                   `json:"users"`
	Conversations        int                   `json:"conversations"`
	Messages             int                   `json:"messages"`
	Online               []string              `json:"online"`
	// Action is the action that produced the state, it is empty for snapshots.
	Action store.ActionType `json:"action,omitempty"`
}

func NewStateSummary(s store.State) StateSummary {
	online := make([]string, 0, len(s.Online))
	for _, u := range store.OnlineUsers(s) {
		online = append(online, u.ID)
	}
	return StateSummary{
		CurrentUser:          s.CurrentUser,
		Connection:           s.Connection,
		ActiveConversationID: s.ActiveConversationID,
		SearchQuery:          s.SearchQuery,
		Loading:              s.Loading,
		Users:                len(s.Users),
		Conversations:        len(s.Conversations),
		Messages:             len(s.Messages),
		Online:               online,
	}
}
