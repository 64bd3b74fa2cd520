package store

import (
	"time"

	"github.com/putto11262002/chatter-client/core"
)

type ActionType string

const (
	SetCurrentUserType          ActionType = "SET_CURRENT_USER"
	SetUsersType                ActionType = "SET_USERS"
	SetConversationsType        ActionType = "SET_CONVERSATIONS"
	SetActiveConversationType   ActionType = "SET_ACTIVE_CONVERSATION"
	SetMessagesType             ActionType = "SET_MESSAGES"
	AppendOlderMessagesType     ActionType = "APPEND_OLDER_MESSAGES"
	MessageAddedType            ActionType = "MESSAGE_ADDED"
	MessageConfirmedType        ActionType = "MESSAGE_CONFIRMED"
	MessageFailedType           ActionType = "MESSAGE_FAILED"
	MessageRetriedType          ActionType = "MESSAGE_RETRIED"
	MessageStatusUpdatedType    ActionType = "MESSAGE_STATUS_UPDATED"
	TypingStartedType           ActionType = "TYPING_STARTED"
	TypingStoppedType           ActionType = "TYPING_STOPPED"
	UserStatusChangedType       ActionType = "USER_STATUS_CHANGED"
	ConnectionStatusChangedType ActionType = "CONNECTION_STATUS_CHANGED"
	SetSearchQueryType          ActionType = "SET_SEARCH_QUERY"
	SetLoadingType              ActionType = "SET_LOADING"
	ConversationUpdatedType     ActionType = "CONVERSATION_UPDATED"
)

// Action is a state transition request handled by Reduce.
// The set of actions is closed to this package.
type Action interface {
	Type() ActionType
	action()
}

type SetCurrentUser struct {
	User core.User
}

// SetUsers replaces the user directory.
type SetUsers struct {
	Users []core.User
}

// SetConversations replaces the conversation list.
type SetConversations struct {
	Conversations []core.Conversation
	HasMore       bool
}

// SetActiveConversation changes the active conversation.
// An empty ID clears it.
type SetActiveConversation struct {
	ID string
}

// SetMessages merges the latest page of a conversation.
type SetMessages struct {
	ConversationID string
	Page           core.MessagePage
}

// AppendOlderMessages merges a page that precedes the oldest loaded message.
type AppendOlderMessages struct {
	ConversationID string
	Page           core.MessagePage
}

// MessageAdded inserts a message, either an optimistic local one or one
// pushed by the transport.
type MessageAdded struct {
	Message core.Message
}

// MessageConfirmed replaces the optimistic message TempID with the server
// confirmed Message.
type MessageConfirmed struct {
	TempID  string
	Message core.Message
}

type MessageFailed struct {
	TempID string
	Reason string
}

// MessageRetried moves a failed message back to the sending state.
type MessageRetried struct {
	TempID string
}

type MessageStatusUpdated struct {
	MessageID string
	Status    core.MessageStatus
}

type TypingStarted struct {
	ConversationID string
	UserID         string
}

type TypingStopped struct {
	ConversationID string
	UserID         string
}

type UserStatusChanged struct {
	UserID string
	Status core.UserStatus
	// At is recorded as the user's last seen time.
	At time.Time
}

type ConnectionStatusChanged struct {
	Status core.ConnectionStatus
}

type SetSearchQuery struct {
	Query string
}

// SetLoading toggles a loading flag. An empty ConversationID targets the
// global flag, otherwise the pagination cursor of that conversation.
type SetLoading struct {
	ConversationID string
	Loading        bool
}

// ConversationUpdated associates a message with its conversation and
// optionally marks the conversation as read.
type ConversationUpdated struct {
	ConversationID string
	LastMessage    *core.Message
	MarkRead       bool
}

func (SetCurrentUser) Type() ActionType          { return SetCurrentUserType }
func (SetUsers) Type() ActionType                { return SetUsersType }
func (SetConversations) Type() ActionType        { return SetConversationsType }
func (SetActiveConversation) Type() ActionType   { return SetActiveConversationType }
func (SetMessages) Type() ActionType             { return SetMessagesType }
func (AppendOlderMessages) Type() ActionType     { return AppendOlderMessagesType }
func (MessageAdded) Type() ActionType            { return MessageAddedType }
func (MessageConfirmed) Type() ActionType        { return MessageConfirmedType }
func (MessageFailed) Type() ActionType           { return MessageFailedType }
func (MessageRetried) Type() ActionType          { return MessageRetriedType }
func (MessageStatusUpdated) Type() ActionType    { return MessageStatusUpdatedType }
func (TypingStarted) Type() ActionType           { return TypingStartedType }
func (TypingStopped) Type() ActionType           { return TypingStoppedType }
func (UserStatusChanged) Type() ActionType       { return UserStatusChangedType }
func (ConnectionStatusChanged) Type() ActionType { return ConnectionStatusChangedType }
func (SetSearchQuery) Type() ActionType          { return SetSearchQueryType }
func (SetLoading) Type() ActionType              { return SetLoadingType }
func (ConversationUpdated) Type() ActionType     { return ConversationUpdatedType }

func (SetCurrentUser) action()          {}
func (SetUsers) action()                {}
func (SetConversations) action()        {}
func (SetActiveConversation) action()   {}
func (SetMessages) action()             {}
func (AppendOlderMessages) action()     {}
func (MessageAdded) action()            {}
func (MessageConfirmed) action()        {}
func (MessageFailed) action()           {}
func (MessageRetried) action()          {}
func (MessageStatusUpdated) action()    {}
func (TypingStarted) action()           {}
func (TypingStopped) action()           {}
func (UserStatusChanged) action()       {}
func (ConnectionStatusChanged) action() {}
func (SetSearchQuery) action()          {}
func (SetLoading) action()              {}
func (ConversationUpdated) action()     {}
