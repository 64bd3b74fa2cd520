package core

import "errors"

var (
	// ErrInvalidUser is returned when a user is not found.
	ErrInvalidUser = errors.New("invalid user")
	// ErrInvalidConversation is returned when a conversation is not found.
	ErrInvalidConversation = errors.New("invalid conversation")
	// ErrInvalidMessage is returned when a message input does not pass validation.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidCursor is returned when a pagination cursor does not refer to
	// a message of the conversation.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrNetwork represents a transient failure of the data access layer.
	ErrNetwork = errors.New("network error")
	// ErrUnknownEvent is returned when decoding an event outside the catalogue.
	ErrUnknownEvent = errors.New("unknown event")
)
