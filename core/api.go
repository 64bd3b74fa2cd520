package core

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// DefaultPageSize is the number of messages returned by GetMessages when the
// query does not specify a limit.
const DefaultPageSize = 20

// MaxContentSize is the largest message content accepted, in characters.
const MaxContentSize = 4096

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("content", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= MaxContentSize
	})
	return v
}

// ChatAPI is the request/response data access contract of the chat client.
// Every method may fail with a transient error; callers must treat a failure
// as recoverable.
type ChatAPI interface {
	// GetCurrentUser returns the user the session belongs to.
	GetCurrentUser(ctx context.Context) (User, error)

	// GetUsers returns the user directory.
	GetUsers(ctx context.Context) ([]User, error)

	// GetConversations returns the conversations of the current user ordered by
	// UpdatedAt in descending order.
	GetConversations(ctx context.Context) (ConversationPage, error)

	// GetMessages returns a page of messages of the conversation that are strictly
	// older than query.Before, ordered oldest first.
	// If query.Before is empty, the page ends at the latest message.
	// If query.Limit is a zero value, the limit is set to DefaultPageSize.
	// If the conversation is not found, it returns ErrInvalidConversation.
	// If query.Before does not refer to a message of the conversation, it returns ErrInvalidCursor.
	GetMessages(ctx context.Context, conversationID string, query MessageQuery) (MessagePage, error)

	// SendMessage persists a message and returns it with a server assigned ID.
	// The returned ID is never equal to tempID.
	// If the input is invalid, it returns ErrInvalidMessage.
	// If the conversation is not found, it returns ErrInvalidConversation.
	SendMessage(ctx context.Context, conversationID, content, tempID string) (Message, error)

	// MarkAsRead resets the unread count of the conversation and marks every message
	// up to and including lastReadMessageID as read.
	MarkAsRead(ctx context.Context, conversationID, lastReadMessageID string) error
}

// MessageQuery bounds a page of messages.
type MessageQuery struct {
	// Before is an exclusive upper bound message ID.
	Before string
	Limit  int
}

// MessagePage is a page of a conversation history.
type MessagePage struct {
	Messages []Message `json:"messages"`
	// HasMore is true if older messages remain beyond the page.
	HasMore bool `json:"has_more"`
	// OldestID is the ID of the first message of the page, it is empty for an empty page.
	OldestID string `json:"oldest_id"`
}

type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	HasMore       bool           `json:"has_more"`
}

// MessageCreateInput represents the input for creating a message.
type MessageCreateInput struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	SenderID       string `json:"sender_id" validate:"required"`
	Content        string `json:"content" validate:"required,content"`
	TempID         string `json:"temp_id" validate:"required"`
}

// Validate validates the message input.
func (m *MessageCreateInput) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}
