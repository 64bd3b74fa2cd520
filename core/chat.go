package core

import (
	"fmt"
	"time"
)

const (
	// DirectConversation is a conversation between exactly two users.
	// Its display name is derived from the other participant.
	DirectConversation ConversationType = "direct"
	// GroupConversation is a conversation between two or more users.
	// A group conversation must carry a name.
	GroupConversation ConversationType = "group"
)

const (
	UserOnline  UserStatus = "online"
	UserOffline UserStatus = "offline"
	UserAway    UserStatus = "away"
)

const (
	_ MessageStatus = iota
	MessageSending
	MessageSent
	MessageDelivered
	MessageRead
	// MessageFailed marks a locally created message whose send was rejected.
	// It sits outside the forward chain, status updates never apply to it.
	MessageFailed
)

const (
	Disconnected ConnectionStatus = "disconnected"
	Connecting   ConnectionStatus = "connecting"
	Connected    ConnectionStatus = "connected"
)

// ConversationType represents the type of a conversation.
type ConversationType string

// UserStatus represents the presence of a user.
type UserStatus string

// ConnectionStatus represents the state of the real-time transport.
type ConnectionStatus string

// MessageStatus represents the delivery state of a message.
// Values are ordered, a message only ever moves to a greater status.
type MessageStatus int

var messageStatusNames = map[MessageStatus]string{
	MessageFailed:    "failed",
	MessageSending:   "sending",
	MessageSent:      "sent",
	MessageDelivered: "delivered",
	MessageRead:      "read",
}

func (s MessageStatus) String() string {
	if name, ok := messageStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MessageStatus(%d)", int(s))
}

func (s MessageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MessageStatus) UnmarshalText(text []byte) error {
	for status, name := range messageStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown message status %q", text)
}

// Advances reports whether moving from s to next respects the forward-only
// ordering sending < sent < delivered < read.
func (s MessageStatus) Advances(next MessageStatus) bool {
	if s == MessageFailed || next == MessageFailed {
		return false
	}
	return next > s
}

// User represents a member of the user directory.
type User struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Avatar   string     `json:"avatar"`
	Status   UserStatus `json:"status"`
	LastSeen time.Time  `json:"last_seen"`
}

// Message represents a chat message sent by a user to a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	Content        string        `json:"content"`
	Timestamp      time.Time     `json:"timestamp"`
	Status         MessageStatus `json:"status"`
	ReplyTo        string        `json:"reply_to,omitempty"`
	// Error holds the reason a local send failed. It is empty for every
	// message that is not in the MessageFailed status.
	Error string `json:"error,omitempty"`
}

// Conversation represents a conversation between users.
type Conversation struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Participants []string         `json:"participants"`
	// Name is only stored for group conversations.
	Name        string    `json:"name,omitempty"`
	LastMessage *Message  `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasParticipant returns true if the user takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Peers returns the participants other than userID.
func (c Conversation) Peers(userID string) []string {
	peers := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			peers = append(peers, p)
		}
	}
	return peers
}
