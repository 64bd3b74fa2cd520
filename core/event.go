package core

import (
	"encoding/json"
	"fmt"
	"io"
)

const (
	ConnectionEventType    EventType = "connection"
	MessageNewEventType    EventType = "message:new"
	MessageStatusEventType EventType = "message:status"
	TypingStartEventType   EventType = "typing:start"
	TypingStopEventType    EventType = "typing:stop"
	PresenceEventType      EventType = "presence:change"
)

// EventType identifies the schema of a real-time event.
type EventType string

// Event is a real-time event carried by the transport.
// The set of implementations is closed, see the EventType constants.
type Event interface {
	EventType() EventType
}

type ConnectionEvent struct {
	Status ConnectionStatus `json:"status"`
}

type MessageNewEvent struct {
	Message Message `json:"message"`
}

type MessageStatusEvent struct {
	MessageID string        `json:"message_id"`
	Status    MessageStatus `json:"status"`
}

type TypingStartEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type TypingStopEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type PresenceEvent struct {
	UserID string     `json:"user_id"`
	Status UserStatus `json:"status"`
}

func (ConnectionEvent) EventType() EventType    { return ConnectionEventType }
func (MessageNewEvent) EventType() EventType    { return MessageNewEventType }
func (MessageStatusEvent) EventType() EventType { return MessageStatusEventType }
func (TypingStartEvent) EventType() EventType   { return TypingStartEventType }
func (TypingStopEvent) EventType() EventType    { return TypingStopEventType }
func (PresenceEvent) EventType() EventType      { return PresenceEventType }

// Envelope is the JSON representation of an event on the wire.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (e Envelope) String() string {
	return fmt.Sprintf("Envelope{Type: %s, Payload.Size: %d}", e.Type, len(e.Payload))
}

// NewEnvelope wraps an arbitrary payload under the given type.
func NewEnvelope(t EventType, payload any) (*Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Envelope{Type: t, Payload: b}, nil
}

// Open decodes the payload into the event type named by the envelope.
// Envelopes with a type outside the event catalogue return ErrUnknownEvent.
func (e *Envelope) Open() (Event, error) {
	var ev Event
	switch e.Type {
	case ConnectionEventType:
		ev = &ConnectionEvent{}
	case MessageNewEventType:
		ev = &MessageNewEvent{}
	case MessageStatusEventType:
		ev = &MessageStatusEvent{}
	case TypingStartEventType:
		ev = &TypingStartEvent{}
	case TypingStopEventType:
		ev = &TypingStopEvent{}
	case PresenceEventType:
		ev = &PresenceEvent{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, e.Type)
	}
	if err := json.Unmarshal(e.Payload, ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", e.Type, err)
	}
	return deref(ev), nil
}

func deref(ev Event) Event {
	switch v := ev.(type) {
	case *ConnectionEvent:
		return *v
	case *MessageNewEvent:
		return *v
	case *MessageStatusEvent:
		return *v
	case *TypingStartEvent:
		return *v
	case *TypingStopEvent:
		return *v
	case *PresenceEvent:
		return *v
	}
	return ev
}

func EncodeEvent(w io.Writer, ev Event) error {
	env, err := NewEnvelope(ev.EventType(), ev)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader) (Event, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return env.Open()
}

// Subscriber is implemented by event sources.
type Subscriber interface {
	On(t EventType, handler func(Event)) (unsubscribe func())
}

// Subscribe registers a handler for a single concrete event type, such as
// MessageNewEvent. E must not be an interface type.
func Subscribe[E Event](sub Subscriber, handler func(E)) (unsubscribe func()) {
	var zero E
	return sub.On(zero.EventType(), func(ev Event) {
		if e, ok := ev.(E); ok {
			handler(e)
		}
	})
}
