package provider

import (
	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/store"
)

func (p *Provider) onConnection(e core.ConnectionEvent) {
	p.store.Dispatch(store.ConnectionStatusChanged{Status: e.Status})
}

// onMessageNew adds the message and moves its conversation forward. A message
// delivered again only refreshes the conversation when it is still the last one.
func (p *Provider) onMessageNew(e core.MessageNewEvent) {
	m := e.Message
	prev := p.store.State()
	if !p.store.Dispatch(store.MessageAdded{Message: m}) {
		return
	}
	if _, known := prev.Messages[m.ID]; known {
		c, ok := prev.Conversations[m.ConversationID]
		if !ok || c.LastMessage == nil || c.LastMessage.ID != m.ID {
			return
		}
	}
	p.store.Dispatch(store.ConversationUpdated{ConversationID: m.ConversationID, LastMessage: &m})
}

func (p *Provider) onMessageStatus(e core.MessageStatusEvent) {
	p.store.Dispatch(store.MessageStatusUpdated{MessageID: e.MessageID, Status: e.Status})
}

func (p *Provider) onTypingStart(e core.TypingStartEvent) {
	p.store.Dispatch(store.TypingStarted{ConversationID: e.ConversationID, UserID: e.UserID})
	p.armTypingTimeout(typingKey{conversationID: e.ConversationID, userID: e.UserID})
}

func (p *Provider) onTypingStop(e core.TypingStopEvent) {
	p.clearTypingTimeout(typingKey{conversationID: e.ConversationID, userID: e.UserID})
	p.store.Dispatch(store.TypingStopped{ConversationID: e.ConversationID, UserID: e.UserID})
}

func (p *Provider) onPresence(e core.PresenceEvent) {
	p.store.Dispatch(store.UserStatusChanged{UserID: e.UserID, Status: e.Status, At: p.now()})
}
