package provider

import (
	"time"

	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/store"
)

type typingKey struct {
	conversationID string
	userID         string
}

// localTyping is the typing indicator the current user is broadcasting.
type localTyping struct {
	conversationID string
	userID         string
	timer          *time.Timer
}

// armTypingTimeout (re)starts the timer that clears a remote typing indicator.
func (p *Provider) armTypingTimeout(key typingKey) {
	if p.opts.TypingTimeout <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.typingTimers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(p.opts.TypingTimeout, func() {
		p.mu.Lock()
		current, ok := p.typingTimers[key]
		if !ok || current != t {
			p.mu.Unlock()
			return
		}
		delete(p.typingTimers, key)
		p.mu.Unlock()

		p.logger.Debug("typing timeout: " + key.userID + " in " + key.conversationID)
		p.store.Dispatch(store.TypingStopped{ConversationID: key.conversationID, UserID: key.userID})
	})
	p.typingTimers[key] = t
}

func (p *Provider) clearTypingTimeout(key typingKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.typingTimers[key]; ok {
		t.Stop()
		delete(p.typingTimers, key)
	}
}

// SendTyping tells the other participants that the current user is typing in
// a conversation. A typing:stop follows automatically once SendTyping has not
// been called for the idle period.
func (p *Provider) SendTyping(conversationID string) {
	userID := p.currentUserID()
	if conversationID == "" || userID == "" {
		return
	}
	p.transport.Send(core.TypingStartEvent{ConversationID: conversationID, UserID: userID})

	if p.opts.TypingIdle <= 0 {
		return
	}
	p.mu.Lock()
	prev := p.local
	if prev != nil {
		prev.timer.Stop()
	}
	lt := &localTyping{conversationID: conversationID, userID: userID}
	lt.timer = time.AfterFunc(p.opts.TypingIdle, func() {
		p.mu.Lock()
		if p.local != lt {
			p.mu.Unlock()
			return
		}
		p.local = nil
		p.mu.Unlock()
		p.transport.Send(core.TypingStopEvent{ConversationID: lt.conversationID, UserID: lt.userID})
	})
	p.local = lt
	p.mu.Unlock()

	if prev != nil && prev.conversationID != conversationID {
		p.transport.Send(core.TypingStopEvent{ConversationID: prev.conversationID, UserID: prev.userID})
	}
}

// StopTyping tells the other participants that the current user stopped typing.
func (p *Provider) StopTyping(conversationID string) {
	userID := p.currentUserID()
	if conversationID == "" || userID == "" {
		return
	}
	p.mu.Lock()
	if p.local != nil && p.local.conversationID == conversationID {
		p.local.timer.Stop()
		p.local = nil
	}
	p.mu.Unlock()
	p.transport.Send(core.TypingStopEvent{ConversationID: conversationID, UserID: userID})
}

// leaveTyping stops the local typing indicator unless it belongs to
// conversationID.
func (p *Provider) leaveTyping(conversationID string) {
	p.mu.Lock()
	lt := p.local
	if lt == nil || lt.conversationID == conversationID {
		p.mu.Unlock()
		return
	}
	lt.timer.Stop()
	p.local = nil
	p.mu.Unlock()
	p.transport.Send(core.TypingStopEvent{ConversationID: lt.conversationID, UserID: lt.userID})
}

func (p *Provider) currentUserID() string {
	s := p.store.State()
	if s.CurrentUser == nil {
		return ""
	}
	return s.CurrentUser.ID
}
