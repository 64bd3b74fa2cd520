package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/store"
)

// TempIDPrefix prefixes the IDs of messages not yet confirmed by the server.
const TempIDPrefix = "temp-"

// LoadConversations fetches the conversation list.
func (p *Provider) LoadConversations(ctx context.Context) error {
	p.store.Dispatch(store.SetLoading{Loading: true})
	defer p.store.Dispatch(store.SetLoading{Loading: false})

	page, err := p.api.GetConversations(ctx)
	if err != nil {
		p.logger.Error(fmt.Sprintf("load conversations: %v", err))
		return fmt.Errorf("GetConversations: %w", err)
	}
	p.store.Dispatch(store.SetConversations{Conversations: page.Conversations, HasMore: page.HasMore})
	return nil
}

// SelectConversation makes a conversation active. An empty id clears the
// selection.
//
// The latest page of messages is fetched unless it was already loaded or is
// being loaded. Unread messages are then marked as read.
func (p *Provider) SelectConversation(ctx context.Context, conversationID string) error {
	p.leaveTyping(conversationID)
	if conversationID == "" {
		p.store.Dispatch(store.SetActiveConversation{})
		return nil
	}
	if _, ok := p.store.State().Conversations[conversationID]; !ok {
		return fmt.Errorf("SelectConversation: %w", core.ErrInvalidConversation)
	}
	p.store.Dispatch(store.SetActiveConversation{ID: conversationID})

	if err := p.loadLatest(ctx, conversationID); err != nil {
		return err
	}
	return p.markRead(ctx, conversationID)
}

func (p *Provider) loadLatest(ctx context.Context, conversationID string) error {
	notLoaded := func(s store.State) bool {
		cur := s.Pagination[conversationID]
		return !cur.Loaded && !cur.IsLoading
	}
	if !p.store.DispatchIf(notLoaded, store.SetLoading{ConversationID: conversationID, Loading: true}) {
		return nil
	}
	defer p.store.Dispatch(store.SetLoading{ConversationID: conversationID, Loading: false})

	page, err := p.api.GetMessages(ctx, conversationID, core.MessageQuery{Limit: p.opts.PageSize})
	if err != nil {
		p.logger.Error(fmt.Sprintf("load messages: %v", err), slog.String("conversation", conversationID))
		return fmt.Errorf("GetMessages: %w", err)
	}
	p.store.Dispatch(store.SetMessages{ConversationID: conversationID, Page: page})
	return nil
}

func (p *Provider) markRead(ctx context.Context, conversationID string) error {
	s := p.store.State()
	c, ok := s.Conversations[conversationID]
	if !ok || c.UnreadCount == 0 {
		return nil
	}
	var lastID string
	if c.LastMessage != nil {
		lastID = c.LastMessage.ID
	} else if m, ok := store.LatestMessage(s, conversationID); ok {
		lastID = m.ID
	}
	if lastID == "" {
		return nil
	}
	if err := p.api.MarkAsRead(ctx, conversationID, lastID); err != nil {
		p.logger.Error(fmt.Sprintf("mark as read: %v", err), slog.String("conversation", conversationID))
		return fmt.Errorf("MarkAsRead: %w", err)
	}
	p.store.Dispatch(store.ConversationUpdated{ConversationID: conversationID, MarkRead: true})
	return nil
}

// LoadOlderMessages fetches the page of messages preceding the oldest loaded
// one. It does nothing unless the latest page has been loaded, older messages
// remain and no load is running for the conversation.
func (p *Provider) LoadOlderMessages(ctx context.Context, conversationID string) error {
	var before string
	canLoad := func(s store.State) bool {
		cur := s.Pagination[conversationID]
		before = cur.OldestMessageID
		return cur.CanLoadOlder()
	}
	if !p.store.DispatchIf(canLoad, store.SetLoading{ConversationID: conversationID, Loading: true}) {
		return nil
	}
	defer p.store.Dispatch(store.SetLoading{ConversationID: conversationID, Loading: false})

	page, err := p.api.GetMessages(ctx, conversationID, core.MessageQuery{Before: before, Limit: p.opts.PageSize})
	if err != nil {
		p.logger.Error(fmt.Sprintf("load older messages: %v", err), slog.String("conversation", conversationID))
		return fmt.Errorf("GetMessages: %w", err)
	}
	p.store.Dispatch(store.AppendOlderMessages{ConversationID: conversationID, Page: page})
	return nil
}

// SendMessage sends a message to the active conversation.
//
// The message is added with the sending status before the request is made,
// and replaced by the server copy once it is accepted. A rejected message
// stays in the conversation with the failed status and can be retried with
// RetryMessage. It returns the server copy on success and the failed message
// otherwise. It does nothing and returns the zero Message without a current
// user or an active conversation.
func (p *Provider) SendMessage(ctx context.Context, content string) (core.Message, error) {
	s := p.store.State()
	if s.CurrentUser == nil || s.ActiveConversationID == "" {
		return core.Message{}, nil
	}

	m := core.Message{
		ID:             TempIDPrefix + uuid.NewString(),
		ConversationID: s.ActiveConversationID,
		SenderID:       s.CurrentUser.ID,
		Content:        content,
		Timestamp:      p.now(),
		Status:         core.MessageSending,
	}
	input := core.MessageCreateInput{
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		TempID:         m.ID,
	}
	if err := input.Validate(); err != nil {
		return core.Message{}, fmt.Errorf("SendMessage: %w", err)
	}

	p.store.Dispatch(store.MessageAdded{Message: m})
	return p.deliver(ctx, m)
}

// RetryMessage sends a failed message again under the same temporary ID.
// It does nothing if the message is not in the failed status.
func (p *Provider) RetryMessage(ctx context.Context, messageID string) error {
	if !p.store.Dispatch(store.MessageRetried{TempID: messageID}) {
		return nil
	}
	m, ok := p.store.State().Messages[messageID]
	if !ok {
		return nil
	}
	_, err := p.deliver(ctx, m)
	return err
}

// deliver sends a pending message and reconciles it by its temporary ID, which
// stays valid even if the user has switched conversation in the meantime.
func (p *Provider) deliver(ctx context.Context, m core.Message) (core.Message, error) {
	confirmed, err := p.api.SendMessage(ctx, m.ConversationID, m.Content, m.ID)
	if err != nil {
		p.logger.Error(fmt.Sprintf("send message: %v", err),
			slog.String("conversation", m.ConversationID), slog.String("temp_id", m.ID))
		p.store.Dispatch(store.MessageFailed{TempID: m.ID, Reason: err.Error()})
		m.Status = core.MessageFailed
		m.Error = err.Error()
		return m, fmt.Errorf("SendMessage: %w", err)
	}

	p.store.Dispatch(store.MessageConfirmed{TempID: m.ID, Message: confirmed})
	p.transport.SimulateMessageDelivered(confirmed.ID)
	p.store.Dispatch(store.ConversationUpdated{ConversationID: confirmed.ConversationID, LastMessage: &confirmed})
	return confirmed, nil
}

// SetSearchQuery filters the conversation list.
func (p *Provider) SetSearchQuery(query string) {
	p.store.Dispatch(store.SetSearchQuery{Query: query})
}
