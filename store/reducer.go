package store

import (
	"github.com/putto11262002/chatter-client/core"
)

// Reduce computes the state that follows s after a.
// It never writes to s. Actions that do not change anything return s as is.
func Reduce(s State, a Action) State {
	next, _ := reduce(s, a)
	return next
}

// reduce is Reduce that also reports whether the state changed.
func reduce(s State, a Action) (State, bool) {
	switch a := a.(type) {
	case SetCurrentUser:
		u := a.User
		s.CurrentUser = &u
		s.Users = with(s.Users, u.ID, u)
		s.Online = withStatus(s.Online, u.ID, u.Status)
		return s, true

	case SetUsers:
		users := make(map[string]core.User, len(a.Users)+1)
		online := Set{}
		if s.CurrentUser != nil {
			if me, ok := s.Users[s.CurrentUser.ID]; ok {
				users[me.ID] = me
				if me.Status == core.UserOnline {
					online[me.ID] = struct{}{}
				}
			}
		}
		for _, u := range a.Users {
			users[u.ID] = u
			if u.Status == core.UserOnline {
				online[u.ID] = struct{}{}
			} else {
				delete(online, u.ID)
			}
		}
		s.Users = users
		s.Online = online
		return s, true

	case SetConversations:
		conversations := make(map[string]core.Conversation, len(a.Conversations))
		for _, c := range a.Conversations {
			conversations[c.ID] = c
		}
		s.Conversations = conversations
		s.ConversationsHasMore = a.HasMore
		return prune(s), true

	case SetActiveConversation:
		if s.ActiveConversationID == a.ID {
			return s, false
		}
		if a.ID != "" {
			if _, ok := s.Conversations[a.ID]; !ok {
				return s, false
			}
		}
		s.ActiveConversationID = a.ID
		return s, true

	case SetMessages:
		return mergePage(s, a.ConversationID, a.Page)

	case AppendOlderMessages:
		return mergePage(s, a.ConversationID, a.Page)

	case MessageAdded:
		m := a.Message
		if _, ok := s.Conversations[m.ConversationID]; !ok {
			return s, false
		}
		if old, ok := s.Messages[m.ID]; ok {
			if !old.Status.Advances(m.Status) {
				return s, false
			}
		}
		s.Messages = with(s.Messages, m.ID, m)
		return s, true

	case MessageConfirmed:
		temp, ok := s.Messages[a.TempID]
		if !ok {
			return s, false
		}
		confirmed := a.Message
		if existing, ok := s.Messages[confirmed.ID]; ok && existing.Status != core.MessageFailed && !existing.Status.Advances(confirmed.Status) {
			confirmed.Status = existing.Status
		}
		confirmed.Error = ""
		messages := without(s.Messages, a.TempID)
		messages[confirmed.ID] = confirmed
		s.Messages = messages
		if c, ok := s.Conversations[temp.ConversationID]; ok && c.LastMessage != nil && c.LastMessage.ID == a.TempID {
			c.LastMessage = &confirmed
			s.Conversations = with(s.Conversations, c.ID, c)
		}
		return s, true

	case MessageFailed:
		m, ok := s.Messages[a.TempID]
		if !ok || m.Status != core.MessageSending {
			return s, false
		}
		m.Status = core.MessageFailed
		m.Error = a.Reason
		s.Messages = with(s.Messages, m.ID, m)
		return s, true

	case MessageRetried:
		m, ok := s.Messages[a.TempID]
		if !ok || m.Status != core.MessageFailed {
			return s, false
		}
		m.Status = core.MessageSending
		m.Error = ""
		s.Messages = with(s.Messages, m.ID, m)
		return s, true

	case MessageStatusUpdated:
		m, ok := s.Messages[a.MessageID]
		if !ok || !m.Status.Advances(a.Status) {
			return s, false
		}
		m.Status = a.Status
		s.Messages = with(s.Messages, m.ID, m)
		if c, ok := s.Conversations[m.ConversationID]; ok && c.LastMessage != nil && c.LastMessage.ID == m.ID {
			c.LastMessage = &m
			s.Conversations = with(s.Conversations, c.ID, c)
		}
		return s, true

	case TypingStarted:
		users := s.Typing[a.ConversationID]
		if users.Has(a.UserID) {
			return s, false
		}
		s.Typing = with(s.Typing, a.ConversationID, Set(with(users, a.UserID, struct{}{})))
		return s, true

	case TypingStopped:
		users := s.Typing[a.ConversationID]
		if !users.Has(a.UserID) {
			return s, false
		}
		if len(users) == 1 {
			s.Typing = without(s.Typing, a.ConversationID)
		} else {
			s.Typing = with(s.Typing, a.ConversationID, Set(without(users, a.UserID)))
		}
		return s, true

	case UserStatusChanged:
		u, ok := s.Users[a.UserID]
		if !ok || u.Status == a.Status {
			return s, false
		}
		u.Status = a.Status
		if !a.At.IsZero() {
			u.LastSeen = a.At
		}
		s.Users = with(s.Users, u.ID, u)
		s.Online = withStatus(s.Online, u.ID, u.Status)
		if s.CurrentUser != nil && s.CurrentUser.ID == u.ID {
			s.CurrentUser = &u
		}
		return s, true

	case ConnectionStatusChanged:
		if s.Connection == a.Status {
			return s, false
		}
		s.Connection = a.Status
		return s, true

	case SetSearchQuery:
		if s.SearchQuery == a.Query {
			return s, false
		}
		s.SearchQuery = a.Query
		return s, true

	case SetLoading:
		if a.ConversationID == "" {
			if s.Loading == a.Loading {
				return s, false
			}
			s.Loading = a.Loading
			return s, true
		}
		cur, ok := s.Pagination[a.ConversationID]
		if !ok {
			if _, known := s.Conversations[a.ConversationID]; !known {
				return s, false
			}
			cur.HasMore = true
		}
		if ok && cur.IsLoading == a.Loading {
			return s, false
		}
		cur.IsLoading = a.Loading
		s.Pagination = with(s.Pagination, a.ConversationID, cur)
		return s, true

	case ConversationUpdated:
		return updateConversation(s, a)
	}

	return s, false
}

// prune drops the messages, cursors and typing sets of conversations no longer
// in s, and clears the active conversation if it is gone.
func prune(s State) State {
	var stale []string
	for id, m := range s.Messages {
		if _, ok := s.Conversations[m.ConversationID]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		s.Messages = without(s.Messages, stale...)
	}
	s.Pagination = withoutUnknown(s.Pagination, s.Conversations)
	s.Typing = withoutUnknown(s.Typing, s.Conversations)
	if _, ok := s.Conversations[s.ActiveConversationID]; !ok {
		s.ActiveConversationID = ""
	}
	return s
}

// withoutUnknown returns m without the keys that are not conversations. It
// returns m itself when nothing is dropped.
func withoutUnknown[V any](m map[string]V, conversations map[string]core.Conversation) map[string]V {
	var stale []string
	for id := range m {
		if _, ok := conversations[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return m
	}
	return without(m, stale...)
}

func withStatus(online Set, id string, status core.UserStatus) Set {
	if status == core.UserOnline {
		if online.Has(id) {
			return online
		}
		return with(online, id, struct{}{})
	}
	if !online.Has(id) {
		return online
	}
	return without(online, id)
}

// mergePage merges a page of messages into the message map and moves the
// conversation cursor. The oldest message ID only ever moves backwards in time.
func mergePage(s State, conversationID string, page core.MessagePage) (State, bool) {
	if _, ok := s.Conversations[conversationID]; !ok {
		return s, false
	}

	messages := s.Messages
	copied := false
	for _, m := range page.Messages {
		if m.ConversationID != conversationID {
			continue
		}
		if !copied {
			messages = without(s.Messages)
			copied = true
		}
		if old, ok := messages[m.ID]; ok && !old.Status.Advances(m.Status) {
			m.Status = old.Status
		}
		messages[m.ID] = m
	}
	s.Messages = messages

	cur := s.Pagination[conversationID]
	switch {
	case !cur.Loaded || cur.OldestMessageID == "":
		cur.HasMore = page.HasMore
		if page.OldestID != "" {
			cur.OldestMessageID = page.OldestID
		}
	case page.OldestID == "":
		cur.HasMore = page.HasMore
	case isOlder(s.Messages, page.OldestID, cur.OldestMessageID):
		cur.OldestMessageID = page.OldestID
		cur.HasMore = page.HasMore
	}
	cur.Loaded = true
	s.Pagination = with(s.Pagination, conversationID, cur)
	return s, true
}

func updateConversation(s State, a ConversationUpdated) (State, bool) {
	c, ok := s.Conversations[a.ConversationID]
	if !ok {
		return s, false
	}
	changed := false
	if m := a.LastMessage; m != nil && m.ConversationID == c.ID {
		isNew := c.LastMessage == nil || c.LastMessage.ID != m.ID
		if c.LastMessage == nil || c.LastMessage.ID == m.ID || !m.Timestamp.Before(c.LastMessage.Timestamp) {
			last := *m
			c.LastMessage = &last
			changed = true
		}
		if m.Timestamp.After(c.UpdatedAt) {
			c.UpdatedAt = m.Timestamp
			changed = true
		}
		if isNew && m.SenderID != s.currentUserID() && c.ID != s.ActiveConversationID {
			c.UnreadCount++
			changed = true
		}
	}
	if a.MarkRead && c.UnreadCount != 0 {
		c.UnreadCount = 0
		changed = true
	}
	if !changed {
		return s, false
	}
	s.Conversations = with(s.Conversations, c.ID, c)
	return s, true
}

// isOlder reports whether message a precedes message b.
func isOlder(messages map[string]core.Message, a, b string) bool {
	ma, okA := messages[a]
	mb, okB := messages[b]
	if !okB {
		return okA
	}
	if !okA {
		return false
	}
	if ma.Timestamp.Equal(mb.Timestamp) {
		return ma.ID < mb.ID
	}
	return ma.Timestamp.Before(mb.Timestamp)
}
