package mockapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/putto11262002/chatter-client/core"
)

// Op names a data access operation. It is passed to the failure hook.
type Op string

const (
	OpGetCurrentUser   Op = "GetCurrentUser"
	OpGetUsers         Op = "GetUsers"
	OpGetConversations Op = "GetConversations"
	OpGetMessages      Op = "GetMessages"
	OpSendMessage      Op = "SendMessage"
	OpMarkAsRead       Op = "MarkAsRead"
)

// Backend is an in-memory implementation of core.ChatAPI that simulates
// network latency and failures.
type Backend struct {
	mu            sync.RWMutex
	currentUserID string
	users         map[string]core.User
	conversations map[string]core.Conversation
	// history is keyed by conversation ID, ordered oldest first.
	history map[string][]core.Message

	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64
	failFunc    func(Op) error
	now         func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	logger *slog.Logger
}

type Option func(*Backend)

// WithLatency sets the bounds of the simulated latency of every call.
func WithLatency(lo, hi time.Duration) Option {
	return func(b *Backend) {
		b.minLatency = lo
		b.maxLatency = hi
	}
}

// WithFailureRate sets the probability, between 0 and 1, that a call fails with core.ErrNetwork.
func WithFailureRate(rate float64) Option {
	return func(b *Backend) {
		b.failureRate = rate
	}
}

// WithFailFunc registers a hook called before every operation.
// A non-nil error returned by the hook fails the operation.
func WithFailFunc(f func(Op) error) Option {
	return func(b *Backend) {
		b.failFunc = f
	}
}

func WithRand(rnd *rand.Rand) Option {
	return func(b *Backend) {
		b.rnd = rnd
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

func New(seed Seed, opts ...Option) *Backend {
	b := &Backend{
		currentUserID: seed.CurrentUserID,
		users:         make(map[string]core.User, len(seed.Users)),
		conversations: make(map[string]core.Conversation, len(seed.Conversations)),
		history:       make(map[string][]core.Message, len(seed.Conversations)),
		minLatency:    100 * time.Millisecond,
		maxLatency:    400 * time.Millisecond,
		now:           time.Now,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, u := range seed.Users {
		b.users[u.ID] = u
	}
	for _, c := range seed.Conversations {
		b.conversations[c.ID] = cloneConversation(c)
	}
	for _, m := range seed.Messages {
		b.history[m.ConversationID] = append(b.history[m.ConversationID], m)
	}
	for id := range b.history {
		slices.SortStableFunc(b.history[id], func(a, b core.Message) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
	}
	return b
}

// NewDefault returns a backend seeded with DefaultSeed.
func NewDefault(opts ...Option) *Backend {
	return New(DefaultSeed(time.Now()), opts...)
}

func (b *Backend) random() float64 {
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.rnd.Float64()
}

// call simulates the round trip of op.
func (b *Backend) call(ctx context.Context, op Op) error {
	latency := b.minLatency
	if b.maxLatency > b.minLatency {
		latency += time.Duration(b.random() * float64(b.maxLatency-b.minLatency))
	}
	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if b.failFunc != nil {
		if err := b.failFunc(op); err != nil {
			b.logger.Debug(fmt.Sprintf("%s: injected failure: %v", op, err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if b.failureRate > 0 && b.random() < b.failureRate {
		b.logger.Debug(fmt.Sprintf("%s: simulated network failure", op))
		return fmt.Errorf("%s: %w", op, core.ErrNetwork)
	}
	return nil
}

func (b *Backend) GetCurrentUser(ctx context.Context) (core.User, error) {
	if err := b.call(ctx, OpGetCurrentUser); err != nil {
		return core.User{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.users[b.currentUserID]
	if !ok {
		return core.User{}, fmt.Errorf("%s: %w", OpGetCurrentUser, core.ErrInvalidUser)
	}
	return u, nil
}

func (b *Backend) GetUsers(ctx context.Context) ([]core.User, error) {
	if err := b.call(ctx, OpGetUsers); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	users := make([]core.User, 0, len(b.users))
	for _, u := range b.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b core.User) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return users, nil
}

func (b *Backend) GetConversations(ctx context.Context) (core.ConversationPage, error) {
	if err := b.call(ctx, OpGetConversations); err != nil {
		return core.ConversationPage{}, err
	}
	return core.ConversationPage{Conversations: b.ConversationsOf(b.currentUserID)}, nil
}

func (b *Backend) GetMessages(ctx context.Context, conversationID string, query core.MessageQuery) (core.MessagePage, error) {
	if err := b.call(ctx, OpGetMessages); err != nil {
		return core.MessagePage{}, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = core.DefaultPageSize
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.conversations[conversationID]; !ok {
		return core.MessagePage{}, fmt.Errorf("%s: %w", OpGetMessages, core.ErrInvalidConversation)
	}
	history := b.history[conversationID]
	end := len(history)
	if query.Before != "" {
		end = slices.IndexFunc(history, func(m core.Message) bool {
			return m.ID == query.Before
		})
		if end < 0 {
			return core.MessagePage{}, fmt.Errorf("%s: %w", OpGetMessages, core.ErrInvalidCursor)
		}
	}
	start := max(0, end-limit)

	page := core.MessagePage{
		Messages: slices.Clone(history[start:end]),
		HasMore:  start > 0,
	}
	if len(page.Messages) > 0 {
		page.OldestID = page.Messages[0].ID
	}
	return page, nil
}

func (b *Backend) SendMessage(ctx context.Context, conversationID, content, tempID string) (core.Message, error) {
	input := core.MessageCreateInput{
		ConversationID: conversationID,
		SenderID:       b.currentUserID,
		Content:        content,
		TempID:         tempID,
	}
	if err := input.Validate(); err != nil {
		return core.Message{}, fmt.Errorf("%s: %w", OpSendMessage, err)
	}
	if err := b.call(ctx, OpSendMessage); err != nil {
		return core.Message{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[conversationID]
	if !ok || !conv.HasParticipant(b.currentUserID) {
		return core.Message{}, fmt.Errorf("%s: %w", OpSendMessage, core.ErrInvalidConversation)
	}
	id := uuid.NewString()
	for id == tempID {
		id = uuid.NewString()
	}
	m := core.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       b.currentUserID,
		Content:        content,
		Timestamp:      b.now(),
		Status:         core.MessageSent,
	}
	return b.appendLocked(m), nil
}

func (b *Backend) MarkAsRead(ctx context.Context, conversationID, lastReadMessageID string) error {
	if err := b.call(ctx, OpMarkAsRead); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%s: %w", OpMarkAsRead, core.ErrInvalidConversation)
	}
	history := b.history[conversationID]
	last := slices.IndexFunc(history, func(m core.Message) bool {
		return m.ID == lastReadMessageID
	})
	if last < 0 {
		return fmt.Errorf("%s: %w", OpMarkAsRead, core.ErrInvalidCursor)
	}
	for i := 0; i <= last; i++ {
		if history[i].Status.Advances(core.MessageRead) {
			history[i].Status = core.MessageRead
		}
	}
	conv.UnreadCount = 0
	if conv.LastMessage != nil {
		i := slices.IndexFunc(history[:last+1], func(m core.Message) bool {
			return m.ID == conv.LastMessage.ID
		})
		if i >= 0 {
			lastMessage := history[i]
			conv.LastMessage = &lastMessage
		}
	}
	b.conversations[conversationID] = conv
	return nil
}

// ConversationsOf returns the conversations userID takes part in, most recently
// updated first. It does not simulate latency.
func (b *Backend) ConversationsOf(userID string) []core.Conversation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	conversations := make([]core.Conversation, 0, len(b.conversations))
	for _, c := range b.conversations {
		if c.HasParticipant(userID) {
			conversations = append(conversations, cloneConversation(c))
		}
	}
	slices.SortFunc(conversations, func(a, b core.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return conversations
}

// CurrentUserID returns the ID of the user the backend serves.
func (b *Backend) CurrentUserID() string {
	return b.currentUserID
}

// UserIDs returns the IDs of every user in the directory.
func (b *Backend) UserIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.users))
	for id := range b.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SetUserStatus records a presence change in the directory.
func (b *Backend) SetUserStatus(userID string, status core.UserStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[userID]
	if !ok {
		return
	}
	u.Status = status
	u.LastSeen = b.now()
	b.users[userID] = u
}

// AppendMessage records a message sent by another user. A message without an
// ID is assigned one. The stored message is returned.
func (b *Backend) AppendMessage(m core.Message) (core.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, ok := b.conversations[m.ConversationID]
	if !ok || !conv.HasParticipant(m.SenderID) {
		return core.Message{}, core.ErrInvalidConversation
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = b.now()
	}
	if m.Status == 0 {
		m.Status = core.MessageSent
	}
	return b.appendLocked(m), nil
}

// appendLocked appends m to its conversation history and returns the stored
// message. b.mu must be held.
func (b *Backend) appendLocked(m core.Message) core.Message {
	history := b.history[m.ConversationID]
	if n := len(history); n > 0 && m.Timestamp.Before(history[n-1].Timestamp) {
		m.Timestamp = history[n-1].Timestamp
	}
	b.history[m.ConversationID] = append(history, m)

	conv := b.conversations[m.ConversationID]
	lastMessage := m
	conv.LastMessage = &lastMessage
	conv.UpdatedAt = m.Timestamp
	if m.SenderID != b.currentUserID {
		conv.UnreadCount++
	}
	b.conversations[m.ConversationID] = conv
	return m
}

func cloneConversation(c core.Conversation) core.Conversation {
	c.Participants = slices.Clone(c.Participants)
	if c.LastMessage != nil {
		m := *c.LastMessage
		c.LastMessage = &m
	}
	return c
}
