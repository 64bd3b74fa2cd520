package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/pkg/mockapi"
	"github.com/putto11262002/chatter-client/store"
	"github.com/stretchr/testify/require"
)

var baseTimeout = time.Second

// gatedAPI counts calls and can hold an operation until it is released.
type gatedAPI struct {
	core.ChatAPI

	mu    sync.Mutex
	calls map[mockapi.Op]int
	gates map[mockapi.Op]chan struct{}
}

func newGatedAPI(api core.ChatAPI) *gatedAPI {
	return &gatedAPI{
		ChatAPI: api,
		calls:   make(map[mockapi.Op]int),
		gates:   make(map[mockapi.Op]chan struct{}),
	}
}

func (a *gatedAPI) enter(ctx context.Context, op mockapi.Op) error {
	a.mu.Lock()
	a.calls[op]++
	gate := a.gates[op]
	a.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hold blocks op until the returned function is called.
func (a *gatedAPI) hold(op mockapi.Op) (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gates[op] = gate
	a.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.gates, op)
			a.mu.Unlock()
			close(gate)
		})
	}
}

func (a *gatedAPI) count(op mockapi.Op) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

func (a *gatedAPI) GetMessages(ctx context.Context, conversationID string, query core.MessageQuery) (core.MessagePage, error) {
	if err := a.enter(ctx, mockapi.OpGetMessages); err != nil {
		return core.MessagePage{}, err
	}
	return a.ChatAPI.GetMessages(ctx, conversationID, query)
}

func (a *gatedAPI) SendMessage(ctx context.Context, conversationID, content, tempID string) (core.Message, error) {
	if err := a.enter(ctx, mockapi.OpSendMessage); err != nil {
		return core.Message{}, err
	}
	return a.ChatAPI.SendMessage(ctx, conversationID, content, tempID)
}

// fakeTransport records what the provider sends and lets tests push events.
type fakeTransport struct {
	mu          sync.Mutex
	listeners   map[core.EventType]*core.Listeners[core.Event]
	connected   []string
	disconnects int
	sent        []core.Event
	delivered   []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{listeners: make(map[core.EventType]*core.Listeners[core.Event])}
}

func (t *fakeTransport) On(et core.EventType, handler func(core.Event)) func() {
	t.mu.Lock()
	l, ok := t.listeners[et]
	if !ok {
		l = &core.Listeners[core.Event]{}
		t.listeners[et] = l
	}
	t.mu.Unlock()
	return l.Add(handler)
}

func (t *fakeTransport) emit(ev core.Event) {
	t.mu.Lock()
	l := t.listeners[ev.EventType()]
	t.mu.Unlock()
	if l != nil {
		l.Emit(ev)
	}
}

func (t *fakeTransport) Connect(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = append(t.connected, userID)
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects++
}

func (t *fakeTransport) Send(ev core.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, ev)
}

func (t *fakeTransport) SimulateMessageDelivered(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered = append(t.delivered, messageID)
}

func (t *fakeTransport) sentEvents() []core.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]core.Event(nil), t.sent...)
}

func (t *fakeTransport) listenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, l := range t.listeners {
		n += l.Len()
	}
	return n
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	backend   *mockapi.Backend
	api       *gatedAPI
	transport *fakeTransport
	provider  *Provider

	failMu sync.Mutex
	fail   map[mockapi.Op]error

	tearDown func()
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{
		t:         t,
		ctx:       ctx,
		transport: newFakeTransport(),
		fail:      make(map[mockapi.Op]error),
	}
	f.backend = mockapi.New(mockapi.DefaultSeed(time.Now()),
		mockapi.WithLatency(0, 0),
		mockapi.WithFailFunc(f.failure))
	f.api = newGatedAPI(f.backend)

	opts = append([]Option{WithOptions(Options{
		TypingTimeout: 50 * time.Millisecond,
		TypingIdle:    50 * time.Millisecond,
		PageSize:      core.DefaultPageSize,
	})}, opts...)
	f.provider = New(f.api, f.transport, store.New(), opts...)
	f.tearDown = func() {
		f.provider.Stop()
		cancel()
	}
	return f
}

func (f *fixture) failure(op mockapi.Op) error {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	return f.fail[op]
}

func (f *fixture) failOp(op mockapi.Op, err error) {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// start initializes the session and loads the conversation list.
func (f *fixture) start() {
	require.NoError(f.t, f.provider.Start(f.ctx))
	require.NoError(f.t, f.provider.LoadConversations(f.ctx))
}

func (f *fixture) state() store.State {
	return f.provider.State()
}

func (f *fixture) messagesWithContent(conversationID, content string) []core.Message {
	var messages []core.Message
	for _, m := range store.MessagesFor(f.state(), conversationID) {
		if m.Content == content {
			messages = append(messages, m)
		}
	}
	return messages
}

var errBoom = errors.New("boom")
