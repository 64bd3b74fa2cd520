package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/store"
)

// Transport is the real-time channel of a session.
type Transport interface {
	core.Subscriber
	Connect(userID string)
	Disconnect()
	// Send delivers a client event. It is a no-op when not connected.
	Send(ev core.Event)
	// SimulateMessageDelivered asks the channel to acknowledge a sent message.
	SimulateMessageDelivered(messageID string)
}

type Options struct {
	// TypingTimeout clears a remote typing indicator whose typing:stop never
	// arrived. Zero disables it.
	TypingTimeout time.Duration
	// TypingIdle sends typing:stop once the user stops calling SendTyping.
	// Zero disables it.
	TypingIdle time.Duration
	PageSize   int
}

var DefaultOptions = Options{
	TypingTimeout: 5 * time.Second,
	TypingIdle:    3 * time.Second,
	PageSize:      core.DefaultPageSize,
}

// Provider is the effects layer of a session. It is the only component that
// calls the data access layer or the transport, and it feeds their results
// into the store.
type Provider struct {
	api       core.ChatAPI
	transport Transport
	store     *store.Store
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	mu           sync.Mutex
	unsubscribe  []func()
	typingTimers map[typingKey]*time.Timer
	local        *localTyping
}

type Option func(*Provider)

func WithOptions(opts Options) Option {
	return func(p *Provider) {
		p.opts = opts
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithClock sets the time source of optimistic messages and presence changes.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func New(api core.ChatAPI, transport Transport, s *store.Store, opts ...Option) *Provider {
	p := &Provider{
		api:          api,
		transport:    transport,
		store:        s,
		opts:         DefaultOptions,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
		typingTimers: make(map[typingKey]*time.Timer),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.opts.PageSize <= 0 {
		p.opts.PageSize = core.DefaultPageSize
	}
	return p
}

// Store returns the store the provider dispatches to.
func (p *Provider) Store() *store.Store {
	return p.store
}

// State is a shorthand for Store().State().
func (p *Provider) State() store.State {
	return p.store.State()
}

// Start initializes the session: it fetches the current user, then the user
// directory, then connects the transport.
//
// A failure leaves the store usable and is returned so that the caller can
// retry. Calling Start again after a success is harmless.
func (p *Provider) Start(ctx context.Context) error {
	p.subscribe()

	p.store.Dispatch(store.SetLoading{Loading: true})
	defer p.store.Dispatch(store.SetLoading{Loading: false})

	user, err := p.api.GetCurrentUser(ctx)
	if err != nil {
		p.logger.Error(fmt.Sprintf("start: GetCurrentUser: %v", err))
		return fmt.Errorf("GetCurrentUser: %w", err)
	}
	p.store.Dispatch(store.SetCurrentUser{User: user})

	users, err := p.api.GetUsers(ctx)
	if err != nil {
		p.logger.Error(fmt.Sprintf("start: GetUsers: %v", err))
		return fmt.Errorf("GetUsers: %w", err)
	}
	p.store.Dispatch(store.SetUsers{Users: users})

	p.transport.Connect(user.ID)
	p.logger.Info("session started", slog.String("user", user.ID))
	return nil
}

// Stop disconnects the transport, cancels every pending timer and detaches
// the provider from the transport. The store keeps its last state.
func (p *Provider) Stop() {
	p.transport.Disconnect()

	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	for key, t := range p.typingTimers {
		t.Stop()
		delete(p.typingTimers, key)
	}
	if p.local != nil {
		p.local.timer.Stop()
		p.local = nil
	}
	p.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	p.logger.Info("session stopped")
}

func (p *Provider) subscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		return
	}
	p.unsubscribe = []func(){
		core.Subscribe(p.transport, p.onConnection),
		core.Subscribe(p.transport, p.onMessageNew),
		core.Subscribe(p.transport, p.onMessageStatus),
		core.Subscribe(p.transport, p.onTypingStart),
		core.Subscribe(p.transport, p.onTypingStop),
		core.Subscribe(p.transport, p.onPresence),
	}
}
