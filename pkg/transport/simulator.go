package transport

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/putto11262002/chatter-client/core"
)

// Backend is the server side state the simulator acts on behalf of.
type Backend interface {
	// ConversationsOf returns the conversations a user takes part in.
	ConversationsOf(userID string) []core.Conversation
	// UserIDs returns every user in the directory.
	UserIDs() []string
	// SetUserStatus records a presence change.
	SetUserStatus(userID string, status core.UserStatus)
	// AppendMessage persists a message sent by another user and returns it
	// with its assigned ID.
	AppendMessage(m core.Message) (core.Message, error)
}

// Options tunes the simulation. Zero intervals disable the matching
// background activity.
type Options struct {
	// ConnectDelay is the time between connecting and connected.
	ConnectDelay time.Duration
	// MinLatency and MaxLatency bound the delay of every simulated event.
	MinLatency time.Duration
	MaxLatency time.Duration
	// PresenceInterval is the period of random presence flips.
	PresenceInterval time.Duration
	// IncomingInterval is the period of unsolicited incoming messages.
	IncomingInterval time.Duration
	// ReplyProbability is the chance, between 0 and 1, that a typing:start
	// sent by the user is answered by another participant.
	ReplyProbability float64
	// TypingDuration is how long a simulated peer types before its message arrives.
	TypingDuration time.Duration
	DeliveredDelay time.Duration
	ReadDelay      time.Duration
}

var DefaultOptions = Options{
	ConnectDelay:     500 * time.Millisecond,
	MinLatency:       50 * time.Millisecond,
	MaxLatency:       300 * time.Millisecond,
	PresenceInterval: 15 * time.Second,
	IncomingInterval: 30 * time.Second,
	ReplyProbability: 0.7,
	TypingDuration:   2 * time.Second,
	DeliveredDelay:   time.Second,
	ReadDelay:        2 * time.Second,
}

var replies = []string{
	"Got it!",
	"Makes sense.",
	"Let me think about it.",
	"Sure, let's do that.",
	"Can you say more?",
	"👍",
	"Agreed.",
	"I'll take a look.",
}

var presenceStates = []core.UserStatus{core.UserOnline, core.UserAway, core.UserOffline}

// Simulator is an in-process real-time channel. It pushes the events a chat
// server would push and simulates the other participants of the user's
// conversations.
//
// A Simulator lives from Connect to Disconnect. It can be connected again after
// a disconnect, timers of a previous connection never fire into the new one.
type Simulator struct {
	backend Backend
	opts    Options
	logger  *slog.Logger

	mu     sync.Mutex
	status core.ConnectionStatus
	userID string
	// session identifies the current connection, scheduled work captures it.
	session  int
	timers   map[*time.Timer]struct{}
	replying map[string]bool
	stop     chan struct{}
	wg       sync.WaitGroup

	listenersMu sync.Mutex
	listeners   map[core.EventType]*core.Listeners[core.Event]

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type Option func(*Simulator)

func WithOptions(opts Options) Option {
	return func(s *Simulator) {
		s.opts = opts
	}
}

func WithRand(rnd *rand.Rand) Option {
	return func(s *Simulator) {
		s.rnd = rnd
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

func New(backend Backend, opts ...Option) *Simulator {
	s := &Simulator{
		backend:   backend,
		opts:      DefaultOptions,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		status:    core.Disconnected,
		timers:    make(map[*time.Timer]struct{}),
		replying:  make(map[string]bool),
		listeners: make(map[core.EventType]*core.Listeners[core.Event]),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the connection status.
func (s *Simulator) Status() core.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// On registers a handler for an event type. Many handlers can be registered
// for the same type, the returned function removes exactly this one.
func (s *Simulator) On(t core.EventType, handler func(core.Event)) func() {
	s.listenersMu.Lock()
	l, ok := s.listeners[t]
	if !ok {
		l = &core.Listeners[core.Event]{}
		s.listeners[t] = l
	}
	s.listenersMu.Unlock()
	return l.Add(handler)
}

func (s *Simulator) emit(ev core.Event) {
	s.listenersMu.Lock()
	l, ok := s.listeners[ev.EventType()]
	s.listenersMu.Unlock()
	if !ok {
		return
	}
	s.logger.Debug(fmt.Sprintf("emit: %s", ev.EventType()))
	l.Emit(ev)
}

// Connect starts a connection for userID. The connecting status is emitted
// before Connect returns, connected follows after the connect delay.
// Connect does nothing if the simulator is not disconnected.
func (s *Simulator) Connect(userID string) {
	s.mu.Lock()
	if s.status != core.Disconnected {
		s.mu.Unlock()
		return
	}
	s.status = core.Connecting
	s.userID = userID
	s.session++
	s.stop = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("connecting", slog.String("user", userID))
	s.emit(core.ConnectionEvent{Status: core.Connecting})

	s.after(s.opts.ConnectDelay, func() {
		s.mu.Lock()
		if s.status != core.Connecting {
			s.mu.Unlock()
			return
		}
		s.status = core.Connected
		stop := s.stop
		s.mu.Unlock()

		s.logger.Info("connected", slog.String("user", userID))
		s.emit(core.ConnectionEvent{Status: core.Connected})
		s.every(s.opts.PresenceInterval, stop, s.flipPresence)
		s.every(s.opts.IncomingInterval, stop, s.pushIncoming)
	})
}

// Disconnect stops every background activity and pending timer then emits
// the disconnected status. It does nothing if already disconnected.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	if s.status == core.Disconnected {
		s.mu.Unlock()
		return
	}
	s.status = core.Disconnected
	for t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
	clear(s.replying)
	close(s.stop)
	s.mu.Unlock()

	s.logger.Info("disconnected")
	s.emit(core.ConnectionEvent{Status: core.Disconnected})
}

// Wait blocks until the background loops of previous connections have exited.
func (s *Simulator) Wait() {
	s.wg.Wait()
}

// Send delivers a client event to the simulated server.
// It is a no-op when not connected.
func (s *Simulator) Send(ev core.Event) {
	userID, connected := s.connectedUser()
	if !connected {
		return
	}

	switch ev := ev.(type) {
	case core.TypingStartEvent:
		if s.random() >= s.opts.ReplyProbability {
			return
		}
		s.reply(userID, ev.ConversationID)
	case core.TypingStopEvent:
	default:
		s.logger.Debug(fmt.Sprintf("send: ignored %s", ev.EventType()))
	}
}

// SimulateMessageDelivered acknowledges a message as delivered then read.
func (s *Simulator) SimulateMessageDelivered(messageID string) {
	s.after(s.opts.DeliveredDelay, func() {
		s.emit(core.MessageStatusEvent{MessageID: messageID, Status: core.MessageDelivered})
		s.after(s.opts.ReadDelay, func() {
			s.emit(core.MessageStatusEvent{MessageID: messageID, Status: core.MessageRead})
		})
	})
}

// reply makes a random peer of the conversation type then send a message.
// Only one reply per conversation is in flight at a time.
func (s *Simulator) reply(userID, conversationID string) {
	var conv core.Conversation
	found := false
	for _, c := range s.backend.ConversationsOf(userID) {
		if c.ID == conversationID {
			conv, found = c, true
			break
		}
	}
	if !found {
		return
	}
	peers := conv.Peers(userID)
	if len(peers) == 0 {
		return
	}

	s.mu.Lock()
	if s.replying[conversationID] {
		s.mu.Unlock()
		return
	}
	s.replying[conversationID] = true
	s.mu.Unlock()

	peer := peers[s.intn(len(peers))]
	content := replies[s.intn(len(replies))]

	s.after(s.latency(), func() {
		s.emit(core.TypingStartEvent{ConversationID: conversationID, UserID: peer})
		s.after(s.opts.TypingDuration, func() {
			s.mu.Lock()
			delete(s.replying, conversationID)
			s.mu.Unlock()

			s.emit(core.TypingStopEvent{ConversationID: conversationID, UserID: peer})
			m, err := s.backend.AppendMessage(core.Message{
				ConversationID: conversationID,
				SenderID:       peer,
				Content:        content,
				Status:         core.MessageSent,
			})
			if err != nil {
				s.logger.Error(fmt.Sprintf("reply: AppendMessage: %v", err))
				return
			}
			s.emit(core.MessageNewEvent{Message: m})
		})
	})
}

func (s *Simulator) pushIncoming() {
	userID, ok := s.connectedUser()
	if !ok {
		return
	}
	conversations := s.backend.ConversationsOf(userID)
	if len(conversations) == 0 {
		return
	}
	conv := conversations[s.intn(len(conversations))]
	s.reply(userID, conv.ID)
}

func (s *Simulator) flipPresence() {
	userID, ok := s.connectedUser()
	if !ok {
		return
	}
	var candidates []string
	for _, id := range s.backend.UserIDs() {
		if id != userID {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return
	}
	peer := candidates[s.intn(len(candidates))]
	status := presenceStates[s.intn(len(presenceStates))]
	s.backend.SetUserStatus(peer, status)
	s.emit(core.PresenceEvent{UserID: peer, Status: status})
}

func (s *Simulator) connectedUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.status == core.Connected
}

// after runs fn once d has elapsed, unless the connection it was scheduled on
// has ended by then.
func (s *Simulator) after(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == core.Disconnected {
		return
	}
	session := s.session
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[t]
		delete(s.timers, t)
		live = live && s.session == session && s.status != core.Disconnected
		s.mu.Unlock()
		if live {
			fn()
		}
	})
	s.timers[t] = struct{}{}
}

// every runs fn periodically until stop is closed.
func (s *Simulator) every(interval time.Duration, stop <-chan struct{}, fn func()) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (s *Simulator) latency() time.Duration {
	d := s.opts.MinLatency
	if s.opts.MaxLatency > s.opts.MinLatency {
		d += time.Duration(s.intn(int(s.opts.MaxLatency - s.opts.MinLatency)))
	}
	return d
}

func (s *Simulator) random() float64 {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Float64()
}

func (s *Simulator) intn(n int) int {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Intn(n)
}
