package transport

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/pkg/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTimeout = time.Second

var quickOptions = Options{
	MinLatency:       time.Millisecond,
	MaxLatency:       5 * time.Millisecond,
	ReplyProbability: 1,
	TypingDuration:   10 * time.Millisecond,
	DeliveredDelay:   10 * time.Millisecond,
	ReadDelay:        10 * time.Millisecond,
}

// recorder collects every event of the given types in arrival order.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func record(sim *Simulator, types ...core.EventType) *recorder {
	r := &recorder{}
	for _, t := range types {
		sim.On(t, r.add)
	}
	return r
}

func (r *recorder) add(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type simFixture struct {
	t        *testing.T
	backend  *mockapi.Backend
	sim      *Simulator
	tearDown func()
}

func newSimFixture(t *testing.T, opts Options) *simFixture {
	backend := mockapi.New(mockapi.DefaultSeed(time.Now()), mockapi.WithLatency(0, 0))
	sim := New(backend, WithOptions(opts), WithRand(rand.New(rand.NewSource(7))))
	return &simFixture{
		t:       t,
		backend: backend,
		sim:     sim,
		tearDown: func() {
			sim.Disconnect()
			sim.Wait()
		},
	}
}

func (f *simFixture) connect() {
	f.sim.Connect("user-me")
	require.Eventually(f.t, func() bool {
		return f.sim.Status() == core.Connected
	}, baseTimeout, baseTimeout/50)
}

func TestConnect(t *testing.T) {
	opts := quickOptions
	opts.ConnectDelay = 20 * time.Millisecond
	f := newSimFixture(t, opts)
	defer f.tearDown()
	r := record(f.sim, core.ConnectionEventType)

	f.sim.Connect("user-me")
	assert.Equal(t, []core.Event{core.ConnectionEvent{Status: core.Connecting}}, r.all(), "connecting is emitted synchronously")
	assert.Equal(t, core.Connecting, f.sim.Status())

	f.sim.Connect("user-me")
	assert.Equal(t, 1, r.len(), "connecting twice is a no-op")

	require.Eventually(t, func() bool { return r.len() == 2 }, baseTimeout, baseTimeout/50)
	assert.Equal(t, core.Connected, f.sim.Status())
	assert.Equal(t, []core.Event{
		core.ConnectionEvent{Status: core.Connecting},
		core.ConnectionEvent{Status: core.Connected},
	}, r.all())

	f.sim.Disconnect()
	f.sim.Disconnect()
	assert.Equal(t, core.Disconnected, f.sim.Status())
	assert.Equal(t, core.ConnectionEvent{Status: core.Disconnected}, r.all()[2])
	assert.Equal(t, 3, r.len(), "disconnecting twice is a no-op")
}

func TestDisconnectWhileConnecting(t *testing.T) {
	opts := quickOptions
	opts.ConnectDelay = 20 * time.Millisecond
	f := newSimFixture(t, opts)
	defer f.tearDown()
	r := record(f.sim, core.ConnectionEventType)

	f.sim.Connect("user-me")
	f.sim.Disconnect()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, core.Disconnected, f.sim.Status())
	assert.Equal(t, []core.Event{
		core.ConnectionEvent{Status: core.Connecting},
		core.ConnectionEvent{Status: core.Disconnected},
	}, r.all())
}

func TestUnsubscribeRemovesOneHandler(t *testing.T) {
	f := newSimFixture(t, quickOptions)
	defer f.tearDown()

	var mu sync.Mutex
	calls := map[string]int{}
	handler := func(name string) func(core.Event) {
		return func(core.Event) {
			mu.Lock()
			defer mu.Unlock()
			calls[name]++
		}
	}
	unsubscribeA := f.sim.On(core.ConnectionEventType, handler("a"))
	f.sim.On(core.ConnectionEventType, handler("b"))

	unsubscribeA()
	unsubscribeA()
	f.sim.Connect("user-me")

	// connecting then connected
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls["b"] == 2
	}, baseTimeout, baseTimeout/50)
	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, calls, "a")
}

func TestSendWhenDisconnected(t *testing.T) {
	f := newSimFixture(t, quickOptions)
	defer f.tearDown()
	r := record(f.sim, core.TypingStartEventType, core.TypingStopEventType, core.MessageNewEventType)

	assert.NotPanics(t, func() {
		f.sim.Send(core.TypingStartEvent{ConversationID: "conv-1", UserID: "user-me"})
	})
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, r.len())
}

func TestSimulateMessageDelivered(t *testing.T) {
	f := newSimFixture(t, quickOptions)
	defer f.tearDown()
	f.connect()
	r := record(f.sim, core.MessageStatusEventType)

	f.sim.SimulateMessageDelivered("m-1")
	require.Eventually(t, func() bool { return r.len() == 2 }, baseTimeout, baseTimeout/50)
	assert.Equal(t, []core.Event{
		core.MessageStatusEvent{MessageID: "m-1", Status: core.MessageDelivered},
		core.MessageStatusEvent{MessageID: "m-1", Status: core.MessageRead},
	}, r.all())
}

func TestTimersDoNotOutliveConnection(t *testing.T) {
	opts := quickOptions
	opts.DeliveredDelay = 30 * time.Millisecond
	f := newSimFixture(t, opts)
	defer f.tearDown()
	f.connect()
	r := record(f.sim, core.MessageStatusEventType, core.TypingStartEventType)

	f.sim.SimulateMessageDelivered("m-1")
	f.sim.Send(core.TypingStartEvent{ConversationID: "conv-1", UserID: "user-me"})
	f.sim.Disconnect()
	f.connect()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, r.len(), "timers of the previous connection never fire")
}

func TestTypingReply(t *testing.T) {
	f := newSimFixture(t, quickOptions)
	defer f.tearDown()
	f.connect()
	r := record(f.sim, core.TypingStartEventType, core.TypingStopEventType, core.MessageNewEventType)

	f.sim.Send(core.TypingStartEvent{ConversationID: "conv-1", UserID: "user-me"})
	f.sim.Send(core.TypingStartEvent{ConversationID: "conv-1", UserID: "user-me"})
	require.Eventually(t, func() bool { return r.len() == 3 }, baseTimeout, baseTimeout/50)

	events := r.all()
	assert.Equal(t, core.TypingStartEvent{ConversationID: "conv-1", UserID: "user-alice"}, events[0])
	assert.Equal(t, core.TypingStopEvent{ConversationID: "conv-1", UserID: "user-alice"}, events[1])
	msg, ok := events[2].(core.MessageNewEvent)
	require.True(t, ok)
	assert.Equal(t, "conv-1", msg.Message.ConversationID)
	assert.Equal(t, "user-alice", msg.Message.SenderID)
	assert.NotEmpty(t, msg.Message.ID)
	assert.Contains(t, replies, msg.Message.Content)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, r.len(), "one reply in flight per conversation")

	conv := f.backend.ConversationsOf("user-me")[0]
	require.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, msg.Message.ID, conv.LastMessage.ID, "the reply is persisted")
}

func TestTypingWithoutReply(t *testing.T) {
	opts := quickOptions
	opts.ReplyProbability = 0
	f := newSimFixture(t, opts)
	defer f.tearDown()
	f.connect()
	r := record(f.sim, core.TypingStartEventType, core.MessageNewEventType)

	f.sim.Send(core.TypingStartEvent{ConversationID: "conv-1", UserID: "user-me"})
	f.sim.Send(core.TypingStopEvent{ConversationID: "conv-1", UserID: "user-me"})
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, r.len())
}

func TestBackgroundActivity(t *testing.T) {
	opts := quickOptions
	opts.PresenceInterval = 5 * time.Millisecond
	opts.IncomingInterval = 5 * time.Millisecond
	f := newSimFixture(t, opts)
	defer f.tearDown()
	presence := record(f.sim, core.PresenceEventType)
	incoming := record(f.sim, core.MessageNewEventType)
	f.connect()

	require.Eventually(t, func() bool {
		return presence.len() > 0 && incoming.len() > 0
	}, baseTimeout, baseTimeout/50)

	for _, ev := range presence.all() {
		p := ev.(core.PresenceEvent)
		assert.NotEqual(t, "user-me", p.UserID, "the current user presence is never simulated")
	}
	for _, ev := range incoming.all() {
		m := ev.(core.MessageNewEvent).Message
		assert.NotEqual(t, "user-me", m.SenderID)
	}

	f.sim.Disconnect()
	f.sim.Wait()
	n := presence.len()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, presence.len(), "background activity stops on disconnect")
}
