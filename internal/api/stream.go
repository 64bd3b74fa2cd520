package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/store"
)

// StateEventType is the type of the envelopes carrying a StateSummary after
// every state change.
const StateEventType core.EventType = "state"

var streamedEvents = []core.EventType{
	core.ConnectionEventType,
	core.MessageNewEventType,
	core.MessageStatusEventType,
	core.TypingStartEventType,
	core.TypingStopEventType,
	core.PresenceEventType,
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream fans the transport events and the state changes of a session out to
// websocket clients. Slow clients miss envelopes rather than block the session.
type Stream struct {
	logger          *slog.Logger
	upgrader        websocket.Upgrader
	WriteStreamSize int

	mu          sync.Mutex
	conns       map[int]*streamConn
	nextID      int
	closed      bool
	unsubscribe []func()
	wg          sync.WaitGroup
}

type StreamOption func(*Stream)

func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = logger
	}
}

func WithCheckOrigin(f func(r *http.Request) bool) StreamOption {
	return func(s *Stream) {
		s.upgrader.CheckOrigin = f
	}
}

// NewStream subscribes to the events of sub and the changes of st.
func NewStream(sub core.Subscriber, st *store.Store, opts ...StreamOption) *Stream {
	s := &Stream{
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		upgrader:        defaultUpgrader,
		WriteStreamSize: 100,
		conns:           make(map[int]*streamConn),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, t := range streamedEvents {
		s.unsubscribe = append(s.unsubscribe, sub.On(t, s.onEvent))
	}
	s.unsubscribe = append(s.unsubscribe, st.Subscribe(s.onChange))
	return s
}

func (s *Stream) onEvent(ev core.Event) {
	env, err := core.NewEnvelope(ev.EventType(), ev)
	if err != nil {
		s.logger.Error(err.Error())
		return
	}
	s.broadcast(env)
}

func (s *Stream) onChange(c store.Change) {
	summary := NewStateSummary(c.Next)
	summary.Action = c.Action.Type()
	env, err := core.NewEnvelope(StateEventType, summary)
	if err != nil {
		s.logger.Error(err.Error())
		return
	}
	s.broadcast(env)
}

func (s *Stream) broadcast(env *core.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		select {
		case c.writeStream <- env:
		default:
			c.logger.Warn(fmt.Sprintf("write stream full, dropping %s", env))
		}
	}
}

// Len returns the number of open connections.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ServeHTTP upgrades the request and streams envelopes until the peer goes
// away or the stream is closed.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(fmt.Sprintf("upgrade: %v", err))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}
	s.nextID++
	id := s.nextID
	c := &streamConn{
		conn:        conn,
		writeStream: make(chan *core.Envelope, s.WriteStreamSize),
		ticker:      time.NewTicker(pingPeriod),
		logger:      s.logger.With(slog.Int("connection", id)),
		notifyDisconnect: func() {
			s.disconnect(id)
		},
	}
	s.conns[id] = c
	s.wg.Add(2)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()
}

func (s *Stream) disconnect(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	if !ok {
		return
	}
	delete(s.conns, id)
	c.close()
}

// Close unsubscribes from the session, closes every connection and waits for
// their loops to exit or ctx to be done.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	for id, c := range s.conns {
		delete(s.conns, id)
		c.close()
	}
	s.mu.Unlock()

	for _, f := range unsubscribe {
		f()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type streamConn struct {
	conn             *websocket.Conn
	writeStream      chan *core.Envelope
	notifyDisconnect func()
	ticker           *time.Ticker
	logger           *slog.Logger
}

// close must be called once, with the stream lock held.
func (c *streamConn) close() {
	close(c.writeStream)
}

// readLoop only serves control frames, the stream does not accept events from
// the peer.
func (c *streamConn) readLoop() {
	defer func() {
		c.notifyDisconnect()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error(fmt.Sprintf("unexpected close: %v", err))
			}
			return
		}
	}
}

func (c *streamConn) writeLoop() {
	defer func() {
		c.ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.writeStream:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Error(fmt.Sprintf("write %s: %v", env, err))
				return
			}
		case <-c.ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error(fmt.Sprintf("writing ping: %v", err))
				return
			}
		}
	}
}
