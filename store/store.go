package store

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/putto11262002/chatter-client/core"
)

// Change describes a state transition.
type Change struct {
	Action Action
	Prev   State
	Next   State
}

// Store holds the state of a session and serializes every transition through Reduce.
// Each dispatch runs to completion before the next one starts.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners core.Listeners[Change]
	logger    *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithState sets the initial state.
func WithState(state State) Option {
	return func(s *Store) {
		s.state = state
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		state:  NewState(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies the action and reports whether the state changed.
func (s *Store) Dispatch(a Action) bool {
	return s.DispatchIf(nil, a)
}

// DispatchIf applies the action only if pred holds for the current state.
// The check and the transition are atomic with respect to other dispatches.
// A nil pred always holds.
func (s *Store) DispatchIf(pred func(State) bool, a Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pred != nil && !pred(s.state) {
		return false
	}
	prev := s.state
	next, changed := reduce(prev, a)
	if !changed {
		return false
	}
	s.state = next
	s.logger.Debug(fmt.Sprintf("dispatch: %s", a.Type()))
	s.listeners.Emit(Change{Action: a, Prev: prev, Next: next})
	return true
}

// Subscribe registers a listener called after every state change.
// Listeners run inside the dispatch, they must return quickly and must not dispatch.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	return s.listeners.Add(fn)
}
