package core

import (
	"slices"
	"sync"
)

// Listeners is a registry of callbacks that is safe for concurrent usage.
// The zero value is ready to use.
type Listeners[T any] struct {
	mu   sync.RWMutex
	next int
	fns  []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

// Add registers fn and returns a function that removes exactly this registration.
// Calling the returned function more than once has no effect.
func (l *Listeners[T]) Add(fn func(T)) (remove func()) {
	l.mu.Lock()
	l.next++
	id := l.next
	l.fns = append(l.fns, listener[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.fns = slices.DeleteFunc(l.fns, func(e listener[T]) bool {
				return e.id == id
			})
		})
	}
}

// Emit calls every registered callback in registration order.
// Callbacks may add or remove registrations while being called.
func (l *Listeners[T]) Emit(v T) {
	l.mu.RLock()
	fns := slices.Clone(l.fns)
	l.mu.RUnlock()
	for _, e := range fns {
		e.fn(v)
	}
}

func (l *Listeners[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fns)
}
