// Package hub fans state changes out to registered observers.
package hub

import "sync"

type Listener[T any] func(T)

type subscription[T any] struct {
	fn Listener[T]
}

type Hub[T any] struct {
	mu        sync.RWMutex
	listeners map[*subscription[T]]struct{}
	order     []*subscription[T]
}

func New[T any]() *Hub[T] {
	return &Hub[T]{listeners: make(map[*subscription[T]]struct{})}
}

// Register adds fn and returns a function that removes it again.
func (h *Hub[T]) Register(fn Listener[T]) (unregister func()) {
	sub := &subscription[T]{fn: fn}

	h.mu.Lock()
	h.listeners[sub] = struct{}{}
	h.order = append(h.order, sub)
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unregister(sub) })
	}
}

func (h *Hub[T]) unregister(sub *subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.listeners[sub]; !ok {
		return
	}
	delete(h.listeners, sub)
	for i, s := range h.order {
		if s == sub {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Broadcast calls every listener in registration order. It must not be
// called while the caller holds a lock a listener could need.
func (h *Hub[T]) Broadcast(value T) {
	h.mu.RLock()
	subs := make([]*subscription[T], len(h.order))
	copy(subs, h.order)
	h.mu.RUnlock()

	for _, s := range subs {
		s.fn(value)
	}
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}
