package core

import (
	"context"
	"sync"
)

// Observers is a typed publish/subscribe list. The zero value is ready to
// use. Handlers run synchronously in subscription order on the publishing
// goroutine, outside the internal lock.
type Observers[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	order    []uint64
	handlers map[uint64]func(context.Context, T)
}

// Subscribe registers fn and returns its disposer. The disposer is safe to
// call more than once.
func (o *Observers[T]) Subscribe(fn func(context.Context, T)) func() {
	if o == nil || fn == nil {
		return func() {}
	}
	o.mu.Lock()
	if o.handlers == nil {
		o.handlers = make(map[uint64]func(context.Context, T))
	}
	o.nextID++
	id := o.nextID
	o.handlers[id] = fn
	o.order = append(o.order, id)
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.unsubscribe(id)
		})
	}
}

func (o *Observers[T]) unsubscribe(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.handlers[id]; !ok {
		return
	}
	delete(o.handlers, id)
	for i, candidate := range o.order {
		if candidate == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// Publish delivers event to a snapshot of the current subscribers.
func (o *Observers[T]) Publish(ctx context.Context, event T) {
	if o == nil {
		return
	}
	o.mu.Lock()
	handlers := make([]func(context.Context, T), 0, len(o.order))
	for _, id := range o.order {
		handlers = append(handlers, o.handlers[id])
	}
	o.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, event)
	}
}

func (o *Observers[T]) Len() int {
	if o == nil {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.order)
}

// Clear drops every subscriber. Disposers handed out earlier become no-ops.
func (o *Observers[T]) Clear() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers = nil
	o.order = nil
}

// EventBus carries the notifications that cross from the network layer to
// presentation code.
type EventBus struct {
	SessionExpired Observers[SessionExpiredEvent]
	LoggedOut      Observers[LoggedOutEvent]
}

func NewEventBus() *EventBus {
	return &EventBus{}
}
