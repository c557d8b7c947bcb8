package event

import (
	"reflect"
	"sync"
)

type queued struct {
	kind reflect.Type
	ev   any
}

// Bus is a double-buffered event bus. Events emitted in tick N are handled
// in tick N+1, in the order they were emitted regardless of type.
type Bus struct {
	mu       sync.Mutex // guards handlers only; Emit and DispatchAll stay on the loop goroutine
	front    []queued
	back     []queued
	handlers map[reflect.Type][]func(any)
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]func(any))}
}

func kindOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues ev for the next dispatch.
func Emit[T any](b *Bus, ev T) {
	b.back = append(b.back, queued{kind: kindOf[T](), ev: ev})
}

// Subscribe registers fn for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := kindOf[T]()
	b.handlers[k] = append(b.handlers[k], func(v any) { fn(v.(T)) })
}

// SwapBuffers makes the events emitted since the last swap dispatchable and
// starts a fresh back buffer.
func (b *Bus) SwapBuffers() {
	clear(b.front)
	b.front, b.back = b.back, b.front[:0]
}

// DispatchAll hands every front-buffer event to the handlers of its type.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	handlers := b.handlers
	b.mu.Unlock()
	for _, q := range b.front {
		for _, h := range handlers[q.kind] {
			h(q.ev)
		}
	}
}

// Pending returns the number of events waiting for the next swap.
func (b *Bus) Pending() int { return len(b.back) }
