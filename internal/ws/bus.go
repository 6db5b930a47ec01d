package ws

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Bus is a last-value-replay publish/subscribe primitive. Each channel uses
// one Bus per payload kind to fan incoming messages out to registered
// consumers; subscribers that arrive after data has already flowed receive
// the cached last value immediately instead of waiting for the next push.
//
// Publishing iterates over a snapshot of the listener set, so a listener may
// unsubscribe itself (or anyone else) from inside its callback. A panicking
// listener is recovered and logged without affecting the remaining listeners.
type Bus[T any] struct {
	mu        sync.Mutex
	listeners map[int]func(T)
	nextID    int
	last      T
	hasLast   bool
	onPanic   func()
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{listeners: make(map[int]func(T))}
}

// SetPanicHook installs a callback invoked whenever a listener panics,
// in addition to the recover-and-log handling. Used for metrics.
func (b *Bus[T]) SetPanicHook(fn func()) {
	b.mu.Lock()
	b.onPanic = fn
	b.mu.Unlock()
}

// Subscribe registers cb and returns an idempotent unsubscribe function.
// If a last value is cached, cb is invoked synchronously with it before
// Subscribe returns.
func (b *Bus[T]) Subscribe(cb func(T)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = cb
	replay, hasReplay := b.last, b.hasLast
	b.mu.Unlock()

	if hasReplay {
		b.invoke(cb, replay)
	}

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish caches v as the new last value and delivers it to every listener
// registered at the time of the call.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	b.last = v
	b.hasLast = true
	snapshot := make([]func(T), 0, len(b.listeners))
	for _, cb := range b.listeners {
		snapshot = append(snapshot, cb)
	}
	b.mu.Unlock()

	for _, cb := range snapshot {
		b.invoke(cb, v)
	}
}

// Last returns the cached last value, if any.
func (b *Bus[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

func (b *Bus[T]) invoke(cb func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("subscriber callback panicked")
			b.mu.Lock()
			hook := b.onPanic
			b.mu.Unlock()
			if hook != nil {
				hook()
			}
		}
	}()
	cb(v)
}
