// Package events provides a synchronous in-process publish/subscribe bus
// keyed by subject id. It is independent of any UI framework's reactivity
// system so the same core can back a web dashboard, a terminal view, or a
// headless test harness identically.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Subscriber handles published values for one subject.
type Subscriber[T any] func(value T)

// Loader fetches the current value for a subject so a late subscriber is
// not left stale. It returns false if the subject does not exist.
type Loader[T any] func(key string) (T, bool)

// Bus is a per-subject subscriber registry with synchronous delivery.
//
// Delivery happens on the caller's stack in registration order. A subscriber
// panicking is isolated and logged: it never prevents later subscribers from
// being invoked and never propagates to the publisher. Subscribers should be
// cheap; expensive work belongs on the subscriber's own scheduling.
type Bus[T any] struct {
	mu      sync.RWMutex
	subs    map[string][]*subscription[T]
	allSubs []*wildcardSubscription[T]
	loader  Loader[T]
	logger  zerolog.Logger

	// OnPanic, if set, is invoked once per recovered subscriber panic.
	// Set it before the bus is shared between goroutines.
	OnPanic func()
}

type subscription[T any] struct {
	fn Subscriber[T]
}

type wildcardSubscription[T any] struct {
	fn func(key string, value T)
}

// NewBus creates a bus. loader may be nil, in which case new subscribers
// receive no immediate replay.
func NewBus[T any](loader Loader[T], logger zerolog.Logger) *Bus[T] {
	return &Bus[T]{
		subs:   make(map[string][]*subscription[T]),
		loader: loader,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers fn for a subject and returns a function that
// deregisters it. If the subject currently exists, fn is invoked once
// immediately with the current value before any subsequent publish.
func (b *Bus[T]) Subscribe(key string, fn Subscriber[T]) func() {
	sub := &subscription[T]{fn: fn}

	b.mu.Lock()
	b.subs[key] = append(b.subs[key], sub)
	b.mu.Unlock()

	if b.loader != nil {
		if value, ok := b.loader(key); ok {
			b.deliver(key, sub, value)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(key, sub)
		})
	}
}

// SubscribeAll registers fn for every subject. New subscribers receive no
// replay; they see publishes from the moment of subscription onward. Used
// by persistence and monitoring sinks that track the whole registry.
func (b *Bus[T]) SubscribeAll(fn func(key string, value T)) func() {
	sub := &wildcardSubscription[T]{fn: fn}

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.allSubs {
				if s == sub {
					b.allSubs = append(b.allSubs[:i:i], b.allSubs[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers value to every subscriber of key, synchronously, in
// registration order. Keyed subscribers are notified before all-subject
// subscribers.
func (b *Bus[T]) Publish(key string, value T) {
	b.mu.RLock()
	subs := make([]*subscription[T], len(b.subs[key]))
	copy(subs, b.subs[key])
	allSubs := make([]*wildcardSubscription[T], len(b.allSubs))
	copy(allSubs, b.allSubs)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(key, sub, value)
	}
	for _, sub := range allSubs {
		b.deliver(key, &subscription[T]{fn: func(v T) { sub.fn(key, v) }}, value)
	}
}

// SubscriberCount returns the number of active subscribers for a subject.
func (b *Bus[T]) SubscriberCount(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[key])
}

// deliver invokes one subscriber, isolating panics so a broken callback
// cannot corrupt the publisher or starve other subscribers.
func (b *Bus[T]) deliver(key string, sub *subscription[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("subject", key).
				Interface("panic", r).
				Msg("Subscriber panicked during delivery")
			if b.OnPanic != nil {
				b.OnPanic()
			}
		}
	}()

	sub.fn(value)
}

func (b *Bus[T]) unsubscribe(key string, target *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[key]
	for i, sub := range subs {
		if sub == target {
			b.subs[key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
}
