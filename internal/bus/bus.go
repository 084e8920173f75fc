// Package bus provides a small bounded publish/subscribe channel. It
// replaces inline callback lists so the tick pipeline never invokes
// subscriber code directly: each subscriber drains its own buffered
// channel, and a full channel drops events for that subscriber only.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus fans values out to any number of subscribers without blocking the
// publisher.
type Bus[T any] struct {
	buffer int
	logger *slog.Logger

	mu      sync.RWMutex
	subs    map[int]chan T
	nextID  int
	closed  bool
	dropped atomic.Uint64
}

// New creates a bus whose subscriber channels hold up to buffer events.
func New[T any](buffer int, logger *slog.Logger) *Bus[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus[T]{
		buffer: buffer,
		logger: logger,
		subs:   make(map[int]chan T),
	}
}

// Subscribe registers a new subscriber and returns its channel together
// with an unsubscribe function. The channel is closed on unsubscribe or
// when the bus is closed.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish delivers v to every subscriber whose channel has room. A slow
// subscriber loses the event; the publisher and the other subscribers
// are unaffected.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			dropped := b.dropped.Add(1)
			if dropped%1000 == 1 {
				b.logger.Warn("bus subscriber queue full, dropping event", "total_dropped", dropped)
			}
		}
	}
}

// Dropped returns the total number of events dropped across all
// subscribers since the bus was created.
func (b *Bus[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Publish becomes a no-op.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
