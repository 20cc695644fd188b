// Package events fans out state changes to subscribers.
package events

import (
	"sync"
)

// Broadcaster fans out values to all subscribers via buffered channels.
// Publish never blocks: when a subscriber's buffer is full its oldest pending
// value is discarded in favour of the newest one.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	buffer int
	closed bool
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 16
	}
	return &Broadcaster[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// Publish sends v to all subscribers.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel that receives values until Unsubscribe or Close is called.
func (b *Broadcaster[T]) Subscribe() chan T {
	return b.SubscribeWith(nil)
}

// SubscribeWith registers a channel whose first value is produced by seed.
// seed runs under the broadcaster lock so no Publish can interleave between
// the seeded value and later ones.
func (b *Broadcaster[T]) SubscribeWith(seed func() (T, bool)) chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	if seed != nil {
		if v, ok := seed(); ok {
			ch <- v
		}
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Close closes every subscriber channel. Later subscriptions are closed immediately.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		// full: drop the oldest pending value
		select {
		case <-ch:
		default:
		}
	}
}
