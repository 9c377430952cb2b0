// Package eventbus fans engine changes out to observers that must never slow
// the engine down.
package eventbus

import (
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber buffer used when New is given zero.
const DefaultBuffer = 8

// Bus is a non-blocking publish/subscribe bus for values of type T. A
// subscriber whose buffer is full misses the value; the miss is counted.
type Bus[T any] struct {
	buffer  int
	dropped atomic.Uint64

	mu     sync.RWMutex
	subs   []chan T
	closed bool
}

// New returns a bus whose subscribers buffer up to buffer values.
func New[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus[T]{buffer: buffer}
}

// Publish offers v to every subscriber and returns how many missed it.
func (b *Bus[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	missed := 0
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			missed++
		}
	}
	if missed > 0 {
		b.dropped.Add(uint64(missed))
	}
	return missed
}

// Subscribe returns a new subscription. On a closed bus the channel is
// already closed.
func (b *Bus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe closes sub. Unknown or already closed subscriptions are ignored.
func (b *Bus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.subs, func(ch chan T) bool { return ch == sub })
	if i < 0 {
		return
	}
	close(b.subs[i])
	b.subs = slices.Delete(b.subs, i, i+1)
}

// Subscribers reports the number of live subscriptions.
func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped reports how many deliveries were missed since the bus was created.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }

// Close closes every subscription. Later publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
