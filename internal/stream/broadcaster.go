package stream

import (
	"context"
	"sync"
)

// Broadcaster fans out values from one source to N listeners.
// Used for PCM frames and for encoded engine snapshots.
type Broadcaster[T any] struct {
	buffer int

	mu        sync.RWMutex
	listeners map[*Listener[T]]struct{}
}

// Listener receives values from the broadcaster.
type Listener[T any] struct {
	C    chan T
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener[T]) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a broadcaster whose listeners buffer up to
// buffer values before the broadcaster starts dropping for them.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	return &Broadcaster[T]{
		buffer:    buffer,
		listeners: make(map[*Listener[T]]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster[T]) Subscribe() *Listener[T] {
	l := &Listener[T]{
		C:    make(chan T, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster[T]) Unsubscribe(l *Listener[T]) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster[T]) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands v to every listener without blocking.
// Slow listeners miss values rather than holding up the rest.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- v:
		default:
			// listener too slow, drop to keep broadcast moving
		}
	}
	b.mu.RUnlock()
}

// Run reads values from source and publishes them until ctx is done or
// source is closed.
func (b *Broadcaster[T]) Run(ctx context.Context, source <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-source:
			if !ok {
				return
			}
			b.Publish(v)
		}
	}
}

// Pipe republishes every value from src on dst after converting it.
// Values convert returns false for are skipped. Pipe holds a single
// subscription on src, so the conversion runs once per value no matter how
// many listeners dst has.
func Pipe[A, B any](ctx context.Context, src *Broadcaster[A], dst *Broadcaster[B], convert func(A) (B, bool)) {
	l := src.Subscribe()
	defer src.Unsubscribe(l)
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-l.C:
			if out, ok := convert(v); ok {
				dst.Publish(out)
			}
		}
	}
}
