// SPDX-License-Identifier: GPL-3.0-or-later

// Package workqueue implements the bounded multi-producer multi-consumer
// queue a module's dedicated worker thread drains (see internal/module):
// FIFO per producer, arbitrary interleaving across producers, and
// cooperative shutdown via a [Item] TERM signal rather than closing the
// channel out from under a blocked sender.
package workqueue

import (
	"context"
	"errors"
)

// ErrFull is returned by [Queue.TryPut] when the queue has no free slot.
var ErrFull = errors.New("workqueue: queue is full")

// ErrClosed is returned by [Queue.Put] and [Queue.TryPut] once [Queue.Close]
// has been called.
var ErrClosed = errors.New("workqueue: queue is closed")

// Queue is a bounded, thread-safe, multi-producer multi-consumer queue of
// [Item] values, backed by a buffered channel. Items from a single
// producer are delivered in the order they were put; items from distinct
// producers may interleave arbitrarily.
type Queue struct {
	items  chan Item
	closed chan struct{}
}

// New returns a [*Queue] with room for capacity items in flight.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		items:  make(chan Item, capacity),
		closed: make(chan struct{}),
	}
}

// Put enqueues item, blocking until there is room, ctx is done, or the
// queue is closed.
func (q *Queue) Put(ctx context.Context, item Item) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.items <- item:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPut enqueues item without blocking, returning [ErrFull] if the queue
// has no free slot and [ErrClosed] if it has been closed.
func (q *Queue) TryPut(item Item) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.items <- item:
		return nil
	default:
		return ErrFull
	}
}

// Get blocks until an item is available, ctx is done, or the queue has
// been drained after [Queue.Close]. ok is false once the queue is closed
// and empty, or when ctx is done — consumers should treat that, or an
// [Item.IsShutdown] item, as their cue to stop.
func (q *Queue) Get(ctx context.Context) (item Item, ok bool) {
	select {
	case it := <-q.items:
		return it, true
	case <-ctx.Done():
		return Item{}, false
	case <-q.closed:
		select {
		case it := <-q.items:
			return it, true
		default:
			return Item{}, false
		}
	}
}

// Close marks the queue closed. Already-enqueued items remain available
// to [Queue.Get]; callers that want a clean shutdown signal should Put a
// TERM [Item] (see [NewSignal]) before or instead of calling Close.
func (q *Queue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}

// Len reports the number of items currently buffered.
func (q *Queue) Len() int {
	return len(q.items)
}
