// Package queue provides the FIFO message queue that decouples reactor
// callbacks (producers) from consumer goroutines. One queue supports both
// blocking receives and future-based asynchronous receives over the same
// ordered sequence, with a clean shutdown protocol: after Shutdown,
// consumers drain whatever is buffered and then observe end-of-stream.
package queue

import (
	"errors"
	"sync"

	"github.com/smazurov/procmux/internal/reactor"
)

// ErrShutdown is returned by Put on a queue that has been shut down.
// A shut-down queue is never resurrected.
var ErrShutdown = errors.New("queue: shut down")

// Queue is an ordered producer/consumer queue. The invariant maintained
// throughout is that the item buffer and the waiter list are never both
// non-empty: every Put and every Async pairs them off immediately.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	waiters []*reactor.Promise[T]
	down    bool
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Put appends v and hands it to the longest-waiting consumer, if any.
// Putting into a shut-down queue returns ErrShutdown.
func (q *Queue[T]) Put(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.down {
		return ErrShutdown
	}
	q.items = append(q.items, v)
	q.pairLocked()
	return nil
}

// Async returns a promise for the next item. Promises resolve in the order
// they were requested. On a shut-down queue the promise resolves
// immediately, from the remaining buffer or to end-of-stream.
func (q *Queue[T]) Async() *reactor.Promise[T] {
	p := reactor.NewPromise[T]()

	q.mu.Lock()
	if q.down {
		if len(q.items) > 0 {
			v := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			p.Resolve(v)
			return p
		}
		q.mu.Unlock()
		p.Finish()
		return p
	}
	q.waiters = append(q.waiters, p)
	q.pairLocked()
	q.mu.Unlock()
	return p
}

// Get blocks the calling goroutine until an item arrives or the queue is
// shut down and drained. ok == false is the end-of-stream marker.
func (q *Queue[T]) Get() (T, bool) {
	return q.Async().Await()
}

// Shutdown marks the queue closed and resolves every queued waiter:
// oldest waiter gets oldest buffered item until one side runs out, then
// the rest resolve to end-of-stream. Idempotent.
func (q *Queue[T]) Shutdown() {
	q.mu.Lock()
	if q.down {
		q.mu.Unlock()
		return
	}
	q.down = true
	q.pairLocked()
	rest := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	for _, p := range rest {
		p.Finish()
	}
}

// Len returns the number of buffered, unconsumed items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsShutdown reports whether Shutdown has been called.
func (q *Queue[T]) IsShutdown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.down
}

// pairLocked matches buffered items with waiters FIFO-to-FIFO. Resolving
// a promise only closes its channel, so holding the lock here is safe.
func (q *Queue[T]) pairLocked() {
	for len(q.items) > 0 && len(q.waiters) > 0 {
		p := q.waiters[0]
		q.waiters = q.waiters[1:]
		v := q.items[0]
		q.items = q.items[1:]
		p.Resolve(v)
	}
}
