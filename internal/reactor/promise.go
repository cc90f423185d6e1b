package reactor

import "sync"

// Promise is a single-assignment future. It is resolved at most once,
// either with a value (Resolve) or with nothing (Finish), and is safe to
// complete and await from different goroutines.
type Promise[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	ok   bool
}

// NewPromise creates an unresolved promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve completes the promise with a value. Later completions are ignored.
func (p *Promise[T]) Resolve(v T) {
	p.once.Do(func() {
		p.val = v
		p.ok = true
		close(p.done)
	})
}

// Finish completes the promise with no value. Consumers observe ok == false,
// the end-of-stream marker.
func (p *Promise[T]) Finish() {
	p.once.Do(func() {
		close(p.done)
	})
}

// Await blocks the calling goroutine until the promise completes.
func (p *Promise[T]) Await() (T, bool) {
	<-p.done
	return p.val, p.ok
}

// Done returns a channel that is closed when the promise completes.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Value returns the result without blocking. ok is false while the promise
// is unresolved and after Finish.
func (p *Promise[T]) Value() (T, bool) {
	select {
	case <-p.done:
		return p.val, p.ok
	default:
		var zero T
		return zero, false
	}
}
