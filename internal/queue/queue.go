// Package queue holds callers waiting on a single shared outcome.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrRejected is the rejection reason used when Reject is called with nil.
var ErrRejected = errors.New("promise rejected")

// Promise is a one-shot result that becomes available when its queue settles.
type Promise[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Done is closed once the promise is settled
func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the promise settles or ctx is done. Abandoning a wait
// does not affect the promise or other waiters.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Promise[T]) settle(value T, err error) {
	p.value = value
	p.err = err
	close(p.done)
}

// PromiseQueue is an ordered list of pending promises settled all at once.
// After settling the queue is empty and can be reused.
type PromiseQueue[T any] struct {
	mu      sync.Mutex
	pending []*Promise[T]
}

func New[T any]() *PromiseQueue[T] {
	return &PromiseQueue[T]{}
}

// Enqueue appends a new pending promise
func (q *PromiseQueue[T]) Enqueue() *Promise[T] {
	p := newPromise[T]()
	q.mu.Lock()
	q.pending = append(q.pending, p)
	q.mu.Unlock()
	return p
}

// Resolve fulfils every pending promise with value, in enqueue order
func (q *PromiseQueue[T]) Resolve(value T) {
	for _, p := range q.drain() {
		p.settle(value, nil)
	}
}

// Reject fails every pending promise with err, in enqueue order
func (q *PromiseQueue[T]) Reject(err error) {
	if err == nil {
		err = ErrRejected
	}
	var zero T
	for _, p := range q.drain() {
		p.settle(zero, err)
	}
}

// Len returns the number of pending promises
func (q *PromiseQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain detaches the pending list so promises enqueued while settling
// wait for the next round.
func (q *PromiseQueue[T]) drain() []*Promise[T] {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	return pending
}
