package queue

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned by Pop once the queue is closed and drained.
	ErrClosed = errors.New("queue closed")
	// ErrNotEmpty is returned by Resize while items are buffered.
	ErrNotEmpty = errors.New("queue must be empty to resize")
	// ErrInvalidCapacity is returned for capacities below one.
	ErrInvalidCapacity = errors.New("queue capacity must be at least 1")
)

// Bounded is a thread-safe FIFO with a fixed capacity.
type Bounded[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	// ring buffer, len(items) is the capacity
	items  []T
	head   int
	size   int
	closed bool
}

// New creates a queue holding at most capacity items. It panics if capacity
// is below one.
func New[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("queue: %v: %d", ErrInvalidCapacity, capacity))
	}
	q := &Bounded[T]{items: make([]T, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Resize sets the capacity. The queue must be empty.
func (q *Bounded[T]) Resize(capacity int) error {
	if capacity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size != 0 {
		return fmt.Errorf("%w: %d items buffered", ErrNotEmpty, q.size)
	}
	q.items = make([]T, capacity)
	q.head = 0
	// a producer may be parked on the old capacity
	q.notFull.Broadcast()
	return nil
}

// CanPush reports whether a Push would not block right now.
func (q *Bounded[T]) CanPush() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size < len(q.items) && !q.closed
}

// Push appends v, blocking while the queue is full. It returns false without
// inserting if the queue is or becomes closed.
func (q *Bounded[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == len(q.items) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}

	q.items[(q.head+q.size)%len(q.items)] = v
	q.size++
	q.notEmpty.Signal()
	return true
}

// CanPop reports whether items are buffered.
func (q *Bounded[T]) CanPop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size > 0
}

// Pop removes the oldest item, blocking while the queue is empty and open.
// Buffered items are returned even after Close; ErrClosed is returned only
// when the queue is both closed and empty.
func (q *Bounded[T]) Pop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	var zero T
	if q.size == 0 {
		return zero, ErrClosed
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	q.notFull.Signal()
	return v, nil
}

// Close stops further pushes and wakes all blocked callers. It is safe to
// call more than once.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Closed reports whether Close has been called.
func (q *Bounded[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of buffered items. Under concurrency it is a
// snapshot only.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the capacity.
func (q *Bounded[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
