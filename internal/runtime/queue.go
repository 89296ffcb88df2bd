package runtime

import (
	"slices"
	"sync"
)

// Queue is a FIFO with an optional size limit. When full, enqueueing evicts
// the oldest item. It is safe for concurrent use.
type Queue[T any] struct {
	mu    sync.RWMutex
	items []T
	limit int
}

// NewQueue creates a queue holding at most limit items. A limit <= 0 means unbounded.
func NewQueue[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: limit}
}

// Enqueue appends item and returns the evicted items, if any.
func (q *Queue[T]) Enqueue(item T) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	if q.limit <= 0 || len(q.items) <= q.limit {
		return nil
	}
	n := len(q.items) - q.limit
	evicted := slices.Clone(q.items[:n])
	q.items = slices.Clone(q.items[n:])
	return evicted
}

// Dequeue removes and returns the oldest item.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// PeekHead returns the oldest item without removing it.
func (q *Queue[T]) PeekHead() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[0], true
}

// PeekTail returns the newest item without removing it.
func (q *Queue[T]) PeekTail() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[len(q.items)-1], true
}

// Len returns the number of items.
func (q *Queue[T]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Items returns a copy of the items, oldest first.
func (q *Queue[T]) Items() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Clone(q.items)
}

// Clear removes every item.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
