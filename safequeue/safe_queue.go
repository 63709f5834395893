// Package safequeue provides a bounded, thread-safe FIFO queue. A push into
// a full queue evicts the oldest entries, so pushes never block and never
// fail; readers take everything at once with an atomic drain. All operations
// hold a single mutex for their full duration, so no caller ever observes a
// partially-updated queue.
package safequeue

import "sync"

// DefaultMaxSize is the queue capacity used when none is specified.
const DefaultMaxSize = 10000

// SafeQueue is a bounded FIFO queue that is safe for use by multiple
// goroutines. Entries are ordered by arrival; when a push would exceed the
// maximum size, the oldest entries are evicted first.
//
// SafeQueue must not be copied after first use.
type SafeQueue[T any] struct {
	mu      sync.Mutex
	items   []T
	maxSize int
}

// NewSafeQueue returns a new empty SafeQueue with the given maximum size.
// A maxSize of zero or less falls back to DefaultMaxSize.
//
// Parameters:
//   - maxSize: Maximum number of entries retained before eviction
//
// Returns:
//   - A pointer to a new SafeQueue[T]
func NewSafeQueue[T any](maxSize int) *SafeQueue[T] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &SafeQueue[T]{maxSize: maxSize}
}

// Push appends v to the queue. If the queue is full, the oldest entries are
// evicted until the size is back under the maximum. Push never blocks and
// never fails.
//
// Parameters:
//   - v: The value to append
func (q *SafeQueue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, v)
	q.trimLocked()
}

// PushAll appends every value in vs, in order, under a single lock
// acquisition. Eviction behaves as with Push.
//
// Parameters:
//   - vs: The values to append; not retained
func (q *SafeQueue[T]) PushAll(vs []T) {
	if len(vs) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, vs...)
	q.trimLocked()
}

// DrainAll atomically removes and returns every queued entry in arrival
// order, leaving the queue empty. Pushes running concurrently land entirely
// before or entirely after the drain.
//
// Returns:
//   - The drained entries, or nil if the queue was empty
func (q *SafeQueue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Clear empties the queue without returning its contents.
func (q *SafeQueue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Len returns the number of queued entries.
func (q *SafeQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MaxSize returns the current maximum size.
func (q *SafeQueue[T]) MaxSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxSize
}

// SetMaxSize changes the maximum size, evicting the oldest entries if the
// queue currently holds more than the new maximum. A value of zero or less
// falls back to DefaultMaxSize.
//
// Parameters:
//   - maxSize: The new maximum number of retained entries
func (q *SafeQueue[T]) SetMaxSize(maxSize int) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.maxSize = maxSize
	q.trimLocked()
}

// trimLocked evicts oldest entries until the size is within maxSize.
// Caller must hold q.mu.
func (q *SafeQueue[T]) trimLocked() {
	if over := len(q.items) - q.maxSize; over > 0 {
		q.items = append(q.items[:0], q.items[over:]...)
	}
}
