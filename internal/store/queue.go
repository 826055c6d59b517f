package store

import "sync"

// queue is an unbounded thread-safe FIFO. The writer drains it in batches;
// because it grows instead of blocking, a slow or failing database never
// applies backpressure to pick processing.
type queue[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	count  int
	closed bool
}

func newQueue[T any](initialCapacity int) *queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &queue[T]{buf: make([]T, initialCapacity)}
}

// Push appends an item. Returns false if the queue is closed.
func (q *queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
	return true
}

// Requeue prepends items, preserving their order, so a failed batch retries
// ahead of newer work. Dropped silently if the queue is closed.
func (q *queue[T]) Requeue(items []T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	for q.count+len(items) > len(q.buf) {
		q.grow()
	}
	n := len(q.buf)
	q.head = (q.head + n - len(items)) % n
	for i, item := range items {
		q.buf[(q.head+i)%n] = item
	}
	q.count += len(items)
}

// Drain removes and returns up to max items, oldest first. Returns nil when
// empty.
func (q *queue[T]) Drain(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}
	n := q.count
	if max > 0 && max < n {
		n = max
	}

	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = q.buf[q.head]
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}
	return out
}

// Len returns the number of queued items.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Close marks the queue closed. Pending items remain drainable.
func (q *queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// grow doubles capacity. Caller holds the lock.
func (q *queue[T]) grow() {
	newBuf := make([]T, len(q.buf)*2)
	for i := 0; i < q.count; i++ {
		newBuf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = newBuf
	q.head = 0
}
