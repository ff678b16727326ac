package batcher

import "sync"

// IntakeQueue is a FIFO of pending items with many producers and one consumer
type IntakeQueue struct {
	mu    sync.Mutex
	items []*PendingItem
	count int // enqueued since the last drain
}

// NewIntakeQueue creates an empty queue
func NewIntakeQueue() *IntakeQueue {
	return &IntakeQueue{}
}

// Enqueue appends a new item and returns its result handle.
// It never waits for the consumer.
func (q *IntakeQueue) Enqueue(destination string, payload []byte) *Result {
	item := newPendingItem(destination, payload)
	q.push(item)
	return item.result
}

func (q *IntakeQueue) push(item *PendingItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.count++
	q.mu.Unlock()
}

// DrainAll removes and returns every queued item in enqueue order.
// Items enqueued concurrently land either in this drain or in the next one.
func (q *IntakeQueue) DrainAll() ([]*PendingItem, error) {
	q.mu.Lock()
	items := q.items
	expected := q.count
	q.items = nil
	q.count = 0
	q.mu.Unlock()

	if len(items) != expected {
		return items, &DrainConsistencyError{Expected: expected, Got: len(items)}
	}
	return items, nil
}

// Len returns the number of queued items
func (q *IntakeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
