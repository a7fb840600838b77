package outbox

import (
	"sync"

	"github.com/rickgao/chatlink/internal/model"
)

// DefaultInitialCapacity is the starting ring size for a new queue.
const DefaultInitialCapacity = 16

// Sender hands one item to the transport. A non-nil error means the item
// was not accepted.
type Sender func(item model.OutboundItem) error

// Queue is a FIFO of outbound items. It is safe for concurrent use, though a
// session only mutates it from within its own serialized turns.
type Queue struct {
	mu    sync.Mutex
	items *ring[model.OutboundItem]

	// Stats
	totalEnqueued int64
	totalSent     int64
	totalDrained  int64
}

// NewQueue creates an empty queue.
func NewQueue(initialCapacity int) *Queue {
	if initialCapacity < 1 {
		initialCapacity = DefaultInitialCapacity
	}
	return &Queue{
		items: newRing[model.OutboundItem](initialCapacity),
	}
}

// Enqueue appends an item to the tail.
func (q *Queue) Enqueue(item model.OutboundItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items.push(item)
	q.totalEnqueued++
}

// Flush sends queued items in FIFO order until the queue is empty or send
// fails. Each item is removed as soon as send accepts it. It returns the
// number of items sent and the error that stopped the flush, if any.
func (q *Queue) Flush(send Sender) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sent := 0
	for {
		item, ok := q.items.peek()
		if !ok {
			return sent, nil
		}

		if err := send(item); err != nil {
			return sent, err
		}

		q.items.pop()
		q.totalSent++
		sent++
	}
}

// DrainOnTeardown removes and returns every queued item in FIFO order.
func (q *Queue) DrainOnTeardown() []model.OutboundItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.count == 0 {
		return nil
	}

	out := make([]model.OutboundItem, 0, q.items.count)
	for {
		item, ok := q.items.pop()
		if !ok {
			break
		}
		out = append(out, item)
	}
	q.totalDrained += int64(len(out))
	return out
}

// Items returns a copy of the queued items in FIFO order.
func (q *Queue) Items() []model.OutboundItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.snapshot()
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.count
}

// Stats returns queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Count:         q.items.count,
		Capacity:      q.items.capacity,
		TotalEnqueued: q.totalEnqueued,
		TotalSent:     q.totalSent,
		TotalDrained:  q.totalDrained,
		ResizeCount:   q.items.resizeCount,
	}
}

// Stats contains queue statistics.
type Stats struct {
	Count         int
	Capacity      int
	TotalEnqueued int64
	TotalSent     int64
	TotalDrained  int64
	ResizeCount   int
}
