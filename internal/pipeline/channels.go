package pipeline

import (
	"sync"
	"time"

	"github.com/codeatlas/git-harvester/internal/tables"
)

// ChannelSet is a fixed mapping from destination table to an unbounded
// multi-producer/single-consumer row queue. Push never blocks the producer;
// workers must be able to run ahead of the single writer, whose serialized
// appends are the pipeline's bottleneck. TryPop never blocks the consumer.
//
// Row shape is the producer's responsibility; the queues carry rows opaquely
// and the sink rejects mismatches.
type ChannelSet struct {
	queues [tables.NumTables]rowQueue
	notify chan struct{}
}

// NewChannelSet creates one empty queue per destination table.
func NewChannelSet() *ChannelSet {
	return &ChannelSet{notify: make(chan struct{}, 1)}
}

// Push appends a row to the given table's queue and nudges a waiting
// consumer.
func (c *ChannelSet) Push(table tables.TableID, row any) {
	c.queues[table].push(row)
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// TryPop removes and returns the oldest row of the given table's queue;
// ok is false when the queue is empty.
func (c *ChannelSet) TryPop(table tables.TableID) (row any, ok bool) {
	return c.queues[table].tryPop()
}

// Len returns the total number of queued rows across all tables.
func (c *ChannelSet) Len() int {
	total := 0
	for i := range c.queues {
		total += c.queues[i].len()
	}
	return total
}

// Wait blocks until a row is pushed or the timeout elapses. It lets the
// consumer idle between drain sweeps without spinning.
func (c *ChannelSet) Wait(timeout time.Duration) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-c.notify:
	case <-t.C:
	}
}

// rowQueue is an unbounded FIFO guarded by a mutex.
type rowQueue struct {
	mu   sync.Mutex
	rows []any
	head int
}

func (q *rowQueue) push(row any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rows = append(q.rows, row)
}

func (q *rowQueue) tryPop() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.rows) {
		if q.head > 0 {
			q.rows = nil
			q.head = 0
		}
		return nil, false
	}
	row := q.rows[q.head]
	q.rows[q.head] = nil
	q.head++
	return row, true
}

func (q *rowQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.rows) - q.head
}
