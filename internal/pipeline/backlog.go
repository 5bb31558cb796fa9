package pipeline

import "sync"

// Backlog is a concurrency-safe FIFO of pending WorkUnits. It is seeded
// once by the coordinator before workers start; workers drain it with
// TryTake until empty. An empty backlog is the normal terminal condition
// for a worker, not an error.
type Backlog struct {
	mu    sync.Mutex
	units []WorkUnit
	head  int
}

// NewBacklog creates an empty backlog.
func NewBacklog() *Backlog {
	return &Backlog{}
}

// Put enqueues one unit.
func (b *Backlog) Put(unit WorkUnit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units = append(b.units, unit)
}

// TryTake removes and returns the oldest unit. It never blocks beyond lock
// contention; ok is false when the backlog is empty.
func (b *Backlog) TryTake() (unit WorkUnit, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.head >= len(b.units) {
		return WorkUnit{}, false
	}
	unit = b.units[b.head]
	b.head++
	// Release consumed prefix once it dominates the slice.
	if b.head > 1024 && b.head*2 > len(b.units) {
		b.units = append([]WorkUnit(nil), b.units[b.head:]...)
		b.head = 0
	}
	return unit, true
}

// Len returns the number of pending units.
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.units) - b.head
}
