package pipeline

import (
	"sync"
	"testing"
)

func TestBacklogFIFO(t *testing.T) {
	b := NewBacklog()
	for i := 0; i < 5; i++ {
		b.Put(WorkUnit{Index: i, Hash: "h"})
	}

	if got := b.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
	for i := 0; i < 5; i++ {
		unit, ok := b.TryTake()
		if !ok {
			t.Fatalf("TryTake() empty at %d", i)
		}
		if unit.Index != i {
			t.Errorf("TryTake() index = %d, want %d", unit.Index, i)
		}
	}
	if _, ok := b.TryTake(); ok {
		t.Error("TryTake() on drained backlog should report empty")
	}
	if got := b.Len(); got != 0 {
		t.Errorf("Len() after drain = %d, want 0", got)
	}
}

func TestBacklogEmptyIsNotAnError(t *testing.T) {
	b := NewBacklog()
	if _, ok := b.TryTake(); ok {
		t.Fatal("TryTake() on empty backlog should report empty")
	}
	// Still usable afterwards.
	b.Put(WorkUnit{Index: 7, Hash: "abc"})
	unit, ok := b.TryTake()
	if !ok || unit.Index != 7 {
		t.Fatalf("TryTake() = %+v, %v; want index 7", unit, ok)
	}
}

// Every seeded unit must be delivered exactly once, no matter how many
// workers race on TryTake.
func TestBacklogConcurrentExactlyOnce(t *testing.T) {
	const units = 5000
	const workers = 8

	b := NewBacklog()
	for i := 0; i < units; i++ {
		b.Put(WorkUnit{Index: i, Hash: "h"})
	}

	taken := make(chan int, units)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				unit, ok := b.TryTake()
				if !ok {
					return
				}
				taken <- unit.Index
			}
		}()
	}
	wg.Wait()
	close(taken)

	seen := make(map[int]int, units)
	for idx := range taken {
		seen[idx]++
	}
	if len(seen) != units {
		t.Fatalf("delivered %d distinct units, want %d", len(seen), units)
	}
	for idx, count := range seen {
		if count != 1 {
			t.Fatalf("unit %d delivered %d times", idx, count)
		}
	}
}
