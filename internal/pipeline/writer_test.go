package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/codeatlas/git-harvester/internal/config"
	"github.com/codeatlas/git-harvester/internal/sink"
	"github.com/codeatlas/git-harvester/internal/tables"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memSink collects appended rows in memory. It satisfies the single-writer
// contract the same way the parquet sink does: no internal locking for
// Append, a mutex only where tests read concurrently.
type memSink struct {
	mu        sync.Mutex
	created   bool
	closed    bool
	rows      map[tables.TableID][]any
	appendErr error
}

func newMemSink() *memSink {
	return &memSink{rows: make(map[tables.TableID][]any)}
}

func (s *memSink) CreateTables(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	return nil
}

func (s *memSink) Append(table tables.TableID, row any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows[table] = append(s.rows[table], row)
	return nil
}

func (s *memSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) RowCounts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64, len(s.rows))
	for tbl, rows := range s.rows {
		counts[tbl.String()] = int64(len(rows))
	}
	return counts
}

func (s *memSink) rowCount(table tables.TableID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[table])
}

func (s *memSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ sink.Sink = (*memSink)(nil)

// The writer must keep draining while a slow producer is still pushing and
// must only terminate after the completion flag is set and a full sweep
// finds every channel empty. Rows pushed right before the flag flip must
// not be lost.
func TestWriterDrainsSlowProducerBeforeTerminating(t *testing.T) {
	ms := newMemSink()
	h := New(config.Config{}, ms)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- h.writerLoop(context.Background())
	}()

	const early, late = 50, 25
	for i := 0; i < early; i++ {
		h.channels.Push(tables.Commits, i)
	}

	// Simulate a worker that stalls mid-unit. The writer has long since
	// drained everything, but the flag is not set, so it must keep waiting.
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-writerDone:
		t.Fatalf("writer terminated before extraction completed: %v", err)
	default:
	}

	for i := 0; i < late; i++ {
		h.channels.Push(tables.Blame, i)
	}
	h.extractionDone.Store(true)

	select {
	case err := <-writerDone:
		if err != nil {
			t.Fatalf("writerLoop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not terminate after completion flag and empty channels")
	}

	if got := ms.rowCount(tables.Commits); got != early {
		t.Errorf("commits rows = %d, want %d", got, early)
	}
	if got := ms.rowCount(tables.Blame); got != late {
		t.Errorf("blame rows = %d, want %d", got, late)
	}
	if !ms.isClosed() {
		t.Error("sink was not committed")
	}
}

func TestWriterTerminatesOnEmptyRun(t *testing.T) {
	ms := newMemSink()
	h := New(config.Config{}, ms)
	h.extractionDone.Store(true)

	done := make(chan error, 1)
	go func() {
		done <- h.writerLoop(context.Background())
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("writerLoop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer hung on an empty run")
	}
	if !ms.isClosed() {
		t.Error("sink was not committed")
	}
}

// An append failure is fatal to the run: the writer returns the error and
// does not commit the dataset.
func TestWriterAppendFailureIsFatal(t *testing.T) {
	ms := newMemSink()
	ms.appendErr = errors.New("disk full")
	h := New(config.Config{}, ms)

	h.channels.Push(tables.Commits, "row")
	h.extractionDone.Store(true)

	err := h.writerLoop(context.Background())
	if err == nil || !errors.Is(err, ms.appendErr) {
		t.Fatalf("writerLoop error = %v, want wrapped %v", err, ms.appendErr)
	}
	if ms.isClosed() {
		t.Error("sink must not be committed after a fatal append")
	}
}
