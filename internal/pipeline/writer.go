package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/codeatlas/git-harvester/internal/logging"
	"github.com/codeatlas/git-harvester/internal/metrics"
	"github.com/codeatlas/git-harvester/internal/tables"
)

// drainIdleWait bounds how long the writer sleeps between empty sweeps.
const drainIdleWait = 10 * time.Millisecond

// writerLoop is the single injection writer. It exclusively owns the sink:
// it declares the schema once, drains every result channel until extraction
// is complete, then commits the dataset. Any append failure is fatal to the
// whole run.
func (h *Harvester) writerLoop(ctx context.Context) error {
	log := logging.Component("writer")

	if err := h.sink.CreateTables(ctx); err != nil {
		return fmt.Errorf("create destination tables: %w", err)
	}
	log.Info("destination schema created")

	for {
		// Observe the completion flag before sweeping. Termination needs
		// one full empty sweep after the flag is seen set; otherwise rows
		// pushed between the last sweep and the flag flip would be lost.
		done := h.extractionDone.Load()

		drained, err := h.drainOnce()
		if err != nil {
			return err
		}

		if done && drained == 0 {
			log.Info("extraction complete and channels empty, committing")
			break
		}
		if drained == 0 {
			h.channels.Wait(drainIdleWait)
		}
	}

	if err := h.sink.Close(ctx); err != nil {
		return fmt.Errorf("commit dataset: %w", err)
	}
	return nil
}

// drainOnce sweeps every table's channel, appending all currently available
// rows, and reports how many rows it moved.
func (h *Harvester) drainOnce() (int, error) {
	drained := 0
	for _, t := range tables.AllTables() {
		for {
			row, ok := h.channels.TryPop(t)
			if !ok {
				break
			}
			if err := h.sink.Append(t, row); err != nil {
				return drained, fmt.Errorf("append row to %s: %w", t, err)
			}
			drained++
			if m := metrics.Get(); m != nil {
				m.IncRowsAppended(t.String())
			}
		}
	}
	return drained, nil
}
