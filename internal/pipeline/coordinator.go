// Package pipeline implements the multi-producer/single-consumer ingestion
// pipeline: a backlog of revisions fans out to parallel extraction workers
// whose rows funnel through per-table channels into a single writer owning
// the sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/codeatlas/git-harvester/internal/config"
	"github.com/codeatlas/git-harvester/internal/gitrepo"
	"github.com/codeatlas/git-harvester/internal/metrics"
	"github.com/codeatlas/git-harvester/internal/report"
	"github.com/codeatlas/git-harvester/internal/sink"
)

// Harvester orchestrates one harvest run.
type Harvester struct {
	cfg      config.Config
	sink     sink.Sink
	backlog  *Backlog
	channels *ChannelSet
	runID    string
	log      *slog.Logger

	totalUnits     int
	extractionDone atomic.Bool
	droppedUnits   atomic.Int64
	skippedFiles   atomic.Int64
}

// New creates a harvester writing into the given sink.
func New(cfg config.Config, snk sink.Sink) *Harvester {
	return &Harvester{
		cfg:      cfg,
		sink:     snk,
		backlog:  NewBacklog(),
		channels: NewChannelSet(),
		runID:    uuid.New().String(),
		log:      slog.With("component", "coordinator"),
	}
}

// RunID returns the unique identifier of this run.
func (h *Harvester) RunID() string {
	return h.runID
}

// workerCount resolves the worker pool size: the explicit configuration
// value when positive, otherwise roughly a third of the available CPUs,
// floored to one.
func (h *Harvester) workerCount() int {
	if n := h.cfg.Harvest.NumberOfWorkers; n > 0 {
		return n
	}
	return max(1, runtime.NumCPU()/3)
}

// Run executes the full pipeline lifecycle: enumerate revisions, seed the
// backlog, spawn N workers and the single writer, join the workers, flip
// the completion flag, join the writer. The returned summary covers the run
// even when err is non-nil.
func (h *Harvester) Run(ctx context.Context) (*report.Summary, error) {
	start := time.Now()

	repo := gitrepo.GitDir(h.cfg.Repo.Path)
	if !repo.HasBranch(ctx, h.cfg.Repo.Branch) {
		return nil, fmt.Errorf("branch %s not found in %s", h.cfg.Repo.Branch, h.cfg.Repo.Path)
	}
	hashes, err := repo.RevList(ctx, h.cfg.Repo.Branch)
	if err != nil {
		return nil, fmt.Errorf("enumerate revisions on %s: %w", h.cfg.Repo.Branch, err)
	}
	h.totalUnits = len(hashes)
	for i, hash := range hashes {
		h.backlog.Put(WorkUnit{Index: i, Hash: hash})
	}
	if m := metrics.Get(); m != nil {
		m.BacklogDepth.Set(float64(h.backlog.Len()))
	}

	workers := h.workerCount()
	h.log.Info("starting harvest",
		"run_id", h.runID,
		"repo", h.cfg.Repo.Path,
		"branch", h.cfg.Repo.Branch,
		"revisions", h.totalUnits,
		"workers", workers,
	)

	writerErr := make(chan error, 1)
	go func() {
		writerErr <- h.writerLoop(ctx)
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h.workerLoop(ctx, id)
		}(i)
	}
	wg.Wait()

	// Workers are done (or cancelled); the writer self-terminates once it
	// observes the flag and finds every channel empty in one sweep.
	h.extractionDone.Store(true)
	h.log.Info("waiting for remaining rows to be written to the dataset")
	err = <-writerErr

	summary := &report.Summary{
		RunID:           h.runID,
		Repository:      h.cfg.Repo.Path,
		Branch:          h.cfg.Repo.Branch,
		Workers:         workers,
		Revisions:       h.totalUnits,
		RowCounts:       h.sink.RowCounts(),
		DroppedUnits:    h.droppedUnits.Load(),
		SkippedFiles:    h.skippedFiles.Load(),
		DurationSeconds: time.Since(start).Seconds(),
		FinishedAt:      time.Now().UTC(),
	}

	if err != nil {
		return summary, fmt.Errorf("injection writer: %w", err)
	}
	if cerr := ctx.Err(); cerr != nil {
		return summary, cerr
	}

	h.log.Info("harvest complete",
		"run_id", h.runID,
		"revisions", summary.Revisions,
		"dropped_units", summary.DroppedUnits,
		"skipped_files", summary.SkippedFiles,
		"rows", summary.RowCounts,
		"duration", time.Since(start).String(),
	)
	return summary, nil
}
