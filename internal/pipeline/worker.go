package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeatlas/git-harvester/internal/gitrepo"
	"github.com/codeatlas/git-harvester/internal/logging"
	"github.com/codeatlas/git-harvester/internal/metrics"
	"github.com/codeatlas/git-harvester/internal/tables"
)

// workerLoop is one extraction worker. It sets up a private workspace
// clone, then drains the backlog until empty. Workers are stateless across
// units except for the workspace.
func (h *Harvester) workerLoop(ctx context.Context, workerID int) {
	log := logging.WorkerLogger(workerID)

	ws, err := gitrepo.NewWorkspace(ctx, h.cfg.Repo.Path, h.cfg.Harvest.RAMDiskDir)
	if err != nil {
		log.Error("workspace setup failed, worker exiting", "error", err)
		return
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			log.Warn("workspace cleanup failed", "dir", ws.TrackedDir(), "error", err)
		}
	}()

	if m := metrics.Get(); m != nil {
		m.ActiveWorkers.Inc()
		defer m.ActiveWorkers.Dec()
	}

	for {
		if ctx.Err() != nil {
			return
		}
		unit, ok := h.backlog.TryTake()
		if !ok {
			return
		}
		if m := metrics.Get(); m != nil {
			m.BacklogDepth.Set(float64(h.backlog.Len()))
		}

		if err := h.processUnit(ctx, ws, unit, log); err != nil {
			// A unit that fails to materialize is dropped, not retried:
			// the backlog delivers each unit exactly once.
			log.Warn("dropping work unit",
				"commit_index", unit.Index,
				"commit_sha", unit.Hash,
				"error", err,
			)
			h.droppedUnits.Add(1)
			if m := metrics.Get(); m != nil {
				m.UnitsDropped.Inc()
			}
		}
	}
}

// processUnit analyzes one revision: checkout, commit metadata, changed
// files, then the blame sub-step. The returned error means the unit could
// not be materialized; per-file errors never propagate this far.
func (h *Harvester) processUnit(ctx context.Context, ws *gitrepo.Workspace, unit WorkUnit, log *slog.Logger) error {
	start := time.Now()
	log.Info("analyzing commit",
		"commit_index", unit.Index,
		"total", h.totalUnits,
		"commit_sha", unit.Hash,
	)

	if err := ws.Repo.Checkout(ctx, unit.Hash); err != nil {
		return fmt.Errorf("materialize workspace: %w", err)
	}

	details, err := ws.Repo.Details(ctx, unit.Hash)
	if err != nil {
		return fmt.Errorf("read revision metadata: %w", err)
	}

	changed := details.ChangedPaths()
	h.channels.Push(tables.Commits, tables.NewCommitRow(
		details.Hash,
		details.AuthoredAt,
		details.CommittedAt,
		details.AuthorMail,
		details.CommitterMail,
		details.Insertions,
		details.Deletions,
		changed,
		details.Message,
	))
	for _, path := range changed {
		h.channels.Push(tables.ChangedFiles, tables.ChangedFileRow{
			CommitSHA: details.Hash,
			FileName:  path,
		})
	}

	h.blameFiles(ctx, ws, unit, changed, log)

	if m := metrics.Get(); m != nil {
		m.UnitsProcessed.Inc()
		m.UnitDuration.Observe(time.Since(start).Seconds())
		m.QueueDepth.Set(float64(h.channels.Len()))
	}
	return nil
}

// blameFiles runs the blame sub-step for one checked-out revision. The
// candidate set is every file in the working tree, narrowed to the
// revision's changed files when blame-only-for-head is set and the revision
// is not the branch head. Files over the size ceiling are skipped entirely:
// no snapshot row, no blame rows.
func (h *Harvester) blameFiles(ctx context.Context, ws *gitrepo.Workspace, unit WorkUnit, changed []string, log *slog.Logger) {
	headOnly := h.cfg.Harvest.BlameOnlyForHead
	changedSet := make(map[string]bool, len(changed))
	for _, path := range changed {
		changedSet[path] = true
	}

	err := ws.WalkFiles(func(relPath string, size int64) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if headOnly && unit.Index != 0 && !changedSet[relPath] {
			return nil
		}
		if limit := h.cfg.Harvest.FileSizeLimit; limit > 0 && size > limit {
			log.Info("skipping file over size limit",
				"file", relPath, "size", size, "limit", limit)
			h.skippedFiles.Add(1)
			if m := metrics.Get(); m != nil {
				m.FilesSkipped.Inc()
			}
			return nil
		}

		// Per-file errors are scoped to the file: log and move on.
		fileHash, err := tables.HashFileContent(ws.AbsPath(relPath))
		if err != nil {
			log.Warn("hashing failed, skipping file", "file", relPath, "error", err)
			if m := metrics.Get(); m != nil {
				m.FileErrors.Inc()
			}
			return nil
		}
		h.channels.Push(tables.FileCommitMapping, tables.FileSnapshotRow{
			CommitSHA: unit.Hash,
			FileHash:  fileHash,
			FileName:  relPath,
		})

		blameStart := time.Now()
		authors, err := ws.Repo.Blame(ctx, relPath)
		if err != nil {
			log.Warn("blame failed, skipping file", "file", relPath, "error", err)
			if m := metrics.Get(); m != nil {
				m.FileErrors.Inc()
			}
			return nil
		}
		for _, a := range authors {
			h.channels.Push(tables.Blame, tables.BlameRow{
				FileHash:      fileHash,
				AuthorMail:    a.AuthorMail,
				NumberOfLines: a.Lines,
			})
		}

		elapsed := time.Since(blameStart)
		if m := metrics.Get(); m != nil {
			m.BlameDuration.Observe(elapsed.Seconds())
		}
		if h.cfg.Harvest.Verbose {
			log.Debug("blamed file", "file", relPath, "authors", len(authors), "duration_ms", elapsed.Milliseconds())
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		log.Warn("walking working tree failed", "commit_sha", unit.Hash, "error", err)
	}
}
