// Package report persists a machine-readable summary of a harvest run next
// to the dataset.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the report file written into the dataset directory.
const FileName = "_run_report.json"

// ErrNoReport is returned when a dataset directory has no run report.
var ErrNoReport = errors.New("no run report found")

// Summary describes one completed harvest run.
type Summary struct {
	RunID           string           `json:"run_id"`
	Repository      string           `json:"repository"`
	Branch          string           `json:"branch"`
	Workers         int              `json:"workers"`
	Revisions       int              `json:"revisions"`
	RowCounts       map[string]int64 `json:"row_counts"`
	DroppedUnits    int64            `json:"dropped_units"`
	SkippedFiles    int64            `json:"skipped_files"`
	DurationSeconds float64          `json:"duration_seconds"`
	FinishedAt      time.Time        `json:"finished_at"`
}

// Write persists the summary atomically into the dataset directory.
func Write(datasetDir string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}

	path := filepath.Join(datasetDir, FileName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write run report temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename run report: %w", err)
	}
	return nil
}

// Load reads the run report from a dataset directory.
func Load(datasetDir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(datasetDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("read run report: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse run report: %w", err)
	}
	return &s, nil
}
