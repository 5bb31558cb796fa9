// Package sink writes harvested rows into an append-only columnar dataset.
// The dataset is a directory holding one parquet file per destination table
// plus a JSON manifest describing contents, checksums and advisory key
// relationships.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeatlas/git-harvester/internal/tables"
)

// Sink is the append-only destination of the pipeline. Implementations are
// not safe for concurrent use: a single writer must own the Sink for its
// whole lifetime.
type Sink interface {
	// CreateTables declares the destination schema. Must be called once
	// before any Append.
	CreateTables(ctx context.Context) error

	// Append adds one row to the given table. The row's concrete type must
	// match the table's row type.
	Append(table tables.TableID, row any) error

	// Close finalizes all tables and commits the dataset. The Sink is
	// unusable afterwards.
	Close(ctx context.Context) error

	// RowCounts returns the number of rows appended per table so far.
	RowCounts() map[string]int64
}

// Manifest describes a committed dataset directory.
type Manifest struct {
	Dataset       string               `json:"dataset"`
	SchemaVersion string               `json:"schema_version"`
	Tables        map[string]TableInfo `json:"tables"`
	Keys          KeyDeclarations      `json:"keys"`
	Producer      ProducerInfo         `json:"producer"`
	CreatedAt     time.Time            `json:"created_at"`
}

// TableInfo describes a single table file in the dataset.
type TableInfo struct {
	File     string `json:"file"`
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count"`
	ByteSize int64  `json:"byte_size"`
}

// KeyDeclarations lists the assumed key relationships between tables. They
// are declared for downstream consumers only; nothing in the sink enforces
// them.
type KeyDeclarations struct {
	AssumedPrimary []PrimaryKey `json:"assumed_primary"`
	AssumedForeign []ForeignKey `json:"assumed_foreign"`
}

// PrimaryKey declares an assumed primary key column of a table.
type PrimaryKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ForeignKey declares an assumed reference from one table's column to
// another table.
type ForeignKey struct {
	Table      string `json:"table"`
	Column     string `json:"column"`
	References string `json:"references"`
}

// ProducerInfo identifies the software that produced the dataset.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as indented JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// assumedKeys declares the advisory join keys for downstream consumers:
// commits is keyed by commit_sha, blame by file_hash, and the two mapping
// tables reference both.
func assumedKeys() KeyDeclarations {
	return KeyDeclarations{
		AssumedPrimary: []PrimaryKey{
			{Table: tables.Commits.String(), Column: "commit_sha"},
			{Table: tables.Blame.String(), Column: "file_hash"},
		},
		AssumedForeign: []ForeignKey{
			{Table: tables.ChangedFiles.String(), Column: "commit_sha", References: tables.Commits.String()},
			{Table: tables.FileCommitMapping.String(), Column: "commit_sha", References: tables.Commits.String()},
			{Table: tables.FileCommitMapping.String(), Column: "file_hash", References: tables.Blame.String()},
		},
	}
}

// ErrRowShape is returned when a row's concrete type does not match the
// destination table.
func errRowShape(table tables.TableID, row any) error {
	return fmt.Errorf("row type %T does not match table %s", row, table)
}
