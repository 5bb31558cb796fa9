package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	kzstd "github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/codeatlas/git-harvester/internal/tables"
)

// Config configures a parquet dataset sink.
type Config struct {
	// Dir is the dataset directory. Created if missing; existing table
	// files are replaced.
	Dir string

	// Compression selects the parquet codec: "snappy" (default), "zstd"
	// or "none".
	Compression string

	Producer ProducerInfo
}

// ParquetSink writes each destination table to <dir>/<table>.parquet and a
// manifest to <dir>/_manifest.json on Close. It owns the only handles to
// the dataset files and must not be shared across goroutines.
type ParquetSink struct {
	cfg     Config
	created bool
	closed  bool

	files  [tables.NumTables]*os.File
	hashes [tables.NumTables]hash.Hash
	counts [tables.NumTables]int64

	commits   *parquet.GenericWriter[tables.CommitRow]
	changed   *parquet.GenericWriter[tables.ChangedFileRow]
	snapshots *parquet.GenericWriter[tables.FileSnapshotRow]
	blame     *parquet.GenericWriter[tables.BlameRow]
}

// New creates a parquet sink for the given dataset directory.
func New(cfg Config) (*ParquetSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sink: dataset directory is required")
	}
	if _, err := codecFor(cfg.Compression); err != nil {
		return nil, err
	}
	return &ParquetSink{cfg: cfg}, nil
}

// codecFor maps a compression name to a parquet codec.
func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &zstd.Codec{Level: kzstd.SpeedDefault}, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("sink: unknown compression %q", name)
	}
}

// CreateTables opens one parquet writer per destination table.
func (s *ParquetSink) CreateTables(ctx context.Context) error {
	if s.created {
		return fmt.Errorf("sink: tables already created")
	}
	if err := os.MkdirAll(s.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("create dataset directory %s: %w", s.cfg.Dir, err)
	}

	codec, err := codecFor(s.cfg.Compression)
	if err != nil {
		return err
	}

	for _, t := range tables.AllTables() {
		f, err := os.Create(s.tablePath(t))
		if err != nil {
			return fmt.Errorf("create table file %s: %w", t, err)
		}
		s.files[t] = f
		s.hashes[t] = sha256.New()
	}

	opt := parquet.Compression(codec)
	s.commits = parquet.NewGenericWriter[tables.CommitRow](s.tee(tables.Commits), opt)
	s.changed = parquet.NewGenericWriter[tables.ChangedFileRow](s.tee(tables.ChangedFiles), opt)
	s.snapshots = parquet.NewGenericWriter[tables.FileSnapshotRow](s.tee(tables.FileCommitMapping), opt)
	s.blame = parquet.NewGenericWriter[tables.BlameRow](s.tee(tables.Blame), opt)

	s.created = true
	return nil
}

// tee routes writer output through the table's checksum hash on its way to
// the table file.
func (s *ParquetSink) tee(t tables.TableID) io.Writer {
	return io.MultiWriter(s.files[t], s.hashes[t])
}

func (s *ParquetSink) tablePath(t tables.TableID) string {
	return filepath.Join(s.cfg.Dir, t.String()+".parquet")
}

// Append adds one row to the given table.
func (s *ParquetSink) Append(table tables.TableID, row any) error {
	if !s.created || s.closed {
		return fmt.Errorf("sink: append on %s outside created/closed window", table)
	}

	var err error
	switch table {
	case tables.Commits:
		r, ok := row.(tables.CommitRow)
		if !ok {
			return errRowShape(table, row)
		}
		_, err = s.commits.Write([]tables.CommitRow{r})
	case tables.ChangedFiles:
		r, ok := row.(tables.ChangedFileRow)
		if !ok {
			return errRowShape(table, row)
		}
		_, err = s.changed.Write([]tables.ChangedFileRow{r})
	case tables.FileCommitMapping:
		r, ok := row.(tables.FileSnapshotRow)
		if !ok {
			return errRowShape(table, row)
		}
		_, err = s.snapshots.Write([]tables.FileSnapshotRow{r})
	case tables.Blame:
		r, ok := row.(tables.BlameRow)
		if !ok {
			return errRowShape(table, row)
		}
		_, err = s.blame.Write([]tables.BlameRow{r})
	default:
		return fmt.Errorf("sink: unknown table %d", table)
	}
	if err != nil {
		return fmt.Errorf("append to %s: %w", table, err)
	}
	s.counts[table]++
	return nil
}

// RowCounts returns the number of rows appended per table so far.
func (s *ParquetSink) RowCounts() map[string]int64 {
	counts := make(map[string]int64, tables.NumTables)
	for _, t := range tables.AllTables() {
		counts[t.String()] = s.counts[t]
	}
	return counts
}

// Close flushes and closes every table writer, then commits the manifest.
func (s *ParquetSink) Close(ctx context.Context) error {
	if !s.created || s.closed {
		return fmt.Errorf("sink: close outside created/closed window")
	}
	s.closed = true

	manifest := &Manifest{
		Dataset:       filepath.Base(s.cfg.Dir),
		SchemaVersion: tables.SchemaVersion,
		Tables:        make(map[string]TableInfo, tables.NumTables),
		Keys:          assumedKeys(),
		Producer:      s.cfg.Producer,
		CreatedAt:     time.Now().UTC(),
	}

	closers := []struct {
		table tables.TableID
		close func() error
	}{
		{tables.Commits, s.commits.Close},
		{tables.ChangedFiles, s.changed.Close},
		{tables.FileCommitMapping, s.snapshots.Close},
		{tables.Blame, s.blame.Close},
	}
	for _, c := range closers {
		if err := c.close(); err != nil {
			return fmt.Errorf("finalize table %s: %w", c.table, err)
		}
		f := s.files[c.table]
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat table %s: %w", c.table, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close table %s: %w", c.table, err)
		}
		manifest.Tables[c.table.String()] = TableInfo{
			File:     c.table.String() + ".parquet",
			Checksum: "sha256:" + hex.EncodeToString(s.hashes[c.table].Sum(nil)),
			RowCount: s.counts[c.table],
			ByteSize: info.Size(),
		}
	}

	return s.writeManifest(manifest)
}

// writeManifest commits the manifest atomically via temp file + rename.
func (s *ParquetSink) writeManifest(manifest *Manifest) error {
	data, err := manifest.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(s.cfg.Dir, "_manifest.json")
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write manifest temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

var _ Sink = (*ParquetSink)(nil)
