// Package tables defines the destination tables of the harvest dataset and
// the row types that flow through the pipeline into the sink.
package tables

// TableID identifies one of the four destination tables. The table set is
// closed: it indexes fixed-size structures in the pipeline and the sink.
type TableID int

const (
	Commits TableID = iota
	ChangedFiles
	FileCommitMapping
	Blame

	// NumTables is the size of the closed table set.
	NumTables
)

// String returns the canonical table name as it appears in the dataset.
func (t TableID) String() string {
	switch t {
	case Commits:
		return "commits"
	case ChangedFiles:
		return "changed_files"
	case FileCommitMapping:
		return "file_commit_mapping"
	case Blame:
		return "blame"
	default:
		return "unknown"
	}
}

// AllTables returns every TableID in declaration order.
func AllTables() []TableID {
	return []TableID{Commits, ChangedFiles, FileCommitMapping, Blame}
}

// SchemaVersion is the version of the dataset schema.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"
