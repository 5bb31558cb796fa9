package tables

import (
	"strings"
	"time"
)

// CommitRow is a single row in the commits table. Exactly one row is
// produced per analyzed revision.
type CommitRow struct {
	// Primary identifier
	CommitSHA string `parquet:"commit_sha"`

	// Temporal fields
	AuthoredAt  time.Time `parquet:"authored_at,timestamp(millisecond)"`
	CommittedAt time.Time `parquet:"committed_at,timestamp(millisecond)"`

	// Identities
	AuthorMail    string `parquet:"author_mail"`
	CommitterMail string `parquet:"committer_mail"`

	// Diff stats against the parent commit
	Insertions           int64 `parquet:"insertions"`
	Deletions            int64 `parquet:"deletions"`
	NumberOfChangedLines int64 `parquet:"number_of_changed_lines"`
	NumberOfChangedFiles int64 `parquet:"number_of_changed_files"`

	// ChangedFileNames is the changed-file list denormalized as
	// comma-separated text, matching the normalized changed_files rows.
	ChangedFileNames string `parquet:"changed_files"`

	Message string `parquet:"message"`
}

// NewCommitRow assembles a CommitRow from revision metadata.
func NewCommitRow(sha string, authoredAt, committedAt time.Time, authorMail, committerMail string, insertions, deletions int64, changedFiles []string, message string) CommitRow {
	return CommitRow{
		CommitSHA:            sha,
		AuthoredAt:           authoredAt,
		CommittedAt:          committedAt,
		AuthorMail:           authorMail,
		CommitterMail:        committerMail,
		Insertions:           insertions,
		Deletions:            deletions,
		NumberOfChangedLines: insertions + deletions,
		NumberOfChangedFiles: int64(len(changedFiles)),
		ChangedFileNames:     strings.Join(changedFiles, ", "),
		Message:              message,
	}
}

// ChangedFileRow is a single row in the changed_files table: one row per
// file path touched by a revision.
type ChangedFileRow struct {
	CommitSHA string `parquet:"commit_sha"`
	FileName  string `parquet:"file_name"`
}

// FileSnapshotRow is a single row in the file_commit_mapping table: one row
// per file present in the working tree at a revision's checkout. FileHash is
// the hex SHA-256 of the file content and serves as a stable cross-revision
// identity for unchanged files.
type FileSnapshotRow struct {
	CommitSHA string `parquet:"commit_sha"`
	FileHash  string `parquet:"file_hash"`
	FileName  string `parquet:"file_name"`
}

// BlameRow is a single row in the blame table: the number of lines of one
// file content (identified by FileHash) attributed to one author.
type BlameRow struct {
	FileHash      string `parquet:"file_hash"`
	AuthorMail    string `parquet:"author_mail"`
	NumberOfLines int64  `parquet:"number_of_lines"`
}
