// Package gitrepo reads revision history from a git repository by shelling
// out to the git binary. Checkout and blame are synchronous subprocess
// calls; callers are expected to run them inside private workspace clones.
package gitrepo

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// fieldSep separates metadata fields in git show output. NUL is the only
// byte that cannot appear inside any of the requested fields.
const fieldSep = "\x00"

// detailsFormat delimits fields with %x00 placeholders, which git expands
// to NUL on output. The separator cannot be embedded literally: execve
// rejects argv strings containing a raw NUL.
var detailsFormat = strings.Join([]string{"%H", "%at", "%ct", "%ae", "%ce", "%B"}, "%x00") + "%x00"

// GitDir is a directory in which git commands may be run.
type GitDir string

// Dir returns the working directory of the GitDir.
func (g GitDir) Dir() string {
	return string(g)
}

// Git runs the given git command in the GitDir and returns its stdout.
func (g GitDir) Git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = string(g)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

// RevList returns the commit hashes reachable from the given branch,
// newest first. Index 0 of the result is the branch head.
func (g GitDir) RevList(ctx context.Context, branch string) ([]string, error) {
	out, err := g.Git(ctx, "rev-list", branch)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// CommitDetails holds the metadata of a single revision, including the
// per-file diff stats against its first parent.
type CommitDetails struct {
	Hash          string
	AuthoredAt    time.Time
	CommittedAt   time.Time
	AuthorMail    string
	CommitterMail string
	Message       string

	// Stats aggregated over Files.
	Insertions int64
	Deletions  int64

	// Files lists the changed paths in numstat order.
	Files []FileStat
}

// FileStat is the numstat entry for one changed file. Insertions and
// Deletions are zero for binary files.
type FileStat struct {
	Path       string
	Insertions int64
	Deletions  int64
}

// ChangedPaths returns the changed file paths in numstat order.
func (d *CommitDetails) ChangedPaths() []string {
	paths := make([]string, len(d.Files))
	for i, f := range d.Files {
		paths[i] = f.Path
	}
	return paths
}

// Details returns the metadata and diff stats of the given revision.
func (g GitDir) Details(ctx context.Context, hash string) (*CommitDetails, error) {
	out, err := g.Git(ctx, "show", "--numstat", "--format="+detailsFormat, hash)
	if err != nil {
		return nil, err
	}
	return parseCommitDetails(out)
}

// parseCommitDetails parses the output of git show with the Details format.
// The trailing field separator after the message body splits the metadata
// header from the numstat block.
func parseCommitDetails(out string) (*CommitDetails, error) {
	fields := strings.SplitN(out, fieldSep, 7)
	if len(fields) != 7 {
		return nil, fmt.Errorf("malformed git show output: %d fields", len(fields))
	}

	authoredAt, err := parseUnixTime(fields[1])
	if err != nil {
		return nil, fmt.Errorf("authored timestamp: %w", err)
	}
	committedAt, err := parseUnixTime(fields[2])
	if err != nil {
		return nil, fmt.Errorf("committed timestamp: %w", err)
	}

	d := &CommitDetails{
		Hash:          fields[0],
		AuthoredAt:    authoredAt,
		CommittedAt:   committedAt,
		AuthorMail:    fields[3],
		CommitterMail: fields[4],
		Message:       strings.TrimRight(fields[5], "\n"),
	}

	for _, line := range strings.Split(fields[6], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		stat, err := parseNumstatLine(line)
		if err != nil {
			return nil, err
		}
		d.Files = append(d.Files, stat)
		d.Insertions += stat.Insertions
		d.Deletions += stat.Deletions
	}
	return d, nil
}

// parseNumstatLine parses one "insertions<TAB>deletions<TAB>path" line.
// Binary files report "-" for both counts.
func parseNumstatLine(line string) (FileStat, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return FileStat{}, fmt.Errorf("malformed numstat line: %q", line)
	}

	var stat FileStat
	stat.Path = parts[2]
	if parts[0] != "-" {
		ins, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return FileStat{}, fmt.Errorf("numstat insertions %q: %w", parts[0], err)
		}
		stat.Insertions = ins
	}
	if parts[1] != "-" {
		del, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return FileStat{}, fmt.Errorf("numstat deletions %q: %w", parts[1], err)
		}
		stat.Deletions = del
	}
	return stat, nil
}

func parseUnixTime(s string) (time.Time, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0).UTC(), nil
}

// Checkout force-checks-out the given revision with a detached HEAD and
// removes every untracked or ignored artifact left by a prior checkout, so
// the working tree matches exactly that revision's content.
func (g GitDir) Checkout(ctx context.Context, hash string) error {
	if _, err := g.Git(ctx, "checkout", "--force", "--detach", hash); err != nil {
		return err
	}
	if _, err := g.Git(ctx, "clean", "-xfd"); err != nil {
		return err
	}
	return nil
}

// HasBranch reports whether the given branch exists in the repository.
func (g GitDir) HasBranch(ctx context.Context, branch string) bool {
	_, err := g.Git(ctx, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}
