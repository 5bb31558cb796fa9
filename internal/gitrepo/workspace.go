package gitrepo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Workspace is a private clone of a repository in which one worker may
// freely check out revisions without interfering with the coordinator's
// working tree or with other workers.
type Workspace struct {
	Repo GitDir
	root string
}

// NewWorkspace clones the repository at srcPath into a fresh temporary
// directory under baseDir (the process temp dir when baseDir is empty).
// Pointing baseDir at a RAM disk speeds up checkout-heavy workloads; it has
// no effect on correctness. Callers must Remove the workspace when done.
func NewWorkspace(ctx context.Context, srcPath, baseDir string) (*Workspace, error) {
	root, err := os.MkdirTemp(baseDir, "git-harvester-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	dest := filepath.Join(root, "repo")
	cmd := exec.CommandContext(ctx, "git", "clone", "--quiet", srcPath, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("clone %s: %w: %s", srcPath, err, strings.TrimSpace(string(out)))
	}

	return &Workspace{Repo: GitDir(dest), root: root}, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.root)
}

// TrackedDir returns the repository's working tree root.
func (w *Workspace) TrackedDir() string {
	return w.Repo.Dir()
}

// WalkFiles calls fn for every regular file in the working tree, passing
// the path relative to the tree root and the file size in bytes. The .git
// directory is skipped.
func (w *Workspace) WalkFiles(fn func(relPath string, size int64) error) error {
	root := w.Repo.Dir()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info.Size())
	})
}

// AbsPath returns the absolute path of a tree-relative file path.
func (w *Workspace) AbsPath(relPath string) string {
	return filepath.Join(w.Repo.Dir(), filepath.FromSlash(relPath))
}
