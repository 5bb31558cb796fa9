package gitrepo

import (
	"context"
	"sort"
	"strings"
)

// AuthorLines is the number of lines of one file attributed to one author.
type AuthorLines struct {
	AuthorMail string
	Lines      int64
}

// Blame attributes every line of the file at the current checkout to an
// author and returns per-author line counts, sorted by author for stable
// output. Whitespace-only changes are ignored and moved or copied lines are
// attributed to their original author (-w -C -M).
func (g GitDir) Blame(ctx context.Context, path string) ([]AuthorLines, error) {
	out, err := g.Git(ctx, "blame", "-w", "-C", "-M", "--line-porcelain", "--", path)
	if err != nil {
		return nil, err
	}
	return parseBlamePorcelain(out), nil
}

// parseBlamePorcelain counts author-mail headers in line-porcelain output.
// The porcelain format repeats the full header for every line, so the
// number of author-mail occurrences equals the number of attributed lines.
func parseBlamePorcelain(out string) []AuthorLines {
	counts := make(map[string]int64)
	for _, line := range strings.Split(out, "\n") {
		mail, ok := strings.CutPrefix(line, "author-mail ")
		if !ok {
			continue
		}
		mail = strings.TrimPrefix(mail, "<")
		mail = strings.TrimSuffix(mail, ">")
		counts[mail]++
	}

	result := make([]AuthorLines, 0, len(counts))
	for mail, lines := range counts {
		result = append(result, AuthorLines{AuthorMail: mail, Lines: lines})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AuthorMail < result[j].AuthorMail
	})
	return result
}
