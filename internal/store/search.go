package store

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/docdrift/internal/index"
)

// SearchQuery filters stored documentation. Text is matched case-insensitively
// (Unicode case folding) against markdown bodies; the remaining predicates
// are ANDed against the index row.
type SearchQuery struct {
	Text   string
	Branch string
	Commit string
	Tags   []string
	Limit  int // max hits; 0 means 50
}

// SearchHit is one matching line in a stored document.
type SearchHit struct {
	Commit  string `json:"commit_id"`
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
	Line    int    `json:"line"`
}

const (
	defaultSearchLimit = 50
	snippetMax         = 160
)

// Search scans the markdown artifacts of the versions matching the query
// predicates, newest version first.
func (s *ArtifactStore) Search(ctx context.Context, projectID string, q SearchQuery) ([]SearchHit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	versions, err := s.idx.ListVersions(ctx, projectID)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	needle := fold.String(q.Text)

	hits := []SearchHit{}
	for _, v := range versions {
		if !matchesVersion(v, q) {
			continue
		}
		docs, err := s.Documents(ctx, projectID, v.CommitID)
		if err != nil {
			return nil, err
		}
		for _, path := range sortedKeys(docs) {
			for i, line := range strings.Split(string(docs[path]), "\n") {
				if needle != "" && !strings.Contains(fold.String(line), needle) {
					continue
				}
				if needle == "" {
					break // text-less queries match versions, not lines
				}
				hits = append(hits, SearchHit{
					Commit:  v.CommitID,
					Path:    path,
					Snippet: snippet(line),
					Line:    i + 1,
				})
				if len(hits) >= limit {
					return hits, nil
				}
			}
		}
	}
	return hits, nil
}

func matchesVersion(v index.Version, q SearchQuery) bool {
	if q.Branch != "" && v.Branch != q.Branch {
		return false
	}
	if q.Commit != "" && !strings.HasPrefix(v.CommitID, q.Commit) {
		return false
	}
	for _, want := range q.Tags {
		found := false
		for _, have := range v.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// snippet caps the hit line, backing up to a rune boundary so a multi-byte
// character is never split.
func snippet(line string) string {
	line = strings.TrimSpace(line)
	if len(line) <= snippetMax {
		return line
	}
	cut := snippetMax
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Stable hit ordering within a version.
	sort.Strings(keys)
	return keys
}
