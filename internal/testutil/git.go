// Package testutil holds shared test fixtures for packages that need real
// git repositories.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FixedTime keeps commit timestamps deterministic across test runs.
var FixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// InitRepo initializes an empty repository with a worktree in a temp dir.
func InitRepo(t *testing.T) (*gogit.Repository, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	return repo, dir
}

// Commit writes the given files (relative path to content), stages them, and
// commits. Deleted files are passed with empty content via Remove first.
func Commit(t *testing.T, repo *gogit.Repository, dir, message string, files map[string]string) string {
	t.Helper()

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for rel, content := range files {
		abs := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
		if _, err := w.Add(rel); err != nil {
			t.Fatalf("add %s: %v", rel, err)
		}
	}
	hash, err := w.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: FixedTime},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

// Remove deletes files from the worktree and stages the deletion. Combine
// with Commit to produce a deletion commit.
func Remove(t *testing.T, repo *gogit.Repository, dir string, paths ...string) {
	t.Helper()

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for _, rel := range paths {
		if _, err := w.Remove(rel); err != nil {
			t.Fatalf("remove %s: %v", rel, err)
		}
	}
}

// CommitStaged commits whatever is already staged.
func CommitStaged(t *testing.T, repo *gogit.Repository, message string) string {
	t.Helper()

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	hash, err := w.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: FixedTime},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

// WriteBinary writes raw bytes (possibly invalid UTF-8) and stages the file.
func WriteBinary(t *testing.T, repo *gogit.Repository, dir, rel string, data []byte) {
	t.Helper()

	abs := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := w.Add(rel); err != nil {
		t.Fatalf("add %s: %v", rel, err)
	}
}
