package git

import (
	"context"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/retry"
)

// CheckoutBranch creates (or resets) a local branch at the given commit and
// checks it out.
func (r *Repo) CheckoutBranch(name, fromSHA string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return Classify(err, "worktree", name)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Hash:   plumbing.NewHash(fromSHA),
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
		Force:  true,
	})
	if err != nil {
		return Classify(err, "checkout", name)
	}
	return nil
}

// WriteFiles places files (path → content, relative to the checkout root)
// into the worktree.
func (r *Repo) WriteFiles(files map[string][]byte) error {
	for rel, data := range files {
		abs := filepath.Join(r.path, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
			return errors.FileSystemError("failed to create directory for delivery file").
				WithContext("path", rel).
				Build()
		}
		if err := os.WriteFile(abs, data, 0o644); err != nil {
			return errors.FileSystemError("failed to write delivery file").
				WithContext("path", rel).
				Build()
		}
	}
	return nil
}

// CommitAll stages every change and commits. Returns the new commit SHA;
// a clean worktree yields ("", nil) so callers can skip empty deliveries.
func (r *Repo) CommitAll(message, author, email string, when time.Time) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", Classify(err, "worktree", "")
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", Classify(err, "add", "")
	}
	status, err := wt.Status()
	if err != nil {
		return "", Classify(err, "status", "")
	}
	if status.IsClean() {
		return "", nil
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: author, Email: email, When: when},
	})
	if err != nil {
		return "", Classify(err, "commit", "")
	}
	return hash.String(), nil
}

// Push pushes one branch with an explicit refspec and upstream tracking.
// Never force: a non-fast-forward rejection comes back as a conflict the
// caller downgrades to a warning. Transient failures retry under the policy.
func (r *Repo) Push(ctx context.Context, policy retry.Policy, branch string) error {
	refspec := gitconfig.RefSpec("refs/heads/" + branch + ":refs/heads/" + branch)
	opts := &gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refspec},
	}
	if r.auth != nil {
		opts.Auth = r.auth
	}
	return retry.Do(ctx, policy, "push", IsTransient, func() error {
		pushErr := r.repo.PushContext(ctx, opts)
		if pushErr == gogit.NoErrAlreadyUpToDate {
			return nil
		}
		return Classify(pushErr, "push", r.url)
	})
}
