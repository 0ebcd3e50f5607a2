// Package git wraps go-git for the pipeline: clone/open/update, commit
// resolution, and the branch/commit/push operations delivery needs. All
// error text and progress output is sanitized before it can reach logs.
package git

import (
	"context"
	"log/slog"
	"os"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"git.home.luguber.info/inful/docdrift/internal/auth"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/retry"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
)

// DefaultBranch is assumed when a project names none.
const DefaultBranch = "main"

// Client performs git operations with a shared retry policy.
type Client struct {
	registry     *auth.Registry
	policy       retry.Policy
	shallowDepth int
}

// NewClient builds a client with the default retry policy.
func NewClient() *Client {
	return &Client{registry: auth.NewRegistry(), policy: retry.DefaultPolicy()}
}

// WithRetryPolicy overrides the retry policy (fluent helper).
func (c *Client) WithRetryPolicy(p retry.Policy) *Client { c.policy = p; return c }

// WithShallowDepth enables shallow clones. Change detection needs the first
// parent, so depths below 2 are coerced to 2.
func (c *Client) WithShallowDepth(depth int) *Client {
	if depth == 1 {
		depth = 2
	}
	c.shallowDepth = depth
	return c
}

// Repo is an opened checkout.
type Repo struct {
	repo *gogit.Repository
	path string
	url  string
	auth transport.AuthMethod
}

// CommitInfo identifies one resolved commit.
type CommitInfo struct {
	SHA       string
	ShortSHA  string
	Branch    string
	Author    string
	Message   string
	Timestamp time.Time
}

// Clone clones url into dir. Only transient failures (network, rate limit)
// are retried; auth and not-found failures surface immediately.
func (c *Client) Clone(ctx context.Context, dir, url, branch string, authCfg *config.AuthConfig) (*Repo, error) {
	method, err := c.registry.Method(authCfg)
	if err != nil {
		return nil, err
	}

	opts := &gogit.CloneOptions{
		URL:      url,
		Progress: sanitize.NewWriter(os.Stderr),
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	if c.shallowDepth > 0 {
		opts.Depth = c.shallowDepth
	}
	if method != nil {
		opts.Auth = method
	}

	var repo *gogit.Repository
	err = retry.Do(ctx, c.policy, "clone", IsTransient, func() error {
		_ = os.RemoveAll(dir)
		var cloneErr error
		repo, cloneErr = gogit.PlainCloneContext(ctx, dir, false, opts)
		return Classify(cloneErr, "clone", url)
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("repository cloned", logfields.Repository(sanitize.URL(url)), logfields.Path(dir))
	return &Repo{repo: repo, path: dir, url: url, auth: method}, nil
}

// RemoteHead resolves the tip of branch on the remote without cloning
// (ls-remote). Scheduled head-sync uses this to skip already-indexed commits.
func (c *Client) RemoteHead(ctx context.Context, url, branch string, authCfg *config.AuthConfig) (string, error) {
	method, err := c.registry.Method(authCfg)
	if err != nil {
		return "", err
	}

	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	opts := &gogit.ListOptions{}
	if method != nil {
		opts.Auth = method
	}

	var refs []*plumbing.Reference
	err = retry.Do(ctx, c.policy, "ls-remote", IsTransient, func() error {
		var listErr error
		refs, listErr = remote.ListContext(ctx, opts)
		return Classify(listErr, "ls-remote", url)
	})
	if err != nil {
		return "", err
	}

	if branch == "" {
		branch = DefaultBranch
	}
	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return ref.Hash().String(), nil
		}
	}
	return "", errors.NotFoundError("branch not found on remote").
		WithContext("branch", branch).
		WithContext("url", sanitize.URL(url)).
		Build()
}

// Open opens an existing checkout (local path mode; no credentials).
func (c *Client) Open(path string) (*Repo, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, Classify(err, "open", path)
	}
	return &Repo{repo: repo, path: path}, nil
}

// Path returns the checkout directory.
func (r *Repo) Path() string { return r.path }

// Repository exposes the underlying go-git handle for tree diffing.
func (r *Repo) Repository() *gogit.Repository { return r.repo }

// Update fetches from origin, retrying transient failures.
func (r *Repo) Update(ctx context.Context, policy retry.Policy) error {
	opts := &gogit.FetchOptions{
		RemoteName: "origin",
		Progress:   sanitize.NewWriter(os.Stderr),
	}
	if r.auth != nil {
		opts.Auth = r.auth
	}
	err := retry.Do(ctx, policy, "fetch", IsTransient, func() error {
		fetchErr := r.repo.FetchContext(ctx, opts)
		if fetchErr == gogit.NoErrAlreadyUpToDate {
			return nil
		}
		return Classify(fetchErr, "fetch", r.url)
	})
	return err
}

// Resolve maps (branch, rev) to a commit. An empty rev resolves the branch
// head; an empty branch falls back to HEAD.
func (r *Repo) Resolve(branch, rev string) (CommitInfo, error) {
	hash, err := r.resolveHash(branch, rev)
	if err != nil {
		return CommitInfo{}, err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, Classify(err, "resolve", rev)
	}
	if branch == "" {
		branch = DefaultBranch
	}
	return CommitInfo{
		SHA:       commit.Hash.String(),
		ShortSHA:  report.ShortSHA(commit.Hash.String()),
		Branch:    branch,
		Author:    commit.Author.Email,
		Message:   commit.Message,
		Timestamp: commit.Author.When.UTC(),
	}, nil
}

func (r *Repo) resolveHash(branch, rev string) (plumbing.Hash, error) {
	if rev != "" {
		hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			return plumbing.ZeroHash, Classify(err, "resolve", rev)
		}
		return *hash, nil
	}
	if branch != "" {
		// Local branch first, then the remote-tracking ref.
		for _, name := range []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(branch),
			plumbing.NewRemoteReferenceName("origin", branch),
		} {
			if ref, err := r.repo.Reference(name, true); err == nil {
				return ref.Hash(), nil
			}
		}
	}
	head, err := r.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, Classify(err, "resolve", branch)
	}
	return head.Hash(), nil
}

// CommitObject fetches a commit by SHA.
func (r *Repo) CommitObject(sha string) (*object.Commit, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, Classify(err, "commit", sha)
	}
	return commit, nil
}
