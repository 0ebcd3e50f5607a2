// Package deliver pushes a generated documentation bundle back to the
// upstream repository: a docs branch from the target branch head, one
// commit, a non-forced push, and an ensured pull request. Conflicts and
// forge failures degrade the delivery instead of failing the run.
package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/retry"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
)

// Agent delivers bundles for one configured installation.
type Agent struct {
	git    *git.Client
	forges *forge.Registry
	cfg    config.DeliveryConfig
	policy retry.Policy
	now    func() time.Time
}

// NewAgent builds a delivery agent. forges may be nil when no forge is
// configured; deliveries then stop after the push.
func NewAgent(gitClient *git.Client, forges *forge.Registry, cfg config.DeliveryConfig) *Agent {
	return &Agent{
		git:    gitClient,
		forges: forges,
		cfg:    cfg,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
}

// WithClock overrides the commit timestamp source (tests).
func (a *Agent) WithClock(now func() time.Time) *Agent { a.now = now; return a }

// Request is one delivery: the project, the bundle to place, and the
// impact report the bundle was generated from.
type Request struct {
	Project config.ProjectConfig
	Bundle  *artifact.Bundle
	Report  *report.ImpactReport
	Dir     string // checkout directory, usually a workspace run dir
}

// Result describes what the delivery achieved.
type Result struct {
	Branch      string             `json:"branch"`
	CommitSHA   string             `json:"commit_sha"`
	PullRequest *forge.PullRequest `json:"pull_request,omitempty"`
	Degraded    bool               `json:"degraded"`
	Skipped     bool               `json:"skipped"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// Deliver runs the full branch→commit→push→PR sequence. A non-fast-forward
// push or a forge failure returns a degraded result, not an error; hard
// failures (clone, auth, exhausted retries) return the error.
func (a *Agent) Deliver(ctx context.Context, req Request) (*Result, error) {
	if a.cfg.Enabled != nil && !*a.cfg.Enabled {
		return &Result{Skipped: true}, nil
	}

	short := req.Report.ShortSHA()
	branch := a.branchName(short)
	target := req.Project.Branch
	if target == "" {
		target = git.DefaultBranch
	}

	repo, err := a.git.Clone(ctx, req.Dir, req.Project.URL, target, req.Project.Auth)
	if err != nil {
		return nil, err
	}

	head, err := repo.Resolve(target, "")
	if err != nil {
		return nil, err
	}
	if err := repo.CheckoutBranch(branch, head.SHA); err != nil {
		return nil, err
	}

	if err := repo.WriteFiles(a.placeFiles(req)); err != nil {
		return nil, err
	}

	message := "docs: update for " + short
	sha, err := repo.CommitAll(message, a.commitAuthor(), a.commitEmail(), a.now())
	if err != nil {
		return nil, err
	}
	if sha == "" {
		slog.Info("documentation already up to date",
			logfields.Project(req.Project.ID), logfields.Branch(branch))
		return &Result{Branch: branch, Skipped: true}, nil
	}

	result := &Result{Branch: branch, CommitSHA: sha}

	if err := repo.Push(ctx, a.policy, branch); err != nil {
		if git.IsConflict(err) {
			slog.Warn("docs branch diverged, delivery degraded",
				logfields.Project(req.Project.ID), logfields.Branch(branch), logfields.Error(err))
			result.Degraded = true
			result.Warnings = append(result.Warnings, "provider_conflict: docs branch diverged upstream")
			return result, nil
		}
		return nil, err
	}

	pr, warn := a.ensurePR(ctx, req, branch, target, short)
	if warn != "" {
		result.Degraded = true
		result.Warnings = append(result.Warnings, warn)
	}
	result.PullRequest = pr
	return result, nil
}

// ensurePR opens or updates the docs pull request. Failures downgrade to a
// warning so the run can finish; an unconfigured forge is not a failure.
func (a *Agent) ensurePR(ctx context.Context, req Request, branch, target, short string) (*forge.PullRequest, string) {
	if a.forges == nil || req.Project.Forge == "" {
		return nil, ""
	}
	client, err := a.forges.Get(req.Project.Forge)
	if err != nil {
		return nil, "forge not configured: " + req.Project.Forge
	}

	spec := forge.PullRequestSpec{
		Owner: req.Project.Owner,
		Repo:  req.Project.Repo,
		Head:  branch,
		Base:  target,
		Title: fmt.Sprintf("docs: update for %s (%s)", short, req.Report.Summary.HighestSeverity),
		Body:  sanitize.String(string(req.Bundle.Summary())),
	}

	var pr *forge.PullRequest
	err = retry.Do(ctx, a.policy, "ensure-pr", git.IsTransient, func() error {
		var prErr error
		pr, prErr = client.EnsurePullRequest(ctx, spec)
		return prErr
	})
	if err != nil {
		slog.Warn("pull request delivery failed",
			logfields.Project(req.Project.ID), logfields.Branch(branch), logfields.Error(err))
		return nil, "pull_request_failed: " + sanitize.String(err.Error())
	}

	slog.Info("pull request ensured",
		logfields.Project(req.Project.ID), logfields.Branch(branch),
		slog.Int("pr_number", pr.Number), slog.Bool("created", pr.Created))
	return pr, ""
}

// placeFiles maps bundle paths under the configured docs root. Bundle
// paths under docs/ are re-rooted; everything else nests below the root.
func (a *Agent) placeFiles(req Request) map[string][]byte {
	root := req.Project.DocsRoot
	if root == "" {
		root = a.cfg.DocsRoot
	}
	if root == "" {
		root = "docs"
	}

	files := make(map[string][]byte, len(req.Bundle.Files))
	for p, body := range req.Bundle.Files {
		rel := strings.TrimPrefix(p, "docs/")
		files[path.Join(root, rel)] = body
	}
	return files
}

func (a *Agent) branchName(short string) string {
	prefix := a.cfg.BranchPrefix
	if prefix == "" {
		prefix = "auto/docs/"
	}
	return prefix + short
}

func (a *Agent) commitAuthor() string {
	if a.cfg.CommitAuthor != "" {
		return a.cfg.CommitAuthor
	}
	return "docdrift-bot"
}

func (a *Agent) commitEmail() string {
	if a.cfg.CommitEmail != "" {
		return a.cfg.CommitEmail
	}
	return "docdrift@localhost"
}
