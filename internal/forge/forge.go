// Package forge talks to the hosting platforms behind tracked projects:
// webhook signature validation, push event parsing, and pull request
// ensure/update for delivered documentation branches.
package forge

import (
	"context"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Client is one configured forge instance.
type Client interface {
	// Type returns the provider kind (github, forgejo, gitea).
	Type() config.ForgeType

	// Name returns the configured instance name referenced by projects.
	Name() string

	// ValidateWebhook checks the HMAC signature of a webhook delivery.
	ValidateWebhook(payload []byte, signature string) bool

	// ParsePushEvent decodes a push webhook payload.
	ParsePushEvent(payload []byte) (*PushEvent, error)

	// EnsurePullRequest opens a pull request for the given head branch, or
	// updates the body of the one that already exists. It never opens a
	// duplicate and never posts comments.
	EnsurePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error)

	// CommitURL returns the web URL for a commit.
	CommitURL(owner, repo, sha string) string

	// BranchURL returns the web URL for a branch.
	BranchURL(owner, repo, branch string) string
}

// PushEvent is the normalized form of a push webhook payload.
type PushEvent struct {
	Ref     string   `json:"ref"`
	Branch  string   `json:"branch"`
	HeadSHA string   `json:"head_sha"`
	Deleted bool     `json:"deleted"`
	Repo    PushRepo `json:"repository"`
}

// PushRepo identifies the repository a push event belongs to. CloneURL is
// what projects are matched against.
type PushRepo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	CloneURL      string `json:"clone_url"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

// PullRequestSpec describes the pull request a delivery wants to exist.
type PullRequestSpec struct {
	Owner string
	Repo  string
	Head  string // source branch, e.g. auto/docs/abc1234
	Base  string // target branch
	Title string
	Body  string
}

// PullRequest is the ensured pull request.
type PullRequest struct {
	Number  int    `json:"number"`
	URL     string `json:"url"`
	Created bool   `json:"created"` // false when an existing PR was updated
}

// New builds a client for one forge configuration. Forgejo and Gitea share
// the same API surface.
func New(cfg *config.ForgeConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.ConfigError("forge configuration is nil").Build()
	}
	switch cfg.Type {
	case config.ForgeGitHub:
		return newGitHub(cfg)
	case config.ForgeForgejo, config.ForgeGitea:
		return newForgejo(cfg)
	default:
		return nil, errors.ConfigError("unsupported forge type").
			WithContext("type", string(cfg.Type)).
			WithContext("name", cfg.Name).
			Build()
	}
}

// Registry holds the configured forge instances keyed by name.
type Registry struct {
	clients map[string]Client
}

// NewRegistry builds clients for every configured forge.
func NewRegistry(forges []*config.ForgeConfig) (*Registry, error) {
	clients := make(map[string]Client, len(forges))
	for _, fc := range forges {
		client, err := New(fc)
		if err != nil {
			return nil, err
		}
		clients[client.Name()] = client
	}
	return &Registry{clients: clients}, nil
}

// Get returns the client for a forge name.
func (r *Registry) Get(name string) (Client, error) {
	client, ok := r.clients[name]
	if !ok {
		return nil, errors.NotFoundError("unknown forge").
			WithContext("name", name).
			Build()
	}
	return client, nil
}

// Names lists the registered forge names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
