package forge

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
)

const githubDefaultAPIURL = "https://api.github.com"

// GitHubClient talks to GitHub (or GitHub Enterprise) through go-github.
type GitHubClient struct {
	name          string
	baseURL       string
	webhookSecret string
	gh            *github.Client
}

func newGitHub(cfg *config.ForgeConfig) (*GitHubClient, error) {
	httpClient := http.DefaultClient
	if token := apiToken(cfg.Auth); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	gh := github.NewClient(httpClient)

	if cfg.APIURL != "" && cfg.APIURL != githubDefaultAPIURL {
		var err error
		gh, err = gh.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, errors.ConfigError("invalid GitHub API URL").
				WithContext("api_url", sanitize.URL(cfg.APIURL)).
				WithContext("cause", sanitize.String(err.Error())).
				Build()
		}
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://github.com"
	}

	var secret string
	if cfg.Webhook != nil {
		secret = cfg.Webhook.Secret
	}

	return &GitHubClient{
		name:          cfg.Name,
		baseURL:       baseURL,
		webhookSecret: secret,
		gh:            gh,
	}, nil
}

func (c *GitHubClient) Type() config.ForgeType { return config.ForgeGitHub }
func (c *GitHubClient) Name() string           { return c.name }

// ValidateWebhook checks the delivery signature. sha256=<hex> preferred,
// sha1=<hex> legacy; bare digests are rejected for GitHub.
func (c *GitHubClient) ValidateWebhook(payload []byte, signature string) bool {
	return verifySignature(payload, signature, c.webhookSecret, false)
}

func (c *GitHubClient) ParsePushEvent(payload []byte) (*PushEvent, error) {
	return parsePushEvent(payload)
}

// EnsurePullRequest opens the head→base pull request or updates the body
// of the open one that already exists.
func (c *GitHubClient) EnsurePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error) {
	listOpts := &github.PullRequestListOptions{
		State: "open",
		Head:  spec.Owner + ":" + spec.Head,
		Base:  spec.Base,
	}
	existing, resp, err := c.gh.PullRequests.List(ctx, spec.Owner, spec.Repo, listOpts)
	if err != nil {
		return nil, wrapGitHub(err, resp, "failed to list pull requests")
	}

	if len(existing) > 0 {
		pr := existing[0]
		updated, resp, err := c.gh.PullRequests.Edit(ctx, spec.Owner, spec.Repo, pr.GetNumber(), &github.PullRequest{
			Title: github.String(spec.Title),
			Body:  github.String(spec.Body),
		})
		if err != nil {
			return nil, wrapGitHub(err, resp, "failed to update pull request")
		}
		return &PullRequest{Number: updated.GetNumber(), URL: updated.GetHTMLURL()}, nil
	}

	created, resp, err := c.gh.PullRequests.Create(ctx, spec.Owner, spec.Repo, &github.NewPullRequest{
		Title: github.String(spec.Title),
		Head:  github.String(spec.Head),
		Base:  github.String(spec.Base),
		Body:  github.String(spec.Body),
	})
	if err != nil {
		return nil, wrapGitHub(err, resp, "failed to create pull request")
	}
	return &PullRequest{Number: created.GetNumber(), URL: created.GetHTMLURL(), Created: true}, nil
}

func (c *GitHubClient) CommitURL(owner, repo, sha string) string {
	return fmt.Sprintf("%s/%s/%s/commit/%s", c.baseURL, owner, repo, sha)
}

func (c *GitHubClient) BranchURL(owner, repo, branch string) string {
	return fmt.Sprintf("%s/%s/%s/tree/%s", c.baseURL, owner, repo, branch)
}

// wrapGitHub classifies go-github errors by response status.
func wrapGitHub(err error, resp *github.Response, msg string) error {
	builder := errors.ForgeError(msg)
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			builder = errors.AuthError(msg)
		case resp.StatusCode == http.StatusNotFound:
			builder = errors.NotFoundError(msg)
		case resp.StatusCode == http.StatusTooManyRequests:
			builder = errors.NetworkError(msg).RateLimit()
		case resp.StatusCode >= 500:
			builder = errors.NetworkError(msg).Retryable()
		}
		builder = builder.WithContext("code", resp.StatusCode)
	} else {
		builder = errors.NetworkError(msg).Retryable()
	}
	return builder.
		WithContext("cause", sanitize.String(err.Error())).
		Build()
}

// apiToken extracts the API credential from an auth block. Token auth is
// the norm; basic falls back to the password field.
func apiToken(auth *config.AuthConfig) string {
	if auth == nil {
		return ""
	}
	if auth.Token != "" {
		return auth.Token
	}
	return auth.Password
}
