package forge

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/config"
)

// ForgejoClient talks to Forgejo and Gitea instances; both expose the same
// REST surface.
type ForgejoClient struct {
	name          string
	forgeType     config.ForgeType
	baseURL       string
	webhookSecret string
	api           *apiClient
}

func newForgejo(cfg *config.ForgeConfig) (*ForgejoClient, error) {
	var secret string
	if cfg.Webhook != nil {
		secret = cfg.Webhook.Secret
	}
	return &ForgejoClient{
		name:          cfg.Name,
		forgeType:     cfg.Type,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		webhookSecret: secret,
		api:           newAPIClient(cfg.APIURL, apiToken(cfg.Auth), "token "),
	}, nil
}

func (c *ForgejoClient) Type() config.ForgeType { return c.forgeType }
func (c *ForgejoClient) Name() string           { return c.name }

// ValidateWebhook checks the delivery signature. Bare SHA-1 digests are
// accepted for compatibility with older Forgejo/Gitea versions.
func (c *ForgejoClient) ValidateWebhook(payload []byte, signature string) bool {
	return verifySignature(payload, signature, c.webhookSecret, true)
}

func (c *ForgejoClient) ParsePushEvent(payload []byte) (*PushEvent, error) {
	return parsePushEvent(payload)
}

type forgejoPull struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
	Head    struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

const forgejoPageSize = 50

// EnsurePullRequest opens the head→base pull request or updates the body
// of the open one that already exists.
func (c *ForgejoClient) EnsurePullRequest(ctx context.Context, spec PullRequestSpec) (*PullRequest, error) {
	existing, err := c.findOpenPull(ctx, spec)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		endpoint := fmt.Sprintf("repos/%s/%s/pulls/%d", spec.Owner, spec.Repo, existing.Number)
		req, err := c.api.newRequest(ctx, http.MethodPatch, endpoint, map[string]string{
			"title": spec.Title,
			"body":  spec.Body,
		})
		if err != nil {
			return nil, err
		}
		var updated forgejoPull
		if err := c.api.do(req, &updated); err != nil {
			return nil, err
		}
		return &PullRequest{Number: updated.Number, URL: updated.HTMLURL}, nil
	}

	endpoint := fmt.Sprintf("repos/%s/%s/pulls", spec.Owner, spec.Repo)
	req, err := c.api.newRequest(ctx, http.MethodPost, endpoint, map[string]string{
		"title": spec.Title,
		"body":  spec.Body,
		"head":  spec.Head,
		"base":  spec.Base,
	})
	if err != nil {
		return nil, err
	}
	var created forgejoPull
	if err := c.api.do(req, &created); err != nil {
		return nil, err
	}
	return &PullRequest{Number: created.Number, URL: created.HTMLURL, Created: true}, nil
}

// findOpenPull pages through open pull requests looking for the head→base
// pair. The list endpoint has no head filter on older versions.
func (c *ForgejoClient) findOpenPull(ctx context.Context, spec PullRequestSpec) (*forgejoPull, error) {
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("repos/%s/%s/pulls?state=open&page=%d&limit=%d",
			spec.Owner, spec.Repo, page, forgejoPageSize)
		req, err := c.api.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		var pulls []forgejoPull
		if err := c.api.do(req, &pulls); err != nil {
			return nil, err
		}
		for i := range pulls {
			if pulls[i].Head.Ref == spec.Head && pulls[i].Base.Ref == spec.Base {
				return &pulls[i], nil
			}
		}
		if len(pulls) < forgejoPageSize {
			return nil, nil
		}
	}
}

func (c *ForgejoClient) CommitURL(owner, repo, sha string) string {
	return fmt.Sprintf("%s/%s/%s/commit/%s", c.baseURL, owner, repo, sha)
}

func (c *ForgejoClient) BranchURL(owner, repo, branch string) string {
	return fmt.Sprintf("%s/%s/%s/src/branch/%s", c.baseURL, owner, repo, branch)
}
