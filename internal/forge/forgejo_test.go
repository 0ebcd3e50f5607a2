package forge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

func forgejoAgainst(t *testing.T, srv *httptest.Server) *ForgejoClient {
	t.Helper()
	c, err := newForgejo(&config.ForgeConfig{
		Name:    "fj",
		Type:    config.ForgeForgejo,
		APIURL:  srv.URL + "/api/v1",
		BaseURL: "https://forge.example.com",
		Auth:    &config.AuthConfig{Type: config.AuthTypeToken, Token: "api-token"},
	})
	require.NoError(t, err)
	return c
}

func TestForgejoEnsurePullRequestCreates(t *testing.T) {
	var sawAuth string
	var createBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/repos/acme/svc/pulls":
			fmt.Fprint(w, "[]")
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/repos/acme/svc/pulls":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
			fmt.Fprint(w, `{"number": 7, "html_url": "https://forge.example.com/acme/svc/pulls/7"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	pr, err := forgejoAgainst(t, srv).EnsurePullRequest(t.Context(), PullRequestSpec{
		Owner: "acme", Repo: "svc",
		Head: "auto/docs/abc1234", Base: "main",
		Title: "docs: update for abc1234 (MINOR)",
		Body:  "# Documentation Update\n",
	})
	require.NoError(t, err)
	assert.True(t, pr.Created)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "https://forge.example.com/acme/svc/pulls/7", pr.URL)
	assert.Equal(t, "token api-token", sawAuth)
	assert.Equal(t, "auto/docs/abc1234", createBody["head"])
	assert.Equal(t, "main", createBody["base"])
}

func TestForgejoEnsurePullRequestUpdatesExisting(t *testing.T) {
	var patched map[string]string
	var createCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/repos/acme/svc/pulls":
			fmt.Fprint(w, `[
				{"number": 3, "head": {"ref": "other/branch"}, "base": {"ref": "main"}},
				{"number": 9, "head": {"ref": "auto/docs/abc1234"}, "base": {"ref": "main"},
				 "html_url": "https://forge.example.com/acme/svc/pulls/9"}
			]`)
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/repos/acme/svc/pulls/9":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			fmt.Fprint(w, `{"number": 9, "html_url": "https://forge.example.com/acme/svc/pulls/9"}`)
		case r.Method == http.MethodPost:
			createCalls++
			http.Error(w, "must not create a duplicate", http.StatusConflict)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	pr, err := forgejoAgainst(t, srv).EnsurePullRequest(t.Context(), PullRequestSpec{
		Owner: "acme", Repo: "svc",
		Head: "auto/docs/abc1234", Base: "main",
		Title: "docs: update for abc1234 (MAJOR)",
		Body:  "updated body",
	})
	require.NoError(t, err)
	assert.False(t, pr.Created)
	assert.Equal(t, 9, pr.Number)
	assert.Equal(t, "updated body", patched["body"])
	assert.Zero(t, createCalls)
}

func TestForgejoErrorClassification(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", status)
	}))
	defer srv.Close()
	client := forgejoAgainst(t, srv)
	spec := PullRequestSpec{Owner: "acme", Repo: "svc", Head: "h", Base: "main"}

	_, err := client.EnsurePullRequest(t.Context(), spec)
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.True(t, ce.IsCategory(errors.CategoryNetwork))
	assert.True(t, ce.CanRetry())

	status = http.StatusUnauthorized
	_, err = client.EnsurePullRequest(t.Context(), spec)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryAuth))

	status = http.StatusNotFound
	_, err = client.EnsurePullRequest(t.Context(), spec)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestForgeURLBuilders(t *testing.T) {
	fj := forgejoClient(t, "")
	assert.Equal(t,
		"https://forge.example.com/acme/svc/commit/0123456",
		fj.CommitURL("acme", "svc", "0123456"))
	assert.Equal(t,
		"https://forge.example.com/acme/svc/src/branch/main",
		fj.BranchURL("acme", "svc", "main"))

	gh := githubClient(t, "")
	assert.Equal(t,
		"https://github.com/acme/svc/commit/0123456",
		gh.CommitURL("acme", "svc", "0123456"))
	assert.Equal(t,
		"https://github.com/acme/svc/tree/main",
		gh.BranchURL("acme", "svc", "main"))
}

func TestRegistryDispatch(t *testing.T) {
	reg, err := NewRegistry([]*config.ForgeConfig{
		{Name: "gh", Type: config.ForgeGitHub, BaseURL: "https://github.com"},
		{Name: "fj", Type: config.ForgeForgejo, APIURL: "https://forge.example.com/api/v1"},
	})
	require.NoError(t, err)

	gh, err := reg.Get("gh")
	require.NoError(t, err)
	assert.Equal(t, config.ForgeGitHub, gh.Type())

	fj, err := reg.Get("fj")
	require.NoError(t, err)
	assert.Equal(t, config.ForgeForgejo, fj.Type())

	_, err = reg.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	_, err = New(&config.ForgeConfig{Name: "x", Type: "bitbucket"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestGiteaUsesForgejoClient(t *testing.T) {
	c, err := New(&config.ForgeConfig{Name: "g", Type: config.ForgeGitea, APIURL: "https://gitea.example.com/api/v1"})
	require.NoError(t, err)
	assert.Equal(t, config.ForgeGitea, c.Type())
	assert.IsType(t, &ForgejoClient{}, c)
}
