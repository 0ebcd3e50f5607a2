package deliver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/testutil"
)

func testBundle() *artifact.Bundle {
	return &artifact.Bundle{Files: map[string][]byte{
		artifact.SummaryPath: []byte("# Documentation Update\n"),
		artifact.ReadmePath:  []byte("# Project\n"),
	}}
}

func testReport(sha string) *report.ImpactReport {
	return &report.ImpactReport{
		Context: report.Context{CommitSHA: sha, Branch: "main"},
		Summary: report.AnalysisSummary{HighestSeverity: report.SeverityMinor},
	}
}

func testAgent(forges *forge.Registry, cfg config.DeliveryConfig) *Agent {
	return NewAgent(git.NewClient(), forges, cfg).
		WithClock(func() time.Time { return testutil.FixedTime })
}

func TestDeliverCreatesBranchAndCommit(t *testing.T) {
	upstream, upstreamDir := testutil.InitRepo(t)
	sha := testutil.Commit(t, upstream, upstreamDir, "initial", map[string]string{"src/app.py": "x = 1\n"})
	short := sha[:7]

	result, err := testAgent(nil, config.DeliveryConfig{}).Deliver(t.Context(), Request{
		Project: config.ProjectConfig{ID: "p1", URL: upstreamDir, Branch: "main"},
		Bundle:  testBundle(),
		Report:  testReport(sha),
		Dir:     t.TempDir() + "/delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, "auto/docs/"+short, result.Branch)
	assert.NotEmpty(t, result.CommitSHA)
	assert.False(t, result.Degraded)
	assert.False(t, result.Skipped)
	assert.Nil(t, result.PullRequest)

	// The branch landed upstream with the bundle under the docs root.
	ref, err := upstream.Reference(plumbing.NewBranchReferenceName("auto/docs/"+short), true)
	require.NoError(t, err)
	commit, err := upstream.CommitObject(ref.Hash())
	require.NoError(t, err)
	assert.Equal(t, "docs: update for "+short, commit.Message)
	assert.Equal(t, "docdrift-bot", commit.Author.Name)

	tree, err := commit.Tree()
	require.NoError(t, err)
	_, err = tree.File("docs/summaries/summary.md")
	assert.NoError(t, err)
	_, err = tree.File("docs/README.generated.md")
	assert.NoError(t, err)
}

func TestDeliverHonorsDocsRootOverride(t *testing.T) {
	upstream, upstreamDir := testutil.InitRepo(t)
	sha := testutil.Commit(t, upstream, upstreamDir, "initial", map[string]string{"main.go": "package main\n"})

	result, err := testAgent(nil, config.DeliveryConfig{DocsRoot: "documentation"}).Deliver(t.Context(), Request{
		Project: config.ProjectConfig{ID: "p1", URL: upstreamDir, Branch: "main", DocsRoot: "site/docs"},
		Bundle:  testBundle(),
		Report:  testReport(sha),
		Dir:     t.TempDir() + "/delivery",
	})
	require.NoError(t, err)

	ref, err := upstream.Reference(plumbing.NewBranchReferenceName(result.Branch), true)
	require.NoError(t, err)
	commit, err := upstream.CommitObject(ref.Hash())
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)
	_, err = tree.File("site/docs/README.generated.md")
	assert.NoError(t, err, "project docs_root overrides the delivery default")
}

func TestDeliverDisabled(t *testing.T) {
	disabled := false
	result, err := testAgent(nil, config.DeliveryConfig{Enabled: &disabled}).Deliver(t.Context(), Request{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestDeliverConflictDegrades(t *testing.T) {
	upstream, upstreamDir := testutil.InitRepo(t)
	sha := testutil.Commit(t, upstream, upstreamDir, "initial", map[string]string{"a.txt": "1\n"})
	short := sha[:7]

	// A diverged docs branch already exists upstream.
	wt, err := upstream.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("auto/docs/" + short),
		Create: true,
	}))
	testutil.Commit(t, upstream, upstreamDir, "unrelated", map[string]string{"other.txt": "x\n"})
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("main"),
	}))

	result, err := testAgent(nil, config.DeliveryConfig{}).Deliver(t.Context(), Request{
		Project: config.ProjectConfig{ID: "p1", URL: upstreamDir, Branch: "main"},
		Bundle:  testBundle(),
		Report:  testReport(sha),
		Dir:     t.TempDir() + "/delivery",
	})
	require.NoError(t, err, "a diverged branch degrades the delivery, it does not fail the run")
	assert.True(t, result.Degraded)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "provider_conflict")
	assert.Nil(t, result.PullRequest)
}

func TestDeliverEnsuresPullRequest(t *testing.T) {
	upstream, upstreamDir := testutil.InitRepo(t)
	sha := testutil.Commit(t, upstream, upstreamDir, "initial", map[string]string{"a.txt": "1\n"})
	short := sha[:7]

	var prTitle, prBody, prHead string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			fmt.Fprint(w, "[]")
		case r.Method == http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			prTitle, prBody, prHead = body["title"], body["body"], body["head"]
			fmt.Fprint(w, `{"number": 4, "html_url": "https://forge.example.com/acme/svc/pulls/4"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	forges, err := forge.NewRegistry([]*config.ForgeConfig{{
		Name:   "fj",
		Type:   config.ForgeForgejo,
		APIURL: srv.URL + "/api/v1",
	}})
	require.NoError(t, err)

	result, err := testAgent(forges, config.DeliveryConfig{}).Deliver(t.Context(), Request{
		Project: config.ProjectConfig{
			ID: "p1", Owner: "acme", Repo: "svc",
			URL: upstreamDir, Branch: "main", Forge: "fj",
		},
		Bundle: testBundle(),
		Report: testReport(sha),
		Dir:    t.TempDir() + "/delivery",
	})
	require.NoError(t, err)
	require.NotNil(t, result.PullRequest)
	assert.True(t, result.PullRequest.Created)
	assert.Equal(t, 4, result.PullRequest.Number)
	assert.False(t, result.Degraded)

	assert.Equal(t, "docs: update for "+short+" (MINOR)", prTitle)
	assert.Equal(t, "# Documentation Update\n", prBody)
	assert.Equal(t, "auto/docs/"+short, prHead)
}

func TestDeliverForgeFailureDegrades(t *testing.T) {
	upstream, upstreamDir := testutil.InitRepo(t)
	sha := testutil.Commit(t, upstream, upstreamDir, "initial", map[string]string{"a.txt": "1\n"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	forges, err := forge.NewRegistry([]*config.ForgeConfig{{
		Name:   "fj",
		Type:   config.ForgeForgejo,
		APIURL: srv.URL + "/api/v1",
	}})
	require.NoError(t, err)

	result, err := testAgent(forges, config.DeliveryConfig{}).Deliver(t.Context(), Request{
		Project: config.ProjectConfig{
			ID: "p1", Owner: "acme", Repo: "svc",
			URL: upstreamDir, Branch: "main", Forge: "fj",
		},
		Bundle: testBundle(),
		Report: testReport(sha),
		Dir:    t.TempDir() + "/delivery",
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "pull_request_failed")
	assert.NotEmpty(t, result.CommitSHA, "the push itself succeeded")
}
