package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
	"git.home.luguber.info/inful/docdrift/internal/testutil"
)

func TestHeadSyncEnqueuesUnindexedHead(t *testing.T) {
	upstream, dir := testutil.InitRepo(t)
	sha := testutil.Commit(t, upstream, dir, "initial", map[string]string{"a.txt": "1\n"})

	idx, err := index.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	projects := []config.ProjectConfig{{ID: "p1", Owner: "acme", Repo: "widgets", URL: dir, Branch: "main"}}
	var queued []pipeline.Job
	h := &HeadSync{
		git:      git.NewClient(),
		idx:      idx,
		projects: func() []config.ProjectConfig { return projects },
		enqueue:  func(j pipeline.Job) error { queued = append(queued, j); return nil },
	}

	h.runOnce(t.Context())
	require.Len(t, queued, 1)
	assert.Equal(t, sha, queued[0].Commit)
	assert.Equal(t, "schedule", queued[0].Trigger)
	assert.NotEmpty(t, queued[0].RunID)

	// Once the head is indexed the next tick stays quiet.
	require.NoError(t, idx.UpsertProject(t.Context(), index.Project{
		ID: "p1", Name: "Widgets", Owner: "acme", Repo: "widgets", URL: dir, Branch: "main",
	}))
	require.NoError(t, idx.UpsertVersion(t.Context(), index.Version{
		ProjectID: "p1", CommitID: sha, Branch: "main",
	}))
	h.runOnce(t.Context())
	assert.Len(t, queued, 1)
}

func TestHeadSyncSkipsDisabledProjects(t *testing.T) {
	idx, err := index.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	off := false
	projects := []config.ProjectConfig{{ID: "p1", URL: "https://example.com/x.git", AutoGenerate: &off}}
	var queued []pipeline.Job
	h := &HeadSync{
		git:      git.NewClient(),
		idx:      idx,
		projects: func() []config.ProjectConfig { return projects },
		enqueue:  func(j pipeline.Job) error { queued = append(queued, j); return nil },
	}

	h.runOnce(t.Context())
	assert.Empty(t, queued)
}

func TestHeadSyncToleratesUnreachableRemote(t *testing.T) {
	idx, err := index.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	upstream, dir := testutil.InitRepo(t)
	sha := testutil.Commit(t, upstream, dir, "initial", map[string]string{"a.txt": "1\n"})

	projects := []config.ProjectConfig{
		{ID: "broken", URL: t.TempDir() + "/does-not-exist", Branch: "main"},
		{ID: "ok", URL: dir, Branch: "main"},
	}
	var queued []pipeline.Job
	h := &HeadSync{
		git:      git.NewClient(),
		idx:      idx,
		projects: func() []config.ProjectConfig { return projects },
		enqueue:  func(j pipeline.Job) error { queued = append(queued, j); return nil },
	}

	h.runOnce(t.Context())
	require.Len(t, queued, 1, "one broken remote must not starve the rest")
	assert.Equal(t, "ok", queued[0].Project.ID)
	assert.Equal(t, sha, queued[0].Commit)
}

func TestNewHeadSyncRejectsBadSchedule(t *testing.T) {
	_, err := NewHeadSync("not a cron", git.NewClient(), nil,
		func() []config.ProjectConfig { return nil },
		func(pipeline.Job) error { return nil })
	require.Error(t, err)
}

func TestNewHeadSyncStartStop(t *testing.T) {
	h, err := NewHeadSync("0 */4 * * *", git.NewClient(), nil,
		func() []config.ProjectConfig { return nil },
		func(pipeline.Job) error { return nil })
	require.NoError(t, err)
	h.Start()
	require.NoError(t, h.Stop())
}
