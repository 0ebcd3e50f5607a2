package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
)

func job(project, commit string) pipeline.Job {
	return pipeline.Job{
		RunID:   "run-" + project + "-" + commit,
		Project: config.ProjectConfig{ID: project},
		Commit:  commit,
		Trigger: "webhook",
	}
}

// tryNext pulls a job without blocking longer than the deadline.
func tryNext(t *testing.T, q *Queue) (pipeline.Job, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	return q.Next(ctx)
}

func TestQueueCoalescesPendingTriggers(t *testing.T) {
	q := NewQueue(0, nil)
	require.NoError(t, q.Enqueue(job("p1", "aaa")))
	require.NoError(t, q.Enqueue(job("p1", "bbb")))
	assert.Equal(t, 1, q.Depth(), "one pending slot per project")

	got, ok := tryNext(t, q)
	require.True(t, ok)
	assert.Equal(t, "bbb", got.Commit, "newest trigger wins the slot")
}

func TestQueueRecordsOneFollowUpWhileInflight(t *testing.T) {
	q := NewQueue(0, nil)
	require.NoError(t, q.Enqueue(job("p1", "aaa")))
	running, ok := tryNext(t, q)
	require.True(t, ok)

	// Two triggers during the run collapse into one follow-up.
	require.NoError(t, q.Enqueue(job("p1", "bbb")))
	require.NoError(t, q.Enqueue(job("p1", "ccc")))
	assert.Equal(t, 0, q.Depth(), "follow-ups wait for the running job")

	q.Done(running)
	follow, ok := tryNext(t, q)
	require.True(t, ok)
	assert.Equal(t, "ccc", follow.Commit)

	q.Done(follow)
	_, ok = tryNext(t, q)
	assert.False(t, ok, "exactly one follow-up re-run")
}

func TestQueueDropsTriggerForInflightCommit(t *testing.T) {
	q := NewQueue(0, nil)
	require.NoError(t, q.Enqueue(job("p1", "aaa")))
	running, ok := tryNext(t, q)
	require.True(t, ok)

	require.NoError(t, q.Enqueue(job("p1", "aaa")))
	q.Done(running)

	_, ok = tryNext(t, q)
	assert.False(t, ok, "the commit already built, no follow-up")
}

func TestQueueRejectsWhenFull(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Enqueue(job("p1", "aaa")))

	err := q.Enqueue(job("p2", "bbb"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryDaemon))

	// Coalescing into an existing slot never counts against capacity.
	require.NoError(t, q.Enqueue(job("p1", "ccc")))
}

func TestQueueOrdersProjectsFIFO(t *testing.T) {
	q := NewQueue(0, nil)
	require.NoError(t, q.Enqueue(job("p1", "aaa")))
	require.NoError(t, q.Enqueue(job("p2", "bbb")))
	require.NoError(t, q.Enqueue(job("p3", "ccc")))

	for _, want := range []string{"p1", "p2", "p3"} {
		got, ok := tryNext(t, q)
		require.True(t, ok)
		assert.Equal(t, want, got.Project.ID)
	}
}

func TestQueueNextHonorsContext(t *testing.T) {
	q := NewQueue(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Next(ctx)
	assert.False(t, ok)
}
