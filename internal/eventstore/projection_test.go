package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T) func(*BaseEvent, error) *BaseEvent {
	return func(ev *BaseEvent, err error) *BaseEvent {
		t.Helper()
		require.NoError(t, err)
		return ev
	}
}

func TestProjectionLifecycle(t *testing.T) {
	p := NewRunHistoryProjection(nil, 10)

	p.Apply(mustEvent(t)(NewRunQueued("run-1", RunQueuedPayload{
		Project: "p1", Commit: "abc1234", Branch: "main", Trigger: "webhook",
	})))
	summary, ok := p.GetRun("run-1")
	require.True(t, ok)
	assert.Equal(t, RunStatusQueued, summary.Status)
	assert.Equal(t, "p1", summary.Project)

	p.Apply(mustEvent(t)(NewStageStarted("run-1", "fetching")))
	summary, _ = p.GetRun("run-1")
	assert.Equal(t, RunStatusRunning, summary.Status)
	assert.Equal(t, "fetching", summary.Stage)
	assert.Len(t, p.ActiveRuns(), 1)

	done := mustEvent(t)(NewRunCompleted("run-1", RunCompletedPayload{
		Severity: "MINOR", Degraded: false, DurationMS: 1500,
	}))
	assert.Contains(t, string(done.Payload()), `"duration_ms":1500`, "wire unit is plain milliseconds")
	p.Apply(done)
	summary, _ = p.GetRun("run-1")
	assert.Equal(t, RunStatusCompleted, summary.Status)
	assert.Equal(t, "MINOR", summary.Severity)
	assert.NotNil(t, summary.CompletedAt)
	assert.Equal(t, 1500*time.Millisecond, summary.Duration)
	assert.Empty(t, p.ActiveRuns())
}

func TestProjectionRunFailed(t *testing.T) {
	p := NewRunHistoryProjection(nil, 10)
	p.Apply(mustEvent(t)(NewRunQueued("run-1", RunQueuedPayload{Project: "p1"})))
	p.Apply(mustEvent(t)(NewRunFailed("run-1", "parsing", "parse_failed: bad syntax")))

	summary, ok := p.GetRun("run-1")
	require.True(t, ok)
	assert.Equal(t, RunStatusFailed, summary.Status)
	assert.Equal(t, "parsing", summary.ErrorStage)
	assert.Equal(t, "parse_failed: bad syntax", summary.ErrorMessage)
}

func TestProjectionRebuildFromStore(t *testing.T) {
	store := openTestStore(t)

	queued := mustEvent(t)(NewRunQueued("run-1", RunQueuedPayload{Project: "p1", Commit: "abc1234"}))
	require.NoError(t, store.Append(t.Context(), queued.RunID(), queued.Type(), queued.Payload(), nil))
	done := mustEvent(t)(NewRunCompleted("run-1", RunCompletedPayload{Severity: "PATCH"}))
	require.NoError(t, store.Append(t.Context(), done.RunID(), done.Type(), done.Payload(), nil))

	p := NewRunHistoryProjection(store, 10)
	require.NoError(t, p.Rebuild(t.Context()))

	summary, ok := p.GetRun("run-1")
	require.True(t, ok)
	assert.Equal(t, RunStatusCompleted, summary.Status)
	assert.Equal(t, "PATCH", summary.Severity)
	assert.False(t, p.LastSyncTime().IsZero())

	history := p.GetHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "run-1", history[0].RunID)
}

func TestProjectionBoundedHistory(t *testing.T) {
	p := NewRunHistoryProjection(nil, 2)
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		p.Apply(mustEvent(t)(NewRunQueued(id, RunQueuedPayload{Project: "p1"})))
		p.Apply(mustEvent(t)(NewRunCompleted(id, RunCompletedPayload{Severity: "PATCH"})))
	}
	assert.Len(t, p.GetHistory(), 2)
}
