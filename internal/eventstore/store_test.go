package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func appendEvent(t *testing.T, store Store, runID, eventType string, payload []byte) {
	t.Helper()
	require.NoError(t, store.Append(t.Context(), runID, eventType, payload, nil))
}

func TestAppendAndGetByRunID(t *testing.T) {
	store := openTestStore(t)

	ev, err := NewRunQueued("run-1", RunQueuedPayload{
		Project: "p1", Commit: "abc1234", Branch: "main", Trigger: "webhook",
	})
	require.NoError(t, err)
	appendEvent(t, store, ev.RunID(), ev.Type(), ev.Payload())
	appendEvent(t, store, "run-1", TypeStageStarted, []byte(`{"stage":"fetching"}`))
	appendEvent(t, store, "run-2", TypeRunQueued, []byte(`{"project":"p2"}`))

	events, err := store.GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeRunQueued, events[0].Type())
	assert.Equal(t, TypeStageStarted, events[1].Type())
	assert.Equal(t, "run-1", events[0].RunID())
}

func TestGetRange(t *testing.T) {
	store := openTestStore(t)
	appendEvent(t, store, "run-1", TypeRunQueued, []byte(`{}`))
	appendEvent(t, store, "run-2", TypeRunQueued, []byte(`{}`))

	events, err := store.GetRange(t.Context(), time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = store.GetRange(t.Context(), time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMetadataRoundTrip(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Append(t.Context(), "run-1", TypeStageStarted,
		[]byte(`{"stage":"parsing"}`), map[string]string{"worker": "2"}))

	events, err := store.GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]string{"worker": "2"}, events[0].Metadata())
}
