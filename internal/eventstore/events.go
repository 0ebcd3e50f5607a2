package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Event type names as persisted in the store.
const (
	TypeRunQueued    = "RunQueued"
	TypeStageStarted = "StageStarted"
	TypeRunCompleted = "RunCompleted"
	TypeRunFailed    = "RunFailed"
)

// RunQueuedPayload describes the trigger that enqueued a run.
type RunQueuedPayload struct {
	Project string `json:"project"`
	Commit  string `json:"commit"`
	Branch  string `json:"branch"`
	Trigger string `json:"trigger"` // "webhook", "manual", "schedule"
}

// StageStartedPayload marks the transition into a pipeline stage.
type StageStartedPayload struct {
	Stage string `json:"stage"`
}

// RunCompletedPayload records the outcome of a successful run.
type RunCompletedPayload struct {
	Severity   string `json:"severity"`
	Degraded   bool   `json:"degraded"`
	PullURL    string `json:"pull_url,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// RunFailedPayload records where and why a run failed.
type RunFailedPayload struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// NewRunQueued builds a RunQueued event.
func NewRunQueued(runID string, p RunQueuedPayload) (*BaseEvent, error) {
	return newEvent(runID, TypeRunQueued, p)
}

// NewStageStarted builds a StageStarted event.
func NewStageStarted(runID, stage string) (*BaseEvent, error) {
	return newEvent(runID, TypeStageStarted, StageStartedPayload{Stage: stage})
}

// NewRunCompleted builds a RunCompleted event.
func NewRunCompleted(runID string, p RunCompletedPayload) (*BaseEvent, error) {
	return newEvent(runID, TypeRunCompleted, p)
}

// NewRunFailed builds a RunFailed event.
func NewRunFailed(runID, stage, errMsg string) (*BaseEvent, error) {
	return newEvent(runID, TypeRunFailed, RunFailedPayload{Stage: stage, Error: errMsg})
}

func newEvent(runID, eventType string, payload any) (*BaseEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.StoreError("failed to marshal event payload").
			WithContext("run_id", runID).
			WithContext("type", eventType).
			Build()
	}
	return &BaseEvent{
		EventRunID:     runID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   body,
	}, nil
}
