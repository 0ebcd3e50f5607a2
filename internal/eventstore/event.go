package eventstore

import "time"

// Event is one persisted pipeline run transition.
type Event interface {
	// ID is the store-assigned sequence number.
	ID() int64
	// RunID identifies the pipeline run the event belongs to.
	RunID() string
	// Type names the transition, e.g. "RunQueued" or "StageStarted".
	Type() string
	// Timestamp is when the event was recorded.
	Timestamp() time.Time
	// Payload is the JSON-encoded event body.
	Payload() []byte
	// Metadata carries free-form annotations.
	Metadata() map[string]string
}

// BaseEvent is the common persisted representation.
type BaseEvent struct {
	EventID        int64             `json:"id"`
	EventRunID     string            `json:"run_id"`
	EventType      string            `json:"type"`
	EventTimestamp time.Time         `json:"timestamp"`
	EventPayload   []byte            `json:"payload"`
	EventMetadata  map[string]string `json:"metadata,omitempty"`
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) RunID() string               { return e.EventRunID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }
