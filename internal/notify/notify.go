// Package notify publishes pipeline outcomes to NATS JetStream so other
// systems can react to fresh or failed documentation runs.
package notify

import (
	"context"
	"time"
)

// Event is the published outcome of one pipeline run.
type Event struct {
	RunID     string    `json:"run_id"`
	Project   string    `json:"project"`
	Commit    string    `json:"commit"`
	Branch    string    `json:"branch"`
	Severity  string    `json:"severity,omitempty"`
	Degraded  bool      `json:"degraded,omitempty"`
	PullURL   string    `json:"pull_url,omitempty"`
	Stage     string    `json:"stage,omitempty"` // failing stage, failures only
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits run outcome events.
type Publisher interface {
	PublishCompleted(ctx context.Context, ev Event) error
	PublishFailed(ctx context.Context, ev Event) error
	Close()
}

// NoopPublisher drops every event; used when events are disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishCompleted(context.Context, Event) error { return nil }
func (NoopPublisher) PublishFailed(context.Context, Event) error    { return nil }
func (NoopPublisher) Close()                                        {}
