// Package metrics records pipeline observability signals. The Recorder
// interface keeps the pipeline decoupled from Prometheus; NoopRecorder is
// the default when monitoring is disabled.
package metrics

import "time"

// ResultLabel is the outcome of one stage.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// OutcomeLabel is the final status of one run.
type OutcomeLabel string

const (
	OutcomeCompleted OutcomeLabel = "completed"
	OutcomeDegraded  OutcomeLabel = "degraded"
	OutcomeFailed    OutcomeLabel = "failed"
)

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome OutcomeLabel)
	IncWebhook(provider string, accepted bool)
	IncQueueCoalesced()
	SetQueueDepth(n int)
	IncDeliveryConflict()
	IncRetry(stage string)
}

// NoopRecorder drops every measurement.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(OutcomeLabel)                 {}
func (NoopRecorder) IncWebhook(string, bool)                    {}
func (NoopRecorder) IncQueueCoalesced()                         {}
func (NoopRecorder) SetQueueDepth(int)                          {}
func (NoopRecorder) IncDeliveryConflict()                       {}
func (NoopRecorder) IncRetry(string)                            {}
