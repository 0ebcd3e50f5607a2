package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Run status values as reported by the projection.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunSummary is a read model for one pipeline run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Project      string        `json:"project"`
	Commit       string        `json:"commit"`
	Branch       string        `json:"branch"`
	Trigger      string        `json:"trigger"`
	Status       string        `json:"status"`
	Stage        string        `json:"stage,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Severity     string        `json:"severity,omitempty"`
	Degraded     bool          `json:"degraded,omitempty"`
	PullURL      string        `json:"pull_url,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events in the store.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunSummary
	history  []*RunSummary // newest first
	maxSize  int
	lastSync time.Time
}

// NewRunHistoryProjection creates a projection backed by the given store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		history: make([]*RunSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all stored events, typically at
// startup.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	p.history = make([]*RunSummary, 0, p.maxSize)

	for _, event := range events {
		p.applyLocked(event)
	}
	p.sortHistoryLocked()
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply folds one live event into the projection.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(event)
}

func (p *RunHistoryProjection) applyLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}

	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{
			RunID:     runID,
			Status:    RunStatusQueued,
			StartedAt: event.Timestamp(),
		}
		p.runs[runID] = summary
		p.history = append(p.history, summary)
		p.sortHistoryLocked()
		if len(p.history) > p.maxSize {
			p.history = p.history[:p.maxSize]
		}
	}

	switch event.Type() {
	case TypeRunQueued:
		var payload RunQueuedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.Project = payload.Project
			summary.Commit = payload.Commit
			summary.Branch = payload.Branch
			summary.Trigger = payload.Trigger
		}
		summary.Status = RunStatusQueued

	case TypeStageStarted:
		var payload StageStartedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.Stage = payload.Stage
		}
		summary.Status = RunStatusRunning

	case TypeRunCompleted:
		var payload RunCompletedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.Severity = payload.Severity
			summary.Degraded = payload.Degraded
			summary.PullURL = payload.PullURL
			summary.Duration = time.Duration(payload.DurationMS) * time.Millisecond
		}
		summary.Status = RunStatusCompleted
		done := event.Timestamp()
		summary.CompletedAt = &done

	case TypeRunFailed:
		var payload RunFailedPayload
		if json.Unmarshal(event.Payload(), &payload) == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		summary.Status = RunStatusFailed
		done := event.Timestamp()
		summary.CompletedAt = &done
	}
	p.pruneRunsLocked()
}

// pruneRunsLocked drops finished runs that fell out of the bounded history.
func (p *RunHistoryProjection) pruneRunsLocked() {
	kept := make(map[string]bool, len(p.history))
	for _, s := range p.history {
		kept[s.RunID] = true
	}
	for id, s := range p.runs {
		if kept[id] {
			continue
		}
		if s.Status == RunStatusRunning || s.Status == RunStatusQueued {
			continue
		}
		delete(p.runs, id)
	}
}

func (p *RunHistoryProjection) sortHistoryLocked() {
	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
}

// GetHistory returns the bounded run history, newest first.
func (p *RunHistoryProjection) GetHistory() []*RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*RunSummary, len(p.history))
	for i, s := range p.history {
		copied := *s
		out[i] = &copied
	}
	return out
}

// GetRun returns the summary for one run.
func (p *RunHistoryProjection) GetRun(runID string) (*RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[runID]
	if !ok {
		return nil, false
	}
	copied := *s
	return &copied, true
}

// ActiveRuns returns runs that are queued or running.
func (p *RunHistoryProjection) ActiveRuns() []*RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var active []*RunSummary
	for _, s := range p.history {
		if s.Status == RunStatusRunning || s.Status == RunStatusQueued {
			copied := *s
			active = append(active, &copied)
		}
	}
	return active
}

// LastSyncTime reports when Rebuild last ran.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
