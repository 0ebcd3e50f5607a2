package daemon

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/metrics"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
)

// Queue admits pipeline jobs with per-project coalescing.
//
// Each project holds at most one pending slot: a newer trigger replaces the
// older one rather than queueing behind it. While a project's job is running,
// new triggers for a different commit record exactly one follow-up re-run;
// triggers for the commit already in flight are dropped.
type Queue struct {
	mu       sync.Mutex
	pending  map[string]pipeline.Job
	order    []string
	inflight map[string]string // key -> commit currently running
	followup map[string]pipeline.Job
	wake     chan struct{}
	max      int
	recorder metrics.Recorder
}

// NewQueue builds a queue bounded to max pending projects (0 means unbounded).
func NewQueue(max int, recorder metrics.Recorder) *Queue {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Queue{
		pending:  make(map[string]pipeline.Job),
		inflight: make(map[string]string),
		followup: make(map[string]pipeline.Job),
		wake:     make(chan struct{}, 1),
		max:      max,
		recorder: recorder,
	}
}

// Enqueue admits a job. Coalesced and dropped triggers return nil; only a
// full queue rejects.
func (q *Queue) Enqueue(job pipeline.Job) error {
	key := job.Key()
	q.mu.Lock()
	defer q.mu.Unlock()

	if commit, running := q.inflight[key]; running {
		if job.Commit != "" && job.Commit == commit {
			// Already building this exact commit.
			q.recorder.IncQueueCoalesced()
			return nil
		}
		if _, ok := q.followup[key]; ok {
			q.recorder.IncQueueCoalesced()
		}
		q.followup[key] = job
		return nil
	}

	if _, ok := q.pending[key]; ok {
		// Newest trigger wins the pending slot.
		q.pending[key] = job
		q.recorder.IncQueueCoalesced()
		return nil
	}

	if q.max > 0 && len(q.pending) >= q.max {
		return errors.DaemonError("job queue is full").
			WithContext("project", key).
			WithContext("capacity", q.max).
			Build()
	}

	q.pending[key] = job
	q.order = append(q.order, key)
	q.recorder.SetQueueDepth(len(q.pending))
	q.signalLocked()
	return nil
}

// Next blocks until a job is available or ctx ends. The returned job's
// project is marked in flight until Done is called for it.
func (q *Queue) Next(ctx context.Context) (pipeline.Job, bool) {
	for {
		if job, ok := q.take(); ok {
			return job, true
		}
		select {
		case <-ctx.Done():
			return pipeline.Job{}, false
		case <-q.wake:
		}
	}
}

// Done releases a project's in-flight slot. A trigger recorded during the
// run re-enters the pending queue.
func (q *Queue) Done(job pipeline.Job) {
	key := job.Key()
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inflight, key)
	if follow, ok := q.followup[key]; ok {
		delete(q.followup, key)
		q.pending[key] = follow
		q.order = append(q.order, key)
		q.recorder.SetQueueDepth(len(q.pending))
		q.signalLocked()
	}
}

// Depth reports the number of pending projects.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) take() (pipeline.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.order) == 0 {
		return pipeline.Job{}, false
	}
	key := q.order[0]
	q.order = q.order[1:]
	job := q.pending[key]
	delete(q.pending, key)
	q.inflight[key] = job.Commit
	q.recorder.SetQueueDepth(len(q.pending))
	if len(q.order) > 0 {
		q.signalLocked()
	}
	return job, true
}

func (q *Queue) signalLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
