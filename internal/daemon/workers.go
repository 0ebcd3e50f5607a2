package daemon

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"git.home.luguber.info/inful/docdrift/internal/logfields"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
)

// WorkerGroup tracks daemon-owned goroutines and provides a safe shutdown
// boundary so we never call WaitGroup.Add concurrently with Wait.
type WorkerGroup struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	stopping bool
}

// Go starts a worker if the group is not stopping.
func (g *WorkerGroup) Go(fn func()) bool {
	if fn == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopping {
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
	return true
}

// StopAndWait prevents new workers from being started and waits for all
// current workers to exit, bounded by ctx.
func (g *WorkerGroup) StopAndWait(ctx context.Context) error {
	g.mu.Lock()
	g.stopping = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset prepares the group for reuse after a full stop.
//
// This must only be called when all workers have already exited.
func (g *WorkerGroup) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopping = false
	g.wg = sync.WaitGroup{}
}

// Pool drains the queue with a fixed number of pipeline workers.
type Pool struct {
	queue  *Queue
	pipe   *pipeline.Pipeline
	group  WorkerGroup
	size   int
	cancel context.CancelFunc
}

// NewPool builds a pool; size <= 0 defaults to min(4, NumCPU).
func NewPool(size int, queue *Queue, pipe *pipeline.Pipeline) *Pool {
	if size <= 0 {
		size = min(4, runtime.NumCPU())
	}
	return &Pool{queue: queue, pipe: pipe, size: size}
}

// Start launches the workers. They run until Stop or ctx cancellation.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for range p.size {
		p.group.Go(func() { p.work(ctx) })
	}
	slog.Info("pipeline workers started", slog.Int("workers", p.size))
}

// Stop cancels the workers and waits for in-flight runs, bounded by ctx.
func (p *Pool) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.group.StopAndWait(ctx)
}

func (p *Pool) work(ctx context.Context) {
	for {
		job, ok := p.queue.Next(ctx)
		if !ok {
			return
		}
		// Run logs and records its own failures; the worker only has to
		// release the in-flight slot.
		if _, err := p.pipe.Run(ctx, job); err != nil {
			slog.Debug("pipeline run failed",
				logfields.RunID(job.RunID), logfields.Project(job.Project.ID))
		}
		p.queue.Done(job)
	}
}
