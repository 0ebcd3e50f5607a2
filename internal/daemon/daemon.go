// Package daemon runs the long-lived orchestrator: a coalescing job queue
// drained by a pipeline worker pool, an optional cron head-sync, and a
// config file watcher for hot reloads. Triggers arrive from webhooks, the
// management API, and the scheduler; the queue guarantees at most one run
// per project at a time.
package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
	"git.home.luguber.info/inful/docdrift/internal/metrics"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
)

// Options wires the daemon's collaborators.
type Options struct {
	Config     *config.Config
	ConfigPath string // empty disables hot reload
	Pipeline   *pipeline.Pipeline
	Git        *git.Client
	Index      *index.Index
	Recorder   metrics.Recorder
}

// Daemon owns the queue, workers, scheduler, and config watcher.
type Daemon struct {
	mu       sync.RWMutex
	cfg      *config.Config
	queue    *Queue
	pool     *Pool
	headSync *HeadSync
	watcher  *ConfigWatcher
	idx      *index.Index
}

// New assembles a daemon. Nothing runs until Start.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.ConfigError("daemon requires a configuration").Build()
	}
	if opts.Pipeline == nil {
		return nil, errors.ConfigError("daemon requires a pipeline").Build()
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	d := &Daemon{
		cfg:   opts.Config,
		queue: NewQueue(opts.Config.Pipeline.QueueSize, recorder),
		idx:   opts.Index,
	}
	d.pool = NewPool(opts.Config.Pipeline.Workers, d.queue, opts.Pipeline)

	if opts.Config.Sync.Enabled {
		hs, err := NewHeadSync(opts.Config.Sync.Schedule, opts.Git, opts.Index, d.Projects, d.queue.Enqueue)
		if err != nil {
			return nil, err
		}
		d.headSync = hs
	}

	if opts.ConfigPath != "" {
		cw, err := NewConfigWatcher(opts.ConfigPath, d.Reload)
		if err != nil {
			return nil, err
		}
		d.watcher = cw
	}

	return d, nil
}

// Start launches the worker pool, scheduler, and config watcher.
func (d *Daemon) Start(ctx context.Context) error {
	d.pool.Start(ctx)
	if d.headSync != nil {
		d.headSync.Start()
	}
	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			return err
		}
	}
	slog.Info("daemon started", logfields.Count(len(d.Projects())))
	return nil
}

// Stop shuts everything down, waiting for in-flight runs bounded by ctx.
func (d *Daemon) Stop(ctx context.Context) error {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.headSync != nil {
		if err := d.headSync.Stop(); err != nil {
			slog.Warn("scheduler shutdown failed", logfields.Error(err))
		}
	}
	return d.pool.Stop(ctx)
}

// QueueDepth reports the number of pending runs (status surface).
func (d *Daemon) QueueDepth() int {
	return d.queue.Depth()
}

// Projects snapshots the current project registry.
func (d *Daemon) Projects() []config.ProjectConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]config.ProjectConfig, len(d.cfg.Projects))
	copy(out, d.cfg.Projects)
	return out
}

// Reload swaps in a new configuration. Projects, forges, and delivery
// settings take effect immediately; worker count and listener ports apply
// on restart.
func (d *Daemon) Reload(cfg *config.Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	slog.Info("daemon configuration swapped", logfields.Count(len(cfg.Projects)))
}

// TriggerPush enqueues a run for a validated push event. Pushes to branches
// other than the project's tracked branch and branch deletions are ignored.
func (d *Daemon) TriggerPush(ctx context.Context, ev *forge.PushEvent) (string, error) {
	if ev.Deleted {
		slog.Debug("ignoring branch deletion push", logfields.Branch(ev.Branch))
		return "", nil
	}

	project, ok := d.matchProject(ev.Repo)
	if !ok {
		return "", errors.NotFoundError("no project tracks this repository").
			WithContext("repository", ev.Repo.FullName).
			Build()
	}

	branch := project.Branch
	if branch == "" {
		branch = git.DefaultBranch
	}
	if ev.Branch != branch {
		slog.Debug("ignoring push to untracked branch",
			logfields.Project(project.ID), logfields.Branch(ev.Branch))
		return "", nil
	}

	if !d.autoGenerate(ctx, project) {
		slog.Debug("auto generation disabled, push ignored", logfields.Project(project.ID))
		return "", nil
	}

	return d.enqueue(project, ev.HeadSHA, branch, "webhook")
}

// TriggerManual enqueues a run requested through the API or CLI. An empty
// rev builds the branch head; an empty branch falls back to the project's
// tracked branch.
func (d *Daemon) TriggerManual(ctx context.Context, projectID, rev, branch string) (string, error) {
	project, ok := d.projectByID(projectID)
	if !ok {
		return "", errors.NotFoundError("project not found").
			WithContext("project", projectID).
			Build()
	}
	if branch == "" {
		branch = project.Branch
	}
	if branch == "" {
		branch = git.DefaultBranch
	}
	return d.enqueue(project, rev, branch, "manual")
}

func (d *Daemon) enqueue(project config.ProjectConfig, commit, branch, trigger string) (string, error) {
	job := pipeline.Job{
		RunID:   uuid.NewString(),
		Project: project,
		Commit:  commit,
		Branch:  branch,
		Trigger: trigger,
	}
	if err := d.queue.Enqueue(job); err != nil {
		return "", err
	}
	slog.Info("run queued",
		logfields.RunID(job.RunID),
		logfields.Project(project.ID),
		slog.String("trigger", trigger))
	return job.RunID, nil
}

func (d *Daemon) projectByID(id string) (config.ProjectConfig, bool) {
	for _, p := range d.Projects() {
		if p.ID == id {
			return p, true
		}
	}
	return config.ProjectConfig{}, false
}

func (d *Daemon) matchProject(repo forge.PushRepo) (config.ProjectConfig, bool) {
	for _, p := range d.Projects() {
		if urlsMatch(p.URL, repo.CloneURL) || urlsMatch(p.URL, repo.HTMLURL) {
			return p, true
		}
	}
	return config.ProjectConfig{}, false
}

// autoGenerate resolves the per-project toggle: a stored settings row wins
// over the config file; no row falls back to the config default.
func (d *Daemon) autoGenerate(ctx context.Context, project config.ProjectConfig) bool {
	if d.idx != nil {
		if s, err := d.idx.GetSettings(ctx, project.ID); err == nil {
			return s.AutoGenerateDocs
		}
	}
	return project.AutoGenerateEnabled()
}

func urlsMatch(a, b string) bool {
	return a != "" && b != "" && normalizeRepoURL(a) == normalizeRepoURL(b)
}

func normalizeRepoURL(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimSuffix(u, "/")
	return strings.TrimSuffix(u, ".git")
}
