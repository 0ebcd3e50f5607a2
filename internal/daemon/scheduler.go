package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
)

const headSyncTimeout = 10 * time.Minute

// HeadSync periodically resolves each project's branch head on the remote
// and enqueues a run when the commit is not yet indexed. It catches pushes
// whose webhooks never arrived.
type HeadSync struct {
	scheduler gocron.Scheduler
	git       *git.Client
	idx       *index.Index
	projects  func() []config.ProjectConfig
	enqueue   func(pipeline.Job) error
}

// NewHeadSync builds the scheduler from a cron expression. The projects
// callback is re-evaluated on every tick so config reloads take effect.
func NewHeadSync(schedule string, gitClient *git.Client, idx *index.Index, projects func() []config.ProjectConfig, enqueue func(pipeline.Job) error) (*HeadSync, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.DaemonError("failed to create scheduler").Build()
	}

	h := &HeadSync{scheduler: s, git: gitClient, idx: idx, projects: projects, enqueue: enqueue}
	_, err = s.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(h.tick),
		gocron.WithName("head-sync"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, errors.DaemonError("failed to schedule head sync").
			WithContext("schedule", schedule).
			Build()
	}
	return h, nil
}

// Start begins the scheduler.
func (h *HeadSync) Start() {
	slog.Info("head sync scheduler started")
	h.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (h *HeadSync) Stop() error {
	return h.scheduler.Shutdown()
}

func (h *HeadSync) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), headSyncTimeout)
	defer cancel()
	h.runOnce(ctx)
}

// runOnce scans all projects. Per-project failures are logged and skipped;
// one unreachable remote must not starve the rest.
func (h *HeadSync) runOnce(ctx context.Context) {
	for _, project := range h.projects() {
		if !project.AutoGenerateEnabled() {
			continue
		}
		branch := project.Branch
		if branch == "" {
			branch = git.DefaultBranch
		}

		sha, err := h.git.RemoteHead(ctx, project.URL, branch, project.Auth)
		if err != nil {
			slog.Warn("head sync: failed to resolve remote head",
				logfields.Project(project.ID), logfields.Error(err))
			continue
		}

		indexed, err := h.idx.HasVersion(ctx, project.ID, sha)
		if err != nil {
			slog.Warn("head sync: index lookup failed",
				logfields.Project(project.ID), logfields.Error(err))
			continue
		}
		if indexed {
			continue
		}

		job := pipeline.Job{
			RunID:   uuid.NewString(),
			Project: project,
			Commit:  sha,
			Branch:  branch,
			Trigger: "schedule",
		}
		if err := h.enqueue(job); err != nil {
			slog.Warn("head sync: enqueue rejected",
				logfields.Project(project.ID), logfields.Error(err))
			continue
		}
		slog.Info("head sync: queued unindexed head",
			logfields.Project(project.ID), logfields.Commit(sha))
	}
}
