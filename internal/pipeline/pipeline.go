// Package pipeline runs the documentation flow for one commit: fetch,
// detect, parse, score, generate, drift, store, deliver. Stages run under
// individual deadlines and every transition is recorded, so a restart can
// tell where each run ended up.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/deliver"
	"git.home.luguber.info/inful/docdrift/internal/detect"
	"git.home.luguber.info/inful/docdrift/internal/drift"
	"git.home.luguber.info/inful/docdrift/internal/eventstore"
	"git.home.luguber.info/inful/docdrift/internal/extract"
	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/impact"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
	"git.home.luguber.info/inful/docdrift/internal/metrics"
	"git.home.luguber.info/inful/docdrift/internal/notify"
	"git.home.luguber.info/inful/docdrift/internal/report"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
	"git.home.luguber.info/inful/docdrift/internal/store"
	"git.home.luguber.info/inful/docdrift/internal/workspace"
)

// Job is one unit of pipeline work.
type Job struct {
	RunID   string
	Project config.ProjectConfig
	Commit  string // empty resolves the branch head
	Branch  string // empty falls back to the project branch
	Trigger string // "webhook", "manual", "schedule"
}

// Key identifies the coalescing slot a job belongs to.
func (j Job) Key() string { return j.Project.ID }

// Outcome summarizes a finished run.
type Outcome struct {
	RunID    string          `json:"run_id"`
	Project  string          `json:"project"`
	Commit   git.CommitInfo  `json:"commit"`
	Severity report.Severity `json:"severity"`
	Degraded bool            `json:"degraded"`
	Delivery *deliver.Result `json:"delivery,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Deps are the collaborators a pipeline needs. Events, Projection,
// Publisher, Recorder and Forges are optional.
type Deps struct {
	Git        *git.Client
	Workspaces *workspace.Manager
	Artifacts  *store.ArtifactStore
	Index      *index.Index
	Deliverer  *deliver.Agent
	Forges     *forge.Registry
	Events     eventstore.Store
	Projection *eventstore.RunHistoryProjection
	Publisher  notify.Publisher
	Recorder   metrics.Recorder
	Sealer     *index.Sealer
	Generator  Generator
	Timeouts   Timeouts
	Ignore     []string
}

// Generator renders the artifact bundle for an impact report. The default is
// artifact.Generate.
type Generator func(rep *report.ImpactReport, drift *report.DriftReport) *artifact.Bundle

// Pipeline executes jobs.
type Pipeline struct {
	deps Deps
}

// New builds a pipeline, filling in noop observers for absent options.
func New(deps Deps) *Pipeline {
	if deps.Publisher == nil {
		deps.Publisher = notify.NoopPublisher{}
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.Generator == nil {
		deps.Generator = artifact.Generate
	}
	if deps.Timeouts == (Timeouts{}) {
		deps.Timeouts = DefaultTimeouts()
	}
	return &Pipeline{deps: deps}
}

// Run executes one job through every stage. Generation failures degrade
// the run (a failure bundle is stored); infrastructure failures at any
// stage end it as failed(stage, reason).
func (p *Pipeline) Run(ctx context.Context, job Job) (*Outcome, error) {
	start := time.Now()
	p.emitQueued(ctx, job)

	run, err := p.deps.Workspaces.NewRun(job.RunID)
	if err != nil {
		return nil, p.fail(ctx, job, StageFetching, start, err)
	}
	defer run.Cleanup()

	// fetching
	var repo *git.Repo
	var info git.CommitInfo
	err = p.stage(ctx, job, StageFetching, func(ctx context.Context) error {
		dir, err := run.CheckoutDir("source")
		if err != nil {
			return err
		}
		branch := job.Branch
		if branch == "" {
			branch = job.Project.Branch
		}
		repo, err = p.deps.Git.Clone(ctx, dir, job.Project.URL, branch, p.cloneAuth(ctx, job.Project))
		if err != nil {
			return err
		}
		info, err = repo.Resolve(branch, job.Commit)
		return err
	})
	if err != nil {
		return nil, p.fail(ctx, job, StageFetching, start, err)
	}

	// detecting
	var changes []detect.Change
	err = p.stage(ctx, job, StageDetecting, func(ctx context.Context) error {
		var detectErr error
		changes, detectErr = detect.New(p.deps.Ignore).Detect(ctx, repo.Repository(), info.SHA)
		return detectErr
	})
	if err != nil {
		return nil, p.fail(ctx, job, StageDetecting, start, err)
	}

	// parsing
	var parsed []extract.ParsedChange
	err = p.stage(ctx, job, StageParsing, func(context.Context) error {
		parsed = extract.ParseChanges(changes)
		return nil
	})
	if err != nil {
		return nil, p.fail(ctx, job, StageParsing, start, err)
	}

	// scoring
	var rep *report.ImpactReport
	err = p.stage(ctx, job, StageScoring, func(context.Context) error {
		rep = impact.Score(report.Context{
			Repository:      sanitize.URL(job.Project.URL),
			Branch:          info.Branch,
			CommitSHA:       info.SHA,
			Author:          info.Author,
			CommitMessage:   info.Message,
			CommitTimestamp: info.Timestamp,
		}, parsed)
		return nil
	})
	if err != nil {
		return nil, p.fail(ctx, job, StageScoring, start, err)
	}

	// generating: a panic in rendering degrades the bundle, it does not
	// kill the run.
	var bundle *artifact.Bundle
	degraded := false
	err = p.stage(ctx, job, StageGenerating, func(context.Context) error {
		bundle, degraded = p.generate(job, rep)
		return nil
	})
	if err != nil {
		return nil, p.fail(ctx, job, StageGenerating, start, err)
	}

	// drifting: compare against the previously indexed version's docs.
	if !degraded {
		err = p.stage(ctx, job, StageDrifting, func(ctx context.Context) error {
			driftRep, driftErr := p.analyzeDrift(ctx, job, rep, bundle, info)
			if driftErr != nil {
				return driftErr
			}
			bundle = p.deps.Generator(rep, driftRep)
			return nil
		})
		if err != nil {
			return nil, p.fail(ctx, job, StageDrifting, start, err)
		}
	}

	// storing
	err = p.stage(ctx, job, StageStoring, func(ctx context.Context) error {
		return p.storeBundle(ctx, job, rep, bundle, info)
	})
	if err != nil {
		return nil, p.fail(ctx, job, StageStoring, start, err)
	}

	// delivering: runs for degraded bundles too, so the failure summary
	// reaches reviewers instead of vanishing with the run.
	var delivery *deliver.Result
	if p.deps.Deliverer != nil && job.Project.DeliverEnabled() {
		err = p.stage(ctx, job, StageDelivering, func(ctx context.Context) error {
			dir, dirErr := run.CheckoutDir("delivery")
			if dirErr != nil {
				return dirErr
			}
			var delErr error
			delivery, delErr = p.deps.Deliverer.Deliver(ctx, deliver.Request{
				Project: job.Project,
				Bundle:  bundle,
				Report:  rep,
				Dir:     dir,
			})
			return delErr
		})
		if err != nil {
			return nil, p.fail(ctx, job, StageDelivering, start, err)
		}
		if delivery != nil && delivery.Degraded {
			degraded = true
			p.deps.Recorder.IncDeliveryConflict()
		}
	}

	outcome := &Outcome{
		RunID:    job.RunID,
		Project:  job.Project.ID,
		Commit:   info,
		Severity: rep.Summary.HighestSeverity,
		Degraded: degraded,
		Delivery: delivery,
		Duration: time.Since(start),
	}
	p.complete(ctx, job, outcome)
	return outcome, nil
}

// cloneAuth prefers configured credentials. Without them, a sealed
// per-project credential from the settings table is unsealed as a token.
func (p *Pipeline) cloneAuth(ctx context.Context, project config.ProjectConfig) *config.AuthConfig {
	if !project.Auth.IsZero() || p.deps.Sealer == nil || p.deps.Index == nil {
		return project.Auth
	}
	settings, err := p.deps.Index.GetSettings(ctx, project.ID)
	if err != nil || len(settings.SealedCredential) == 0 {
		return project.Auth
	}
	token, err := p.deps.Sealer.Open(settings.SealedCredential)
	if err != nil {
		slog.Warn("stored credential failed to unseal, cloning without auth",
			logfields.Project(project.ID), logfields.Error(err))
		return project.Auth
	}
	return &config.AuthConfig{Type: config.AuthTypeToken, Token: string(token)}
}

// generate renders the bundle, falling back to the degraded form when
// rendering panics.
func (p *Pipeline) generate(job Job, rep *report.ImpactReport) (b *artifact.Bundle, degraded bool) {
	defer func() {
		if r := recover(); r != nil {
			genErr := errors.GenerateError("documentation rendering failed").
				WithContext("panic", sanitize.String(toString(r))).
				Build()
			slog.Error("generation degraded",
				logfields.RunID(job.RunID), logfields.Project(job.Project.ID), logfields.Error(genErr))
			b = artifact.Degraded(rep, genErr)
			degraded = true
		}
	}()
	return p.deps.Generator(rep, nil), false
}

// analyzeDrift loads the previous version's stored documents for the same
// branch. No previous version means an empty drift report.
func (p *Pipeline) analyzeDrift(ctx context.Context, job Job, rep *report.ImpactReport, fresh *artifact.Bundle, info git.CommitInfo) (*report.DriftReport, error) {
	prev, err := p.deps.Index.LatestVersion(ctx, job.Project.ID, info.Branch)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return drift.Analyze(rep, fresh, nil), nil
		}
		return nil, err
	}
	if prev.CommitID == info.SHA {
		return drift.Analyze(rep, fresh, nil), nil
	}

	docs, err := p.deps.Artifacts.Documents(ctx, job.Project.ID, prev.CommitID)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return drift.Analyze(rep, fresh, nil), nil
		}
		return nil, err
	}

	previous := make([]drift.StoredDoc, 0, len(docs))
	for _, path := range sortedPaths(docs) {
		previous = append(previous, drift.StoredDoc{Path: path, Body: docs[path]})
	}
	return drift.Analyze(rep, fresh, previous), nil
}

func (p *Pipeline) storeBundle(ctx context.Context, job Job, rep *report.ImpactReport, bundle *artifact.Bundle, info git.CommitInfo) error {
	if err := p.deps.Index.UpsertProject(ctx, index.Project{
		ID:     job.Project.ID,
		Name:   projectName(job.Project),
		Owner:  job.Project.Owner,
		Repo:   job.Project.Repo,
		URL:    sanitize.URL(job.Project.URL),
		Branch: info.Branch,
	}); err != nil {
		return err
	}

	meta := store.Metadata{
		Version:     info.SHA,
		Branch:      info.Branch,
		Commit:      info.ShortSHA,
		Tags:        flattenTags(job.Project.Tags),
		Title:       projectName(job.Project) + " @ " + info.ShortSHA,
		Description: firstLine(info.Message),
	}
	if p.deps.Forges != nil && job.Project.Forge != "" {
		if client, err := p.deps.Forges.Get(job.Project.Forge); err == nil {
			meta.CommitURL = client.CommitURL(job.Project.Owner, job.Project.Repo, info.SHA)
			meta.BranchURL = client.BranchURL(job.Project.Owner, job.Project.Repo, info.Branch)
		}
	}
	return p.deps.Artifacts.Upload(ctx, job.Project.ID, bundle, meta)
}

// stage wraps one stage with its deadline, transition event, and metrics.
func (p *Pipeline) stage(ctx context.Context, job Job, stage Stage, fn func(context.Context) error) error {
	p.emitStage(ctx, job, stage)

	stageCtx, cancel := context.WithTimeout(ctx, p.deps.Timeouts.forStage(stage))
	defer cancel()

	start := time.Now()
	err := fn(stageCtx)
	p.deps.Recorder.ObserveStageDuration(string(stage), time.Since(start))
	if err != nil {
		p.deps.Recorder.IncStageResult(string(stage), metrics.ResultFailed)
		return err
	}
	p.deps.Recorder.IncStageResult(string(stage), metrics.ResultSuccess)
	return nil
}

func (p *Pipeline) emitQueued(ctx context.Context, job Job) {
	ev, err := eventstore.NewRunQueued(job.RunID, eventstore.RunQueuedPayload{
		Project: job.Project.ID,
		Commit:  job.Commit,
		Branch:  job.Branch,
		Trigger: job.Trigger,
	})
	if err == nil {
		p.record(ctx, ev)
	}
}

func (p *Pipeline) emitStage(ctx context.Context, job Job, stage Stage) {
	slog.Debug("stage started",
		logfields.RunID(job.RunID), logfields.Project(job.Project.ID), logfields.Stage(string(stage)))
	ev, err := eventstore.NewStageStarted(job.RunID, string(stage))
	if err == nil {
		p.record(ctx, ev)
	}
}

func (p *Pipeline) complete(ctx context.Context, job Job, outcome *Outcome) {
	var pullURL string
	if outcome.Delivery != nil && outcome.Delivery.PullRequest != nil {
		pullURL = outcome.Delivery.PullRequest.URL
	}

	ev, err := eventstore.NewRunCompleted(job.RunID, eventstore.RunCompletedPayload{
		Severity:   string(outcome.Severity),
		Degraded:   outcome.Degraded,
		PullURL:    pullURL,
		DurationMS: outcome.Duration.Milliseconds(),
	})
	if err == nil {
		p.record(ctx, ev)
	}

	label := metrics.OutcomeCompleted
	if outcome.Degraded {
		label = metrics.OutcomeDegraded
	}
	p.deps.Recorder.IncRunOutcome(label)
	p.deps.Recorder.ObserveRunDuration(outcome.Duration)

	if pubErr := p.deps.Publisher.PublishCompleted(ctx, notify.Event{
		RunID:    job.RunID,
		Project:  job.Project.ID,
		Commit:   outcome.Commit.SHA,
		Branch:   outcome.Commit.Branch,
		Severity: string(outcome.Severity),
		Degraded: outcome.Degraded,
		PullURL:  pullURL,
	}); pubErr != nil {
		slog.Warn("outcome publish failed", logfields.RunID(job.RunID), logfields.Error(pubErr))
	}

	slog.Info("run completed",
		logfields.RunID(job.RunID), logfields.Project(job.Project.ID),
		logfields.Commit(outcome.Commit.ShortSHA), logfields.Severity(string(outcome.Severity)),
		slog.Bool("degraded", outcome.Degraded),
		logfields.DurationMS(float64(outcome.Duration.Milliseconds())))
}

// fail records the failure transition and returns the stage-tagged error.
func (p *Pipeline) fail(ctx context.Context, job Job, stage Stage, start time.Time, cause error) error {
	reason := sanitize.String(cause.Error())
	ev, err := eventstore.NewRunFailed(job.RunID, string(stage), reason)
	if err == nil {
		p.record(ctx, ev)
	}
	p.deps.Recorder.IncRunOutcome(metrics.OutcomeFailed)
	p.deps.Recorder.ObserveRunDuration(time.Since(start))

	if pubErr := p.deps.Publisher.PublishFailed(ctx, notify.Event{
		RunID:   job.RunID,
		Project: job.Project.ID,
		Commit:  job.Commit,
		Branch:  job.Branch,
		Stage:   string(stage),
		Error:   reason,
	}); pubErr != nil {
		slog.Warn("outcome publish failed", logfields.RunID(job.RunID), logfields.Error(pubErr))
	}

	slog.Error("run failed",
		logfields.RunID(job.RunID), logfields.Project(job.Project.ID),
		logfields.Stage(string(stage)), logfields.Error(cause))

	if _, ok := errors.AsClassified(cause); ok {
		return cause
	}
	return errors.WrapError(cause, errors.CategoryRuntime, "pipeline stage failed").
		WithContext("stage", string(stage)).
		Build()
}

// record persists the event and folds it into the live projection.
func (p *Pipeline) record(ctx context.Context, ev *eventstore.BaseEvent) {
	if p.deps.Events != nil {
		if err := p.deps.Events.Append(ctx, ev.RunID(), ev.Type(), ev.Payload(), nil); err != nil {
			slog.Warn("event append failed", logfields.RunID(ev.RunID()), logfields.Error(err))
		}
	}
	if p.deps.Projection != nil {
		p.deps.Projection.Apply(ev)
	}
}

func projectName(p config.ProjectConfig) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func flattenTags(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for k, v := range tags {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func sortedPaths(m map[string][]byte) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "unknown panic"
}
