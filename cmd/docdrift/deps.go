package main

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/deliver"
	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/objstore"
	"git.home.luguber.info/inful/docdrift/internal/retry"
	"git.home.luguber.info/inful/docdrift/internal/store"
	"git.home.luguber.info/inful/docdrift/internal/workspace"
)

// runtime bundles the collaborators both serve and run wire up from the
// configuration file.
type runtime struct {
	objects    objstore.Store
	idx        *index.Index
	artifacts  *store.ArtifactStore
	git        *git.Client
	workspaces *workspace.Manager
	forges     *forge.Registry
	deliverer  *deliver.Agent
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	objects, err := objstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, err
	}

	gitClient := git.NewClient().
		WithShallowDepth(cfg.Pipeline.ShallowDepth).
		WithRetryPolicy(retryPolicy(cfg.Pipeline))

	workspaces, err := workspace.NewManager(cfg.Workspace.Dir, cfg.Workspace.Keep)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	forges, err := forge.NewRegistry(cfg.Forges)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	return &runtime{
		objects:    objects,
		idx:        idx,
		artifacts:  store.New(objects, idx),
		git:        gitClient,
		workspaces: workspaces,
		forges:     forges,
		deliverer:  deliver.NewAgent(gitClient, forges, cfg.Delivery),
	}, nil
}

func (r *runtime) Close() {
	_ = r.idx.Close()
}

// retryPolicy builds the shared retry policy. Defaults were filled in at
// config load, so the duration strings always parse.
func retryPolicy(cfg config.PipelineConfig) retry.Policy {
	initial, _ := time.ParseDuration(cfg.RetryInitialDelay)
	maxDelay, _ := time.ParseDuration(cfg.RetryMaxDelay)
	return retry.NewPolicy(cfg.RetryBackoff, initial, maxDelay, cfg.MaxRetries)
}
