package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
)

// runOnce executes a single pipeline run for one repository and prints the
// outcome as JSON. With --deliver the generated bundle is also pushed as a
// docs branch.
func runOnce(ctx context.Context, cfg *config.Config) error {
	project, err := resolveRunProject(cfg)
	if err != nil {
		return err
	}
	if CLI.Run.Branch != "" {
		project.Branch = CLI.Run.Branch
	}
	if !CLI.Run.Deliver {
		off := false
		project.Deliver = &off
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	pipe := pipeline.New(pipeline.Deps{
		Git:        rt.git,
		Workspaces: rt.workspaces,
		Artifacts:  rt.artifacts,
		Index:      rt.idx,
		Deliverer:  rt.deliverer,
		Forges:     rt.forges,
		Timeouts:   pipeline.TimeoutsFrom(cfg.Pipeline.StageTimeouts),
		Ignore:     cfg.Pipeline.IgnorePaths,
	})

	outcome, err := pipe.Run(ctx, pipeline.Job{
		RunID:   uuid.NewString(),
		Project: project,
		Commit:  CLI.Run.Commit,
		Branch:  CLI.Run.Branch,
		Trigger: "manual",
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}

// resolveRunProject picks the configured project or builds an ad-hoc one
// from --repo.
func resolveRunProject(cfg *config.Config) (config.ProjectConfig, error) {
	if CLI.Run.Project != "" {
		if p := cfg.FindProject(CLI.Run.Project); p != nil {
			return *p, nil
		}
		return config.ProjectConfig{}, errors.NotFoundError("project not found in configuration").
			WithContext("project", CLI.Run.Project).
			Build()
	}
	if CLI.Run.Repo == "" {
		return config.ProjectConfig{}, errors.ValidationError("either --repo or --project is required").Build()
	}

	repo := CLI.Run.Repo
	id := strings.TrimSuffix(filepath.Base(repo), ".git")
	if id == "" || id == "." || id == "/" {
		id = "ad-hoc"
	}
	return config.ProjectConfig{
		ID:   id,
		Name: id,
		URL:  repo,
	}, nil
}
