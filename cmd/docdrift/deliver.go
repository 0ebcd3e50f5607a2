package main

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"git.home.luguber.info/inful/docdrift/internal/artifact"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/deliver"
	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/git"
	"git.home.luguber.info/inful/docdrift/internal/objstore"
	"git.home.luguber.info/inful/docdrift/internal/report"
)

// deliverEnv is the CI contract: required identity from the environment,
// optional knobs with defaults.
type deliverEnv struct {
	token        string
	owner        string
	repo         string
	commit       string
	targetBranch string
	artifactsDir string
	bucketPath   string
	provider     config.ForgeType
	apiURL       string
	baseURL      string
}

func readDeliverEnv() (deliverEnv, error) {
	env := deliverEnv{
		token:        os.Getenv("PROVIDER_TOKEN"),
		owner:        os.Getenv("REPO_OWNER"),
		repo:         os.Getenv("REPO_NAME"),
		commit:       os.Getenv("COMMIT_SHA"),
		targetBranch: os.Getenv("TARGET_BRANCH"),
		artifactsDir: os.Getenv("ARTIFACTS_DIR"),
		bucketPath:   os.Getenv("DOCS_BUCKET_PATH"),
		apiURL:       os.Getenv("PROVIDER_API_URL"),
		baseURL:      os.Getenv("PROVIDER_BASE_URL"),
	}
	for name, v := range map[string]string{
		"PROVIDER_TOKEN": env.token,
		"REPO_OWNER":     env.owner,
		"REPO_NAME":      env.repo,
		"COMMIT_SHA":     env.commit,
	} {
		if v == "" {
			return env, errors.ConfigError("required environment variable is not set").
				WithContext("variable", name).
				Build()
		}
	}

	if env.targetBranch == "" {
		env.targetBranch = git.DefaultBranch
	}
	if env.artifactsDir == "" {
		env.artifactsDir = "artifacts"
	}

	env.provider = config.NormalizeForgeType(os.Getenv("PROVIDER"))
	if env.provider == "" {
		env.provider = config.ForgeGitHub
	}
	if env.provider == config.ForgeGitHub {
		if env.apiURL == "" {
			env.apiURL = "https://api.github.com"
		}
		if env.baseURL == "" {
			env.baseURL = "https://github.com"
		}
	}
	if env.apiURL == "" || env.baseURL == "" {
		return env, errors.ConfigError("PROVIDER_API_URL and PROVIDER_BASE_URL are required for non-GitHub providers").
			WithContext("provider", string(env.provider)).
			Build()
	}
	return env, nil
}

// runDeliver pushes pre-generated CI artifacts: optional bucket upload,
// then docs branch plus pull request against the target branch.
func runDeliver(ctx context.Context) error {
	env, err := readDeliverEnv()
	if err != nil {
		return err
	}
	if CLI.Deliver.Commit != "" {
		env.commit = CLI.Deliver.Commit
	}

	rep, err := loadImpactReport(env)
	if err != nil {
		return err
	}
	rep.Context.CommitSHA = env.commit

	bundle, err := buildDeliverBundle(env, rep)
	if err != nil {
		return err
	}

	if env.bucketPath != "" {
		if err := uploadToBucket(ctx, env, bundle); err != nil {
			return err
		}
	}

	project := config.ProjectConfig{
		ID:     env.owner + "/" + env.repo,
		Name:   env.repo,
		Owner:  env.owner,
		Repo:   env.repo,
		URL:    env.baseURL + "/" + env.owner + "/" + env.repo + ".git",
		Branch: env.targetBranch,
		Forge:  "ci",
		Auth:   &config.AuthConfig{Type: config.AuthTypeToken, Token: env.token},
	}
	forges, err := forge.NewRegistry([]*config.ForgeConfig{{
		Name:    "ci",
		Type:    env.provider,
		APIURL:  env.apiURL,
		BaseURL: env.baseURL,
		Auth:    project.Auth,
	}})
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "docdrift-deliver-*")
	if err != nil {
		return errors.FileSystemError("failed to create checkout directory").Build()
	}
	defer func() { _ = os.RemoveAll(dir) }()

	agent := deliver.NewAgent(git.NewClient(), forges, config.DeliveryConfig{})
	result, err := agent.Deliver(ctx, deliver.Request{
		Project: project,
		Bundle:  bundle,
		Report:  rep,
		Dir:     dir,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func loadImpactReport(env deliverEnv) (*report.ImpactReport, error) {
	impactPath := CLI.Deliver.Impact
	if impactPath == "" {
		impactPath = filepath.Join(env.artifactsDir, "impact.json")
	}
	data, err := os.ReadFile(impactPath)
	if err != nil {
		return nil, errors.ValidationError("impact report is not readable").
			WithContext("path", impactPath).
			Build()
	}
	var rep report.ImpactReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, errors.ValidationError("impact report is not valid JSON").
			WithContext("path", impactPath).
			Build()
	}
	return &rep, nil
}

// buildDeliverBundle renders the baseline bundle from the impact report and
// overlays whatever the CI job generated on top of it.
func buildDeliverBundle(env deliverEnv, rep *report.ImpactReport) (*artifact.Bundle, error) {
	bundle := artifact.Generate(rep, nil)

	docsDir := CLI.Deliver.Docs
	if docsDir == "" {
		docsDir = filepath.Join(env.artifactsDir, "docs")
	}
	if info, err := os.Stat(docsDir); err == nil && info.IsDir() {
		err := filepath.WalkDir(docsDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(docsDir, p)
			if err != nil {
				return err
			}
			body, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			bundle.Files[path.Join("docs", filepath.ToSlash(rel))] = body
			return nil
		})
		if err != nil {
			return nil, errors.FileSystemError("failed to read docs directory").
				WithContext("path", docsDir).
				Build()
		}
	}

	if CLI.Deliver.Drift != "" {
		body, err := os.ReadFile(CLI.Deliver.Drift)
		if err != nil {
			return nil, errors.ValidationError("drift report is not readable").
				WithContext("path", CLI.Deliver.Drift).
				Build()
		}
		bundle.Files["docs/drift-report.md"] = body
	}

	if summary, err := os.ReadFile(filepath.Join(env.artifactsDir, artifact.SummaryPath)); err == nil {
		bundle.Files[artifact.SummaryPath] = summary
	}
	return bundle, nil
}

// uploadToBucket mirrors the bundle into the documentation bucket under
// <repo>/<commit>/<path>, matching the daemon store layout.
func uploadToBucket(ctx context.Context, env deliverEnv, bundle *artifact.Bundle) error {
	objects, err := objstore.Open(ctx, config.StoreConfig{URL: env.bucketPath})
	if err != nil {
		return err
	}
	for _, p := range bundle.Paths() {
		key := path.Join(env.repo, env.commit, p)
		if err := objects.Put(ctx, key, bundle.Files[p]); err != nil {
			return err
		}
	}
	return nil
}
