package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" help:"Run the documentation pipeline daemon"`

	Run struct {
		Repo    string `help:"Repository path or clone URL for an ad-hoc run"`
		Commit  string `help:"Commit to process (defaults to the branch head)"`
		Branch  string `short:"b" help:"Branch to process"`
		Project string `short:"p" help:"Configured project ID to run"`
		Deliver bool   `help:"Deliver the generated bundle (docs branch + pull request)"`
	} `cmd:"" help:"Run the pipeline once for a single repository"`

	Deliver struct {
		Impact string `help:"Impact report path (default ARTIFACTS_DIR/impact.json)"`
		Drift  string `help:"Drift report path"`
		Docs   string `help:"Generated docs directory (default ARTIFACTS_DIR/docs)"`
		Commit string `help:"Commit SHA (overrides COMMIT_SHA)"`
	} `cmd:"" help:"Deliver pre-generated artifacts from a CI job"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	adapter := errors.NewCLIErrorAdapter(CLI.Verbose, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch kctx.Command() {
	case "serve":
		cfg, err := loadConfig()
		if err != nil {
			adapter.HandleError(err)
		}
		adapter.HandleError(runServe(ctx, cfg, CLI.Config))
	case "run":
		cfg, err := loadConfig()
		if err != nil {
			adapter.HandleError(err)
		}
		adapter.HandleError(runOnce(ctx, cfg))
	case "deliver":
		adapter.HandleError(runDeliver(ctx))
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			adapter.HandleError(errors.WrapError(err, errors.CategoryConfig, "failed to initialize configuration").
				WithContext("path", CLI.Config).
				Build())
		}
		slog.Info("configuration written", "path", CLI.Config)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to load configuration").
			WithContext("path", CLI.Config).
			Build()
	}
	config.SetupLogging(cfg, CLI.Verbose)
	return cfg, nil
}
