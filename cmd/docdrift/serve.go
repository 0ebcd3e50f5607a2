package main

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/daemon"
	"git.home.luguber.info/inful/docdrift/internal/eventstore"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
	"git.home.luguber.info/inful/docdrift/internal/metrics"
	"git.home.luguber.info/inful/docdrift/internal/notify"
	"git.home.luguber.info/inful/docdrift/internal/pipeline"
	"git.home.luguber.info/inful/docdrift/internal/server"
	"git.home.luguber.info/inful/docdrift/internal/version"
)

const stopTimeout = 30 * time.Second

// runServe wires the full daemon stack and blocks until the context is
// cancelled by a signal.
func runServe(ctx context.Context, cfg *config.Config, configPath string) error {
	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := eventstore.NewSQLiteStore(eventsPath(cfg.Index.Path))
	if err != nil {
		return err
	}
	defer func() { _ = events.Close() }()

	projection := eventstore.NewRunHistoryProjection(events, 0)
	if err := projection.Rebuild(ctx); err != nil {
		slog.Warn("failed to rebuild run history, starting empty", logfields.Error(err))
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var metricsHandler http.Handler
	if cfg.Monitoring != nil && cfg.Monitoring.Metrics.Enabled {
		prom := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
		recorder = prom
		metricsHandler = prom.Handler()
	}

	var publisher notify.Publisher = notify.NoopPublisher{}
	if cfg.Events.NATS != nil && cfg.Events.NATS.Enabled {
		nats, err := notify.NewNATSPublisher(cfg.Events.NATS)
		if err != nil {
			return err
		}
		publisher = nats
	}
	defer publisher.Close()

	var sealer *index.Sealer
	if cfg.Settings.SealingKey != "" {
		sealer, err = index.NewSealer(cfg.Settings.SealingKey)
		if err != nil {
			return err
		}
	}

	pipe := pipeline.New(pipeline.Deps{
		Git:        rt.git,
		Workspaces: rt.workspaces,
		Artifacts:  rt.artifacts,
		Index:      rt.idx,
		Deliverer:  rt.deliverer,
		Forges:     rt.forges,
		Events:     events,
		Projection: projection,
		Publisher:  publisher,
		Recorder:   recorder,
		Sealer:     sealer,
		Timeouts:   pipeline.TimeoutsFrom(cfg.Pipeline.StageTimeouts),
		Ignore:     cfg.Pipeline.IgnorePaths,
	})

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Pipeline:   pipe,
		Git:        rt.git,
		Index:      rt.idx,
		Recorder:   recorder,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Deps{
		Config:         cfg,
		Trigger:        d,
		Artifacts:      rt.artifacts,
		Index:          rt.idx,
		Forges:         rt.forges,
		Projection:     projection,
		Recorder:       recorder,
		MetricsHandler: metricsHandler,
		Version:        version.Version,
	})
	if err != nil {
		return err
	}

	if err := d.Start(ctx); err != nil {
		return err
	}
	slog.Info("docdrift daemon started",
		slog.String("version", version.Version),
		logfields.Count(len(cfg.Projects)),
		slog.Int("api_port", cfg.Server.APIPort),
		slog.Int("webhook_port", cfg.Server.WebhookPort),
		slog.Int("admin_port", cfg.Server.AdminPort))

	serveErr := srv.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := d.Stop(stopCtx); err != nil {
		slog.Warn("daemon shutdown incomplete", logfields.Error(err))
	}
	slog.Info("docdrift daemon stopped")
	return serveErr
}

// eventsPath places the run event database next to the version index.
func eventsPath(indexPath string) string {
	if indexPath == "" || indexPath == ":memory:" {
		return ":memory:"
	}
	return filepath.Join(filepath.Dir(indexPath), "events.db")
}
