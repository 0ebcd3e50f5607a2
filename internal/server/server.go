// Package server exposes the three HTTP surfaces: the documents API, the
// webhook receiver, and the admin listener (health, status, metrics). Each
// surface binds its own port so operators can firewall them independently.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/access"
	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/eventstore"
	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/index"
	"git.home.luguber.info/inful/docdrift/internal/metrics"
	"git.home.luguber.info/inful/docdrift/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Trigger is the daemon surface the HTTP layer needs.
type Trigger interface {
	TriggerPush(ctx context.Context, ev *forge.PushEvent) (string, error)
	TriggerManual(ctx context.Context, projectID, rev, branch string) (string, error)
	QueueDepth() int
	Projects() []config.ProjectConfig
}

// Deps wires the server's collaborators. MetricsHandler may be nil when
// monitoring is disabled; Projection may be nil outside daemon mode.
type Deps struct {
	Config         *config.Config
	Trigger        Trigger
	Artifacts      *store.ArtifactStore
	Index          *index.Index
	Forges         *forge.Registry
	Projection     *eventstore.RunHistoryProjection
	Recorder       metrics.Recorder
	MetricsHandler http.Handler
	Version        string
}

// Server owns the three listeners.
type Server struct {
	cfg            *config.Config
	trigger        Trigger
	artifacts      *store.ArtifactStore
	idx            *index.Index
	forges         *forge.Registry
	projection     *eventstore.RunHistoryProjection
	recorder       metrics.Recorder
	metricsHandler http.Handler
	version        string

	adapter *errors.HTTPErrorAdapter
	auth    *authenticator
	start   time.Time
}

// New builds the server. Token roles are validated here so a bad registry
// fails startup, not the first request.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.ConfigError("server requires a configuration").Build()
	}
	auth, err := newAuthenticator(deps.Config.API)
	if err != nil {
		return nil, err
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Server{
		cfg:            deps.Config,
		trigger:        deps.Trigger,
		artifacts:      deps.Artifacts,
		idx:            deps.Index,
		forges:         deps.Forges,
		projection:     deps.Projection,
		recorder:       recorder,
		metricsHandler: deps.MetricsHandler,
		version:        deps.Version,
		adapter:        errors.NewHTTPErrorAdapter(nil),
		auth:           auth,
		start:          time.Now(),
	}, nil
}

// apiMux routes the documents API. Go 1.22 pattern precedence makes the
// literal /filters, /search, and /test-upload subpaths win over {commit}.
func (s *Server) apiMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /projects/{id}/documents", s.authorize(access.CapReadDocs, s.handleListDocuments))
	mux.Handle("GET /projects/{id}/documents/filters", s.authorize(access.CapReadDocs, s.handleFilters))
	mux.Handle("POST /projects/{id}/documents/search", s.authorize(access.CapReadDocs, s.handleSearch))
	mux.Handle("GET /projects/{id}/documents/{commit}", s.authorize(access.CapReadDocs, s.handleGetDocument))
	mux.Handle("GET /projects/{id}/documents/{commit}/summary", s.authorize(access.CapReadDocs, s.handleGetSummary))
	mux.Handle("GET /projects/{id}/documents/{commit}/readme", s.authorize(access.CapReadDocs, s.handleGetReadme))
	mux.Handle("GET /projects/{id}/documents/{commit}/metadata", s.authorize(access.CapReadDocs, s.handleGetMetadata))
	mux.Handle("PUT /projects/{id}/documents/{commit}/tags", s.authorize(access.CapWriteDocs, s.handleUpdateTags))
	mux.Handle("POST /projects/{id}/documents/test-upload", s.authorize(access.CapWriteDocs, s.handleTestUpload))
	mux.Handle("DELETE /projects/{id}/documents/{commit}", s.authorize(access.CapAdminProject, s.handleDeleteDocument))
	mux.Handle("POST /projects/{id}/pipeline", s.authorize(access.CapAdminProject, s.handleTriggerPipeline))
	return chain(s.adapter, s.authenticate(mux))
}

// webhookMux routes webhook reception. Authentication is the HMAC
// signature, never a bearer token.
func (s *Server) webhookMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/{provider}", s.handleWebhook)
	return chain(s.adapter, mux)
}

// adminMux routes the operator surface. It relies on port isolation, not
// tokens.
func (s *Server) adminMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return chain(s.adapter, mux)
}

// Run binds all three ports up front (fail-fast on conflicts), serves until
// ctx is cancelled, then drains with a shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listeners := []struct {
		name    string
		port    int
		handler http.Handler
	}{
		{"api", s.cfg.Server.APIPort, s.apiMux()},
		{"webhook", s.cfg.Server.WebhookPort, s.webhookMux()},
		{"admin", s.cfg.Server.AdminPort, s.adminMux()},
	}

	servers := make([]*http.Server, 0, len(listeners))
	bound := make([]net.Listener, 0, len(listeners))
	for _, l := range listeners {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
		if err != nil {
			for _, b := range bound {
				_ = b.Close()
			}
			return errors.DaemonError("failed to bind listener").
				WithContext("listener", l.name).
				WithContext("port", l.port).
				Build()
		}
		bound = append(bound, ln)
		servers = append(servers, &http.Server{Handler: l.handler})
		slog.Info("listener bound", slog.String("listener", l.name), slog.Int("port", l.port))
	}

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		go func() {
			if err := srv.Serve(bound[i]); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("listener failed", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}
