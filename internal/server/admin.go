package server

import (
	"net/http"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/eventstore"
)

type healthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	Uptime     float64   `json:"uptime"`
	QueueDepth int       `json:"queue_depth"`
	ActiveRuns int       `json:"active_runs"`
}

type statusResponse struct {
	Status     string                  `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Uptime     float64                 `json:"uptime"`
	QueueDepth int                     `json:"queue_depth"`
	Active     []*eventstore.RunSummary `json:"active_runs"`
	History    []*eventstore.RunSummary `json:"history"`
	Config     statusConfigSummary     `json:"config"`
}

type statusConfigSummary struct {
	Projects     int    `json:"projects"`
	Forges       int    `json:"forges"`
	Workers      int    `json:"workers"`
	QueueSize    int    `json:"queue_size"`
	SyncEnabled  bool   `json:"sync_enabled"`
	SyncSchedule string `json:"sync_schedule,omitempty"`
}

func (s *Server) queueDepth() int {
	if s.trigger == nil {
		return 0
	}
	return s.trigger.QueueDepth()
}

func (s *Server) activeRuns() []*eventstore.RunSummary {
	if s.projection == nil {
		return []*eventstore.RunSummary{}
	}
	return s.projection.ActiveRuns()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Timestamp:  time.Now().UTC(),
		Version:    s.version,
		Uptime:     time.Since(s.start).Seconds(),
		QueueDepth: s.queueDepth(),
		ActiveRuns: len(s.activeRuns()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	history := []*eventstore.RunSummary{}
	if s.projection != nil {
		history = s.projection.GetHistory()
	}

	projects := len(s.cfg.Projects)
	if s.trigger != nil {
		projects = len(s.trigger.Projects())
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:     "ok",
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(s.start).Seconds(),
		QueueDepth: s.queueDepth(),
		Active:     s.activeRuns(),
		History:    history,
		Config: statusConfigSummary{
			Projects:     projects,
			Forges:       len(s.cfg.Forges),
			Workers:      s.cfg.Pipeline.Workers,
			QueueSize:    s.cfg.Pipeline.QueueSize,
			SyncEnabled:  s.cfg.Sync.Enabled,
			SyncSchedule: s.cfg.Sync.Schedule,
		},
	})
}
