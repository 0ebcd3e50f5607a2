package server

import (
	"io"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/docdrift/internal/forge"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
)

const maxWebhookBody = 10 << 20

// eventTypeHeaders in provider preference order; only push events build.
var eventTypeHeaders = []string{"X-GitHub-Event", "X-Forgejo-Event", "X-Gitea-Event"}

func eventType(r *http.Request) string {
	for _, h := range eventTypeHeaders {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return ""
}

// handleWebhook validates the HMAC signature before anything else touches
// the payload; an invalid signature is a hard 401.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	if s.forges == nil {
		s.recorder.IncWebhook(provider, false)
		s.adapter.WriteErrorResponse(w, r, errors.NotFoundError("no forges configured").Build())
		return
	}
	client, err := s.forges.Get(provider)
	if err != nil {
		s.recorder.IncWebhook(provider, false)
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.recorder.IncWebhook(provider, false)
		s.adapter.WriteErrorResponse(w, r, errors.ValidationError("failed to read webhook body").Build())
		return
	}

	signature := r.Header.Get(forge.SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(forge.LegacySignatureHeader)
	}
	if !client.ValidateWebhook(body, signature) {
		s.recorder.IncWebhook(provider, false)
		slog.Warn("webhook signature rejected", logfields.Provider(provider))
		s.adapter.WriteErrorResponse(w, r, errors.AuthError("webhook signature validation failed").
			WithContext("provider", provider).
			Build())
		return
	}

	if et := eventType(r); et != "" && et != "push" {
		s.recorder.IncWebhook(provider, true)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "unsupported event type"})
		return
	}

	event, err := client.ParsePushEvent(body)
	if err != nil {
		s.recorder.IncWebhook(provider, false)
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}

	if s.trigger == nil {
		s.recorder.IncWebhook(provider, false)
		s.adapter.WriteErrorResponse(w, r, errors.DaemonError("webhook trigger unavailable").Build())
		return
	}
	runID, err := s.trigger.TriggerPush(r.Context(), event)
	if err != nil {
		s.recorder.IncWebhook(provider, false)
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	s.recorder.IncWebhook(provider, true)

	if runID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "run_id": runID})
}
