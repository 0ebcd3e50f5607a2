package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/forge"
)

const webhookSecret = "hook-secret"

const forgejoPush = `{
	"ref": "refs/heads/main",
	"after": "aabbccddeeff00112233445566778899aabbccdd",
	"repository": {
		"name": "widgets",
		"full_name": "acme/widgets",
		"clone_url": "https://forge.example.com/acme/widgets.git",
		"html_url": "https://forge.example.com/acme/widgets",
		"default_branch": "main",
		"owner": {"username": "acme"}
	}
}`

func signSHA256(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newWebhookServer(t *testing.T) (*Server, *fakeTrigger) {
	t.Helper()
	cfg := serverConfig()
	cfg.Forges = []*config.ForgeConfig{{
		Name:    "forgejo-main",
		Type:    config.ForgeForgejo,
		APIURL:  "https://forge.example.com/api/v1",
		BaseURL: "https://forge.example.com",
		Auth:    &config.AuthConfig{Type: config.AuthTypeToken, Token: "api-token"},
		Webhook: &config.WebhookConfig{Secret: webhookSecret},
	}}
	forges, err := forge.NewRegistry(cfg.Forges)
	require.NoError(t, err)

	trigger := &fakeTrigger{projects: cfg.Projects, runID: "run-7"}
	s, err := New(Deps{Config: cfg, Trigger: trigger, Forges: forges})
	require.NoError(t, err)
	return s, trigger
}

func postWebhook(t *testing.T, h http.Handler, provider, payload, signature, event string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/"+provider, strings.NewReader(payload))
	if signature != "" {
		req.Header.Set(forge.SignatureHeader, signature)
	}
	if event != "" {
		req.Header.Set("X-Forgejo-Event", event)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhookAcceptsSignedPush(t *testing.T) {
	s, trigger := newWebhookServer(t)
	mux := s.webhookMux()

	w := postWebhook(t, mux, "forgejo-main", forgejoPush, signSHA256(webhookSecret, []byte(forgejoPush)), "push")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "run-7")
	require.Len(t, trigger.pushed, 1)
	assert.Equal(t, "main", trigger.pushed[0].Branch)
	assert.Equal(t, "aabbccddeeff00112233445566778899aabbccdd", trigger.pushed[0].HeadSHA)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s, trigger := newWebhookServer(t)
	mux := s.webhookMux()

	w := postWebhook(t, mux, "forgejo-main", forgejoPush, signSHA256("wrong-secret", []byte(forgejoPush)), "push")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, trigger.pushed)

	w = postWebhook(t, mux, "forgejo-main", forgejoPush, "", "push")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing signature never validates")
}

func TestWebhookIgnoresNonPushEvents(t *testing.T) {
	s, trigger := newWebhookServer(t)
	mux := s.webhookMux()

	w := postWebhook(t, mux, "forgejo-main", forgejoPush, signSHA256(webhookSecret, []byte(forgejoPush)), "issues")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	assert.Empty(t, trigger.pushed)
}

func TestWebhookUnknownProvider(t *testing.T) {
	s, _ := newWebhookServer(t)
	mux := s.webhookMux()

	w := postWebhook(t, mux, "nope", forgejoPush, signSHA256(webhookSecret, []byte(forgejoPush)), "push")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookIgnoredPushReturnsOK(t *testing.T) {
	s, trigger := newWebhookServer(t)
	trigger.runID = "" // daemon ignored the push (untracked branch etc.)
	mux := s.webhookMux()

	w := postWebhook(t, mux, "forgejo-main", forgejoPush, signSHA256(webhookSecret, []byte(forgejoPush)), "push")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}
