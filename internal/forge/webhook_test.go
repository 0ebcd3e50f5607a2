package forge

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/config"
)

func signSHA256(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func signSHA1(payload []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func githubClient(t *testing.T, secret string) *GitHubClient {
	t.Helper()
	c, err := newGitHub(&config.ForgeConfig{
		Name:    "gh",
		Type:    config.ForgeGitHub,
		APIURL:  "https://api.github.com",
		BaseURL: "https://github.com",
		Webhook: &config.WebhookConfig{Secret: secret},
	})
	require.NoError(t, err)
	return c
}

func forgejoClient(t *testing.T, secret string) *ForgejoClient {
	t.Helper()
	c, err := newForgejo(&config.ForgeConfig{
		Name:    "fj",
		Type:    config.ForgeForgejo,
		APIURL:  "https://forge.example.com/api/v1",
		BaseURL: "https://forge.example.com",
		Webhook: &config.WebhookConfig{Secret: secret},
	})
	require.NoError(t, err)
	return c
}

func TestValidateWebhookSHA256(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	c := githubClient(t, "s3cret")

	assert.True(t, c.ValidateWebhook(payload, signSHA256(payload, "s3cret")))
	assert.False(t, c.ValidateWebhook(payload, signSHA256(payload, "wrong")))
	assert.False(t, c.ValidateWebhook([]byte("tampered"), signSHA256(payload, "s3cret")))
}

func TestValidateWebhookSHA1Fallback(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	c := githubClient(t, "s3cret")

	assert.True(t, c.ValidateWebhook(payload, "sha1="+signSHA1(payload, "s3cret")))
	// Bare digests are a Forgejo/Gitea legacy, not a GitHub one.
	assert.False(t, c.ValidateWebhook(payload, signSHA1(payload, "s3cret")))
	assert.True(t, forgejoClient(t, "s3cret").ValidateWebhook(payload, signSHA1(payload, "s3cret")))
}

func TestValidateWebhookMissingSecretOrSignature(t *testing.T) {
	payload := []byte(`{}`)
	assert.False(t, githubClient(t, "").ValidateWebhook(payload, signSHA256(payload, "")))
	assert.False(t, githubClient(t, "s3cret").ValidateWebhook(payload, ""))
}

func TestParsePushEventGitHubShape(t *testing.T) {
	payload := []byte(`{
		"ref": "refs/heads/main",
		"after": "0123456789abcdef0123456789abcdef01234567",
		"deleted": false,
		"repository": {
			"name": "svc",
			"full_name": "acme/svc",
			"clone_url": "https://github.com/acme/svc.git",
			"html_url": "https://github.com/acme/svc",
			"default_branch": "main",
			"owner": {"login": "acme"}
		}
	}`)

	ev, err := githubClient(t, "").ParsePushEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "main", ev.Branch)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", ev.HeadSHA)
	assert.False(t, ev.Deleted)
	assert.Equal(t, "acme", ev.Repo.Owner)
	assert.Equal(t, "svc", ev.Repo.Name)
	assert.Equal(t, "https://github.com/acme/svc.git", ev.Repo.CloneURL)
}

func TestParsePushEventForgejoOwnerUsername(t *testing.T) {
	payload := []byte(`{
		"ref": "refs/heads/develop",
		"after": "aaaa567890abcdef0123456789abcdef01234567",
		"repository": {
			"name": "svc",
			"full_name": "acme/svc",
			"clone_url": "https://forge.example.com/acme/svc.git",
			"default_branch": "main",
			"owner": {"username": "acme"}
		}
	}`)

	ev, err := forgejoClient(t, "").ParsePushEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "develop", ev.Branch)
	assert.Equal(t, "acme", ev.Repo.Owner)
}

func TestParsePushEventBranchDeletion(t *testing.T) {
	payload := []byte(`{
		"ref": "refs/heads/stale",
		"after": "0000000000000000000000000000000000000000",
		"repository": {"full_name": "acme/svc", "owner": {"login": "acme"}}
	}`)

	ev, err := githubClient(t, "").ParsePushEvent(payload)
	require.NoError(t, err)
	assert.True(t, ev.Deleted)
	assert.Equal(t, "svc", ev.Repo.Name, "name falls back to full_name")
}

func TestParsePushEventRejectsGarbage(t *testing.T) {
	_, err := githubClient(t, "").ParsePushEvent([]byte("not json"))
	require.Error(t, err)

	_, err = githubClient(t, "").ParsePushEvent([]byte(`{"ref":"refs/heads/main"}`))
	require.Error(t, err, "missing repository must be rejected")
}
