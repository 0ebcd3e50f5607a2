package forge

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// SignatureHeader is the preferred webhook signature header. GitHub sends
// it as sha256=<hex>; Forgejo and Gitea mirror the format.
const SignatureHeader = "X-Hub-Signature-256"

// LegacySignatureHeader carries the sha1 fallback some older setups send.
const LegacySignatureHeader = "X-Hub-Signature"

// verifySignature checks an HMAC webhook signature against the payload.
// sha256=<hex> is preferred, sha1=<hex> accepted as legacy; allowBare also
// accepts an unprefixed SHA-1 hex digest (older Forgejo/Gitea setups).
// Missing signature or secret always fails.
func verifySignature(payload []byte, signature, secret string, allowBare bool) bool {
	if signature == "" || secret == "" {
		return false
	}

	if expected, ok := strings.CutPrefix(signature, "sha256="); ok {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	if expected, ok := strings.CutPrefix(signature, "sha1="); ok {
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(expected), []byte(calc))
	}

	if allowBare {
		mac := hmac.New(sha1.New, []byte(secret))
		mac.Write(payload)
		calc := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(signature), []byte(calc))
	}

	return false
}

// pushPayload covers the fields shared by GitHub and Forgejo/Gitea push
// deliveries; Gitea mirrors the GitHub shape closely enough for one decoder.
type pushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Deleted    bool   `json:"deleted"`
	Repository struct {
		Name          string `json:"name"`
		FullName      string `json:"full_name"`
		CloneURL      string `json:"clone_url"`
		HTMLURL       string `json:"html_url"`
		DefaultBranch string `json:"default_branch"`
		Owner         struct {
			Login    string `json:"login"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"owner"`
	} `json:"repository"`
}

const zeroSHA = "0000000000000000000000000000000000000000"

func parsePushEvent(payload []byte) (*PushEvent, error) {
	var raw pushPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.WrapError(err, errors.CategoryForge, "failed to decode push payload").Build()
	}
	if raw.Repository.FullName == "" && raw.Repository.Name == "" {
		return nil, errors.ForgeError("push payload missing repository").Build()
	}

	owner := raw.Repository.Owner.Login
	if owner == "" {
		owner = raw.Repository.Owner.Username
	}
	if owner == "" {
		owner = raw.Repository.Owner.Name
	}
	name := raw.Repository.Name
	if owner == "" || name == "" {
		if o, n, ok := strings.Cut(raw.Repository.FullName, "/"); ok {
			if owner == "" {
				owner = o
			}
			if name == "" {
				name = n
			}
		}
	}

	return &PushEvent{
		Ref:     raw.Ref,
		Branch:  strings.TrimPrefix(raw.Ref, "refs/heads/"),
		HeadSHA: raw.After,
		Deleted: raw.Deleted || raw.After == zeroSHA,
		Repo: PushRepo{
			Owner:         owner,
			Name:          name,
			FullName:      raw.Repository.FullName,
			CloneURL:      raw.Repository.CloneURL,
			HTMLURL:       raw.Repository.HTMLURL,
			DefaultBranch: raw.Repository.DefaultBranch,
		},
	}, nil
}
