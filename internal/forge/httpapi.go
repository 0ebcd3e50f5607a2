package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
)

// apiClient handles the HTTP plumbing shared by forge REST clients: URL
// building, auth headers, JSON codec, and status classification. Error
// text may echo API URLs and response bodies, so both are sanitized.
type apiClient struct {
	httpClient *http.Client
	apiURL     string
	token      string

	// "token " for Forgejo/Gitea, "Bearer " elsewhere.
	authPrefix string
}

func newAPIClient(apiURL, token, authPrefix string) *apiClient {
	return &apiClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     apiURL,
		token:      token,
		authPrefix: authPrefix,
	}
}

// newRequest builds a request for a relative endpoint like
// "repos/{owner}/{repo}/pulls?state=open", preserving any base path on the
// configured API URL.
func (a *apiClient) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	cleanEndpoint := strings.TrimPrefix(endpoint, "/")

	var rawQuery string
	if idx := strings.Index(cleanEndpoint, "?"); idx != -1 {
		rawQuery = cleanEndpoint[idx+1:]
		cleanEndpoint = cleanEndpoint[:idx]
	}

	u, err := url.Parse(a.apiURL)
	if err != nil {
		return nil, errors.ConfigError("invalid forge API URL").
			WithContext("api_url", sanitize.URL(a.apiURL)).
			Build()
	}
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), cleanEndpoint)
	u.RawQuery = rawQuery

	var reader io.Reader = http.NoBody
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryForge, "failed to marshal request body").Build()
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryForge, "failed to create forge request").
			WithContext("method", method).
			Build()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", a.authPrefix+a.token)
	}
	req.Header.Set("User-Agent", "docdrift/1.0")
	return req, nil
}

// do executes the request and decodes the JSON response into result (when
// non-nil). Non-2xx statuses are classified: 401/403 auth, 404 not found,
// 429 rate limit, 5xx retryable network, everything else forge.
func (a *apiClient) do(req *http.Request, result any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.NetworkError("forge request failed").
			Retryable().
			WithContext("method", req.Method).
			WithContext("url", sanitize.URL(req.URL.String())).
			WithContext("cause", sanitize.String(err.Error())).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		bodyStr := sanitize.String(strings.ReplaceAll(string(limited), "\n", " "))

		builder := errors.ForgeError("forge API error")
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			builder = errors.AuthError("forge API authentication failed")
		case resp.StatusCode == http.StatusNotFound:
			builder = errors.NotFoundError("forge API resource not found")
		case resp.StatusCode == http.StatusTooManyRequests:
			builder = errors.NetworkError("forge API rate limit hit").RateLimit()
		case resp.StatusCode >= 500:
			builder = errors.NetworkError("forge API server error").Retryable()
		}
		return builder.
			WithContext("status", resp.Status).
			WithContext("code", resp.StatusCode).
			WithContext("url", sanitize.URL(req.URL.String())).
			WithContext("response", bodyStr).
			Build()
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return errors.WrapError(err, errors.CategoryForge, "failed to decode forge response").Build()
		}
	}
	return nil
}
