package git

import (
	"strings"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/sanitize"
)

// Classify translates go-git errors into classified errors. Error text from
// the transport can echo remote URLs, so everything is sanitized on the way
// through. Returns nil for nil.
func Classify(err error, op, ref string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	msg := sanitize.String(err.Error())
	ref = sanitize.URL(ref)

	var builder *errors.ErrorBuilder
	switch {
	case strings.Contains(l, "authentication required") ||
		strings.Contains(l, "authentication failed") ||
		strings.Contains(l, "authorization failed") ||
		strings.Contains(l, "invalid credentials") ||
		strings.Contains(l, "invalid username or password"):
		builder = errors.AuthError("git authentication failed")
	case strings.Contains(l, "repository not found") ||
		strings.Contains(l, "repository does not exist") ||
		strings.Contains(l, "reference not found") ||
		strings.Contains(l, "object not found") ||
		strings.Contains(l, "unknown revision"):
		builder = errors.NotFoundError("git reference not found")
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		builder = errors.NetworkError("remote rate limit hit").RateLimit()
	case strings.Contains(l, "timeout") ||
		strings.Contains(l, "timed out") ||
		strings.Contains(l, "connection refused") ||
		strings.Contains(l, "connection reset") ||
		strings.Contains(l, "no route to host") ||
		strings.Contains(l, "temporary failure") ||
		strings.Contains(l, "unexpected eof") ||
		strings.Contains(l, "remote hung up"):
		builder = errors.NetworkError("git network failure").Retryable()
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "diverged"):
		builder = errors.ConflictError("remote branch diverged").WithContext("conflict", true)
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		builder = errors.ConfigError("unsupported git protocol")
	default:
		builder = errors.GitError("git operation failed")
	}

	return builder.
		WithContext("op", op).
		WithContext("ref", ref).
		WithContext("cause", msg).
		Build()
}

// IsTransient reports whether an error is worth another attempt: network
// failures and rate limits only. Auth and not-found errors never are.
func IsTransient(err error) bool {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return false
	}
	return ce.IsCategory(errors.CategoryNetwork) && ce.CanRetry()
}

// IsConflict reports whether an error is a non-fast-forward push rejection.
func IsConflict(err error) bool {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return false
	}
	v, _ := ce.Context().Get("conflict")
	conflict, _ := v.(bool)
	return conflict
}
