// Package sanitize removes credentials from free-form text before it can
// reach logs, error messages, artifacts, or pull request bodies. Everything
// that echoes remote URLs or subprocess output must pass through here.
package sanitize

import (
	"errors"
	"regexp"
)

const (
	// TokenReplacement substitutes recognized provider token literals.
	TokenReplacement = "***REDACTED_TOKEN***"
	// UserinfoReplacement substitutes basic-auth userinfo embedded in URLs.
	UserinfoReplacement = "***REDACTED***"
)

// Provider token prefixes are matched by shape, never by entropy, so commit
// hashes and object keys pass through untouched.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`gh[oprsu]_[A-Za-z0-9]{3,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{3,}`),
	regexp.MustCompile(`glpat-[A-Za-z0-9\-]{3,}`),
}

var (
	urlUserinfo = regexp.MustCompile(`(?i)([a-z][a-z0-9+.\-]*://)[^/@\s]+@`)
	authHeader  = regexp.MustCompile(`(?i)(authorization:\s*(?:bearer|token|basic)\s+)\S+`)
)

// String returns s with all recognized credentials replaced.
func String(s string) string {
	// Userinfo first: a token inside userinfo collapses into one marker
	// instead of a nested replacement.
	s = urlUserinfo.ReplaceAllString(s, "${1}"+UserinfoReplacement+"@")
	s = authHeader.ReplaceAllString(s, "${1}"+TokenReplacement)
	for _, p := range tokenPatterns {
		s = p.ReplaceAllString(s, TokenReplacement)
	}
	return s
}

// Error returns an error whose text is sanitized. The cause chain is
// deliberately dropped: a wrapped cause would re-expose the original text
// through errors.Unwrap.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(String(err.Error()))
}

// URL strips userinfo from a URL string for display. Unlike String it does
// not touch anything outside the userinfo segment.
func URL(raw string) string {
	return urlUserinfo.ReplaceAllString(raw, "${1}"+UserinfoReplacement+"@")
}
