package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyProject    = "project"
	KeyCommit     = "commit"
	KeyBranch     = "branch"
	KeyStage      = "stage"
	KeyStatus     = "status"
	KeyProvider   = "provider"
	KeyRepo       = "repository"
	KeyPath       = "path"
	KeyWorker     = "worker"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeySeverity   = "severity"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyHTTPStatus = "http_status"
	KeyRemoteAddr = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Project(id string) slog.Attr     { return slog.String(KeyProject, id) }
func Commit(sha string) slog.Attr     { return slog.String(KeyCommit, sha) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Provider(p string) slog.Attr     { return slog.String(KeyProvider, p) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Worker(id int) slog.Attr         { return slog.Int(KeyWorker, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Severity(s string) slog.Attr     { return slog.String(KeySeverity, s) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func HTTPStatus(code int) slog.Attr   { return slog.Int(KeyHTTPStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
