// Package workspace manages per-run checkout directories. Every pipeline
// run gets its own directory from MkdirTemp; names carry only the run id,
// never repository URLs or credentials.
package workspace

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
)

// Manager hands out per-run directories under a base directory.
type Manager struct {
	baseDir string
	keep    bool
}

// NewManager creates a manager. An empty baseDir uses the system temp
// directory; keep leaves run directories behind for debugging.
func NewManager(baseDir string, keep bool) (*Manager, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, errors.FileSystemError("failed to create workspace base directory").
			WithContext("dir", baseDir).
			Build()
	}
	return &Manager{baseDir: baseDir, keep: keep}, nil
}

// Run is one run's private directory tree.
type Run struct {
	dir  string
	keep bool
}

// NewRun allocates a fresh directory for one pipeline run.
func (m *Manager) NewRun(runID string) (*Run, error) {
	dir, err := os.MkdirTemp(m.baseDir, "run-"+runID+"-")
	if err != nil {
		return nil, errors.FileSystemError("failed to create run directory").Build()
	}
	slog.Debug("created run workspace", logfields.Path(dir), logfields.RunID(runID))
	return &Run{dir: dir, keep: m.keep}, nil
}

// Dir returns the run's root directory.
func (r *Run) Dir() string { return r.dir }

// CheckoutDir returns (and creates) the subdirectory for one checkout role,
// e.g. "source" or "delivery".
func (r *Run) CheckoutDir(role string) (string, error) {
	dir := filepath.Join(r.dir, role)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.FileSystemError("failed to create checkout directory").
			WithContext("role", role).
			Build()
	}
	return dir, nil
}

// Cleanup removes the run directory unless keep was requested.
func (r *Run) Cleanup() {
	if r.keep || r.dir == "" {
		slog.Debug("keeping run workspace", logfields.Path(r.dir))
		return
	}
	if err := os.RemoveAll(r.dir); err != nil {
		slog.Warn("failed to clean run workspace", logfields.Path(r.dir), logfields.Error(err))
		return
	}
	r.dir = ""
}
