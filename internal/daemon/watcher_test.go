package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdrift/internal/config"
)

const watcherConfig = `version: "1.0"
store:
  url: file:///tmp/docdrift-artifacts
projects:
  - id: widgets
    owner: acme
    repo: widgets
    url: https://github.com/acme/widgets.git
`

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docdrift.yaml")
	writeConfig(t, path, watcherConfig)

	reloaded := make(chan *config.Config, 1)
	cw, err := NewConfigWatcher(path, func(cfg *config.Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond
	require.NoError(t, cw.Start())
	defer cw.Stop()

	writeConfig(t, path, watcherConfig+`  - id: gadgets
    owner: acme
    repo: gadgets
    url: https://github.com/acme/gadgets.git
`)

	select {
	case cfg := <-reloaded:
		assert.Len(t, cfg.Projects, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestConfigWatcherKeepsRunningOnBrokenEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docdrift.yaml")
	writeConfig(t, path, watcherConfig)

	reloaded := make(chan *config.Config, 4)
	cw, err := NewConfigWatcher(path, func(cfg *config.Config) { reloaded <- cfg })
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond
	require.NoError(t, cw.Start())
	defer cw.Stop()

	// A broken edit is rejected without a callback.
	writeConfig(t, path, "version: \"9.9\"\n")
	select {
	case <-reloaded:
		t.Fatal("invalid configuration must not reach the daemon")
	case <-time.After(500 * time.Millisecond):
	}

	// Fixing the file recovers.
	writeConfig(t, path, watcherConfig)
	select {
	case cfg := <-reloaded:
		assert.Len(t, cfg.Projects, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired after fix")
	}
}

func TestConfigWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docdrift.yaml")
	writeConfig(t, path, watcherConfig)

	reloaded := make(chan *config.Config, 1)
	cw, err := NewConfigWatcher(path, func(cfg *config.Config) { reloaded <- cfg })
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond
	require.NoError(t, cw.Start())
	defer cw.Stop()

	writeConfig(t, filepath.Join(dir, "other.yaml"), "unrelated: true\n")
	select {
	case <-reloaded:
		t.Fatal("sibling file changes must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}
