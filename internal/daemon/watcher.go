package daemon

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docdrift/internal/config"
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
	"git.home.luguber.info/inful/docdrift/internal/logfields"
)

// ConfigWatcher monitors the configuration file and hot-reloads it.
type ConfigWatcher struct {
	configPath   string
	onReload     func(*config.Config)
	watcher      *fsnotify.Watcher
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher builds a watcher that calls onReload with each
// successfully loaded configuration.
func NewConfigWatcher(configPath string, onReload func(*config.Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.DaemonError("failed to create file watcher").Build()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, errors.DaemonError("failed to resolve config path").
			WithContext("path", configPath).
			Build()
	}

	return &ConfigWatcher{
		configPath:   absPath,
		onReload:     onReload,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second, // rapid editor saves collapse into one reload
	}, nil
}

// Start begins monitoring. Watching the directory rather than the file
// survives the rename-and-replace dance editors do on save.
func (cw *ConfigWatcher) Start() error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return errors.DaemonError("failed to watch config directory").
			WithContext("dir", configDir).
			Build()
	}

	slog.Info("configuration watcher started", logfields.Path(cw.configPath))
	go cw.watchLoop()
	go cw.reloadLoop()
	return nil
}

// Stop stops the watcher goroutines.
func (cw *ConfigWatcher) Stop() {
	close(cw.stopChan)
	if err := cw.watcher.Close(); err != nil {
		slog.Error("error closing file watcher", logfields.Error(err))
	}
}

func (cw *ConfigWatcher) watchLoop() {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				cw.triggerReload()
			case event.Op&fsnotify.Remove != 0:
				slog.Warn("config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop() {
	var reloadTimer *time.Timer

	for {
		select {
		case <-cw.stopChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return
		case <-cw.reloadChan:
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(cw.debounceTime, cw.performReload)
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default: // reload already pending
	}
}

// performReload loads and validates the file; a broken edit keeps the
// previous configuration running.
func (cw *ConfigWatcher) performReload() {
	cfg, err := config.Load(cw.configPath)
	if err != nil {
		slog.Error("failed to reload configuration, keeping previous",
			logfields.Path(cw.configPath), logfields.Error(err))
		return
	}

	slog.Info("configuration reloaded",
		logfields.Path(cw.configPath),
		logfields.Count(len(cfg.Projects)))
	if cw.onReload != nil {
		cw.onReload(cfg)
	}
}
