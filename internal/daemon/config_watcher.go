package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/cadence/internal/config"
	"git.home.luguber.info/inful/cadence/internal/logfields"
)

// ConfigApplier receives configurations that passed validation.
type ConfigApplier interface {
	ApplyConfig(next *config.Config)
}

// ConfigWatcher monitors the configuration file and hands validated reloads
// to an applier.
type ConfigWatcher struct {
	configPath   string
	applier      ConfigApplier
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
	mu           sync.Mutex
	stopOnce     sync.Once
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
	wg           sync.WaitGroup
}

// NewConfigWatcher creates a new configuration file watcher.
func NewConfigWatcher(configPath string, applier ConfigApplier, logger *slog.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigWatcher{
		configPath:   absPath,
		applier:      applier,
		watcher:      watcher,
		logger:       logger,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring the configuration file.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	// Watching the directory survives editors that replace the file.
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	cw.logger.Info("Starting configuration watcher", logfields.Path(cw.configPath))

	cw.wg.Add(2)
	go func() { defer cw.wg.Done(); cw.watchLoop(ctx) }()
	go func() { defer cw.wg.Done(); cw.reloadLoop(ctx) }()
	return nil
}

// Close stops the watcher. It is safe to call more than once.
func (cw *ConfigWatcher) Close() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		err = cw.watcher.Close()
		cw.wg.Wait()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
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
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				cw.logger.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Has(fsnotify.Remove):
				cw.logger.Warn("Config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer
	stop := func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-cw.stopChan:
			stop()
			return
		case <-cw.reloadChan:
			stop()
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.performReload(); err != nil {
					cw.logger.Error("Failed to reload configuration", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
	}
}

// performReload loads, validates and applies the configuration file.
// Invalid files are rejected whole and the running settings stay in place.
func (cw *ConfigWatcher) performReload() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.logger.Info("Reloading configuration", logfields.Path(cw.configPath))

	next, err := config.Load(cw.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new configuration: %w", err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cw.applier.ApplyConfig(next)
	return nil
}

// ReloadPolicy decides what part of a reloaded configuration reaches a running
// daemon. Settings tied to the repository, paths, git backend or lock stay
// fixed until restart.
type ReloadPolicy struct {
	mu        sync.Mutex
	current   *config.Config
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewReloadPolicy returns a ReloadPolicy that updates scheduler.
func NewReloadPolicy(current *config.Config, scheduler *Scheduler, logger *slog.Logger) *ReloadPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadPolicy{current: current, scheduler: scheduler, logger: logger}
}

// ApplyConfig implements ConfigApplier.
func (p *ReloadPolicy) ApplyConfig(next *config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fields := p.current.RestartRequired(next); len(fields) > 0 {
		p.logger.Warn("Configuration changes require restart and were ignored",
			slog.String("fields", strings.Join(fields, ",")))
	}

	settings := SettingsFromConfig(next)
	// The window keeps the zone the daemon started with.
	settings.Window.Location = p.current.Location()
	p.scheduler.UpdateSettings(settings)

	p.logger.Info("Configuration reloaded", slog.String("config", next.String()))
}
