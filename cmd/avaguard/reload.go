package main

import (
	"context"

	"github.com/vyrodovalexey/avaguard/internal/config"
	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// startConfigWatcher starts the configuration watcher. Failures are
// logged and leave the server running without hot reload.
func (a *application) startConfigWatcher(ctx context.Context, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, a.applyConfig,
		config.WithLogger(a.logger),
		config.WithErrorCallback(func(error) {
			a.metrics.RecordConfigReload(false)
		}),
	)
	if err != nil {
		a.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		a.logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	return watcher
}

// applyConfig applies a reloaded configuration. Only the rate limit quota
// changes at runtime; everything else needs a restart.
func (a *application) applyConfig(cfg *config.Config) {
	a.metrics.RecordConfigReload(true)

	if a.quota == nil {
		a.logger.Info("configuration reloaded; rate limiting was disabled at startup, restart to apply changes")
		return
	}
	if cfg.RateLimit == nil || !cfg.RateLimit.Enabled {
		a.logger.Warn("rate limiting cannot be disabled at runtime; keeping current quota")
		return
	}

	next := cfg.RateLimit.Quota()
	prev := a.quota.Load()
	if next == prev {
		a.logger.Debug("rate limit quota unchanged", observability.String("quota", prev.String()))
		return
	}

	a.quota.Store(next)
	a.logger.Info("rate limit quota reloaded",
		observability.String("previous", prev.String()),
		observability.String("current", next.String()),
	)
}
