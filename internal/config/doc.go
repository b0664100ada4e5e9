// Package config provides configuration types and loading for avaguard.
//
// # Features
//
//   - YAML configuration file loading
//   - Environment variable substitution with ${VAR:-default} syntax
//   - AVAGUARD_* environment overrides for deployment-specific values
//   - Validation that reports every problem with its YAML path
//   - File watching for hot reload of the rate limit quota
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("avaguard.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
//	watcher, err := config.NewWatcher(path, func(cfg *config.Config) {
//	    quota.Store(cfg.RateLimit.Quota())
//	}, config.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := watcher.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package config
