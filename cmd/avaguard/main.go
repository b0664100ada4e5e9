// Package main is the entry point for the avaguard policy server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/avaguard/internal/config"
	"github.com/vyrodovalexey/avaguard/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := loadAndValidateConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging, flags)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting avaguard",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("address", cfg.Server.Address),
		observability.Bool("cors", cfg.CORS != nil),
		observability.Bool("csrf", cfg.CSRF != nil && cfg.CSRF.Enabled),
		observability.Bool("rate_limit", cfg.RateLimit != nil && cfg.RateLimit.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", observability.Error(err))
	}

	if err := app.run(ctx, flags.configPath); err != nil {
		logger.Error("server stopped with error", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("AVAGUARD_CONFIG_PATH", "configs/avaguard.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	logFormat := flag.String("log-format", "", "Log format (json, console); overrides the configuration")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("avaguard version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the logger. Flags win over the configuration.
func initLogger(cfg config.LoggingConfig, flags cliFlags) observability.Logger {
	logCfg := observability.DefaultLogConfig()
	if cfg.Level != "" {
		logCfg.Level = cfg.Level
	}
	if cfg.Format != "" {
		logCfg.Format = cfg.Format
	}
	if cfg.Output != "" {
		logCfg.Output = cfg.Output
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}
