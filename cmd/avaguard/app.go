package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vyrodovalexey/avaguard/internal/config"
	"github.com/vyrodovalexey/avaguard/internal/health"
	"github.com/vyrodovalexey/avaguard/internal/observability"
	"github.com/vyrodovalexey/avaguard/internal/ratelimit"
	"github.com/vyrodovalexey/avaguard/internal/ratelimit/store"
)

const readHeaderTimeout = 10 * time.Second

// application holds all application components.
type application struct {
	config  *config.Config
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	health  *health.Checker
	server  *http.Server

	// quota is nil when rate limiting is disabled.
	quota *ratelimit.DynamicQuota
	store store.Store
}

// newApplication initializes all application components. The CSRF key is
// loaded here, so ctx bounds a Vault round trip.
func newApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("avaguard")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(cfg.Tracing)
	if err != nil {
		return nil, err
	}

	app := &application{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		health:  health.NewChecker(version),
	}

	handler, err := app.buildHandler(ctx)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	app.server = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout.Duration(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:       cfg.Server.IdleTimeout.Duration(),
	}

	return app, nil
}

// initTracer initializes the tracer.
func initTracer(cfg config.TracingConfig) (*observability.Tracer, error) {
	tracerCfg := observability.TracerConfig{
		ServiceName:  cfg.ServiceName,
		Enabled:      cfg.Enabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.SamplingRate,
	}
	if tracerCfg.ServiceName == "" {
		tracerCfg.ServiceName = config.DefaultServiceName
	}

	tracer, err := observability.NewTracer(tracerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tracer, nil
}

// run serves until ctx is canceled, then shuts down gracefully.
func (a *application) run(ctx context.Context, configPath string) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.close()
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}
	return a.serve(ctx, ln, configPath)
}

// serve runs the server on ln. An empty configPath disables hot reload.
func (a *application) serve(ctx context.Context, ln net.Listener, configPath string) error {
	var watcher *config.Watcher
	if configPath != "" {
		watcher = a.startConfigWatcher(ctx, configPath)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", observability.String("address", ln.Addr().String()))
		errCh <- a.server.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	if watcher != nil {
		_ = watcher.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	a.closeWithContext(shutdownCtx)
	a.logger.Info("avaguard stopped")

	return serveErr
}

// close releases the store and flushes the tracer.
func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout.Duration())
	defer cancel()
	a.closeWithContext(ctx)
}

func (a *application) closeWithContext(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close rate limit store", observability.Error(err))
		}
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}
}
