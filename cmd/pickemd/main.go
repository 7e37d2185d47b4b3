package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/pickem/internal/adapters/http/api"
	"github.com/okian/pickem/internal/adapters/scores"
	service "github.com/okian/pickem/internal/app"
	"github.com/okian/pickem/internal/config"
	"github.com/okian/pickem/internal/reconcile"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
	logSizeInterval       = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			logger.Error(err)
		}
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Create and start the service over the durable event log.
	svc := service.New(
		service.WithLogger(loggerInstance),
		service.WithDBPath(cfg.DBPath),
		service.WithEventTTL(time.Duration(cfg.EventTTLMinutes)*time.Minute),
		service.WithPageLimit(cfg.PageLimit),
		service.WithPurgeEvery(cfg.PurgeEvery),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// Reconciliation runs only when a score source is configured; the
	// feed endpoints work without it.
	var rec api.Reconciler
	if cfg.ScoreSourceURL != "" {
		source := scores.NewClient(cfg.ScoreSourceURL, identityTeams(),
			scores.WithTimeout(time.Duration(cfg.ScoreSourceTimeoutSeconds)*time.Second),
			scores.WithLogger(loggerInstance),
		)
		schedOpts := []reconcile.Option{
			reconcile.WithInterval(time.Duration(cfg.ReconcileMinutes) * time.Minute),
			reconcile.WithLookback(time.Duration(cfg.LookbackHours) * time.Hour),
			reconcile.WithTrailing(time.Duration(cfg.TrailingHours) * time.Hour),
			reconcile.WithLockLead(time.Duration(cfg.LockLeadMinutes) * time.Minute),
			reconcile.WithFetchTimeout(time.Duration(cfg.ScoreSourceTimeoutSeconds) * time.Second),
			reconcile.WithLogger(loggerInstance),
		}
		if cfg.ActiveHoursEnabled {
			schedOpts = append(schedOpts, reconcile.WithActiveHours(cfg.ActiveHoursStart, cfg.ActiveHoursEnd))
		}
		sched := reconcile.New(svc.Store(), source, svc, svc, schedOpts...)
		go sched.Run(ctx)
		rec = sched
	} else {
		loggerInstance.Warn(ctx, "no score_source_url configured; reconciliation disabled")
	}

	// Background metric updaters.
	go startSystemMetricsUpdater(ctx)
	go startLogSizeUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc, rec,
		api.WithTailInterval(time.Duration(cfg.StreamTailSeconds)*time.Second),
		api.WithHeartbeatInterval(time.Duration(cfg.HeartbeatSeconds)*time.Second),
		api.WithPageLimits(cfg.PageLimit, cfg.PageLimit),
	)
	apiServer.Register(ctx, mux)

	// WriteTimeout stays zero: streaming responses are long-lived and
	// must not be cut by the server.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// identityTeams maps external team names to themselves. Installations
// whose score source uses different names swap this for a real mapping.
func identityTeams() scores.TeamMapper {
	return scores.TeamMapperFunc(func(external string) (string, bool) {
		return external, external != ""
	})
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}

// startLogSizeUpdater keeps the event-log size gauge current.
func startLogSizeUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(logSizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Store().CountEvents(ctx)
			if err != nil {
				continue
			}
			metrics.UpdateEventLogSize(n)
		}
	}
}
