package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paymentstack/autopilot/internal/api"
	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/events"
	"github.com/paymentstack/autopilot/internal/health"
	"github.com/paymentstack/autopilot/internal/metrics"
	"github.com/paymentstack/autopilot/internal/orchestrator"
	"github.com/paymentstack/autopilot/internal/storage"
	"github.com/paymentstack/autopilot/internal/utils"
)

const sessionMaxAge = 30 * time.Minute

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting autopilot", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	state, err := orchestrator.NewState(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise engines", slog.Any("error", err))
		os.Exit(1)
	}
	defer state.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source events.Source = events.NewSimulator(time.Now().UnixNano())
	if cfg.Events.RedisEnabled {
		stream, err := events.NewStreamSource(ctx, cfg.Events, logger)
		if err != nil {
			logger.Warn("redis stream unavailable, falling back to simulator", slog.Any("error", err))
		} else {
			source = stream
			logger.Info("consuming redis stream",
				slog.String("stream", cfg.Events.Stream),
				slog.String("group", cfg.Events.ConsumerGroup),
			)
		}
	}
	defer source.Close()

	var archiver storage.Archiver = storage.NoopArchiver{}
	if cfg.Storage.Enabled && cfg.Storage.DatabaseURL != "" {
		pg, err := storage.NewPostgresArchiver(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Warn("postgres archive unavailable", slog.Any("error", err))
		} else {
			archiver = pg
		}
	}
	defer archiver.Close()

	sampler := health.NewSimulatedSampler(time.Now().UnixNano())

	dispatcher := orchestrator.NewDispatcher(state, source, sampler, archiver, logger)
	if cfg.Dispatcher.Enabled {
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
	}

	go sessionJanitor(ctx, state, logger)

	handler := api.NewHandler(state, sampler, logger)
	server, err := api.NewServer(cfg.Server, handler.Routes())
	if err != nil {
		logger.Error("failed to create API server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("API server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("API server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("autopilot stopped")
}

// sessionJanitor expires idle API sessions on a fixed cadence.
func sessionJanitor(ctx context.Context, state *orchestrator.State, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := state.CleanupSessions(sessionMaxAge); removed > 0 {
				logger.Info("expired idle sessions", slog.Int("removed", removed))
			}
		}
	}
}
