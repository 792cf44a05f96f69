package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftbay/auction-service/internal/api"
	"github.com/craftbay/auction-service/internal/auction"
	"github.com/craftbay/auction-service/internal/clock"
	"github.com/craftbay/auction-service/internal/config"
	"github.com/craftbay/auction-service/internal/health"
	"github.com/craftbay/auction-service/internal/leader"
	"github.com/craftbay/auction-service/internal/pricecache"
	"github.com/craftbay/auction-service/internal/store"
	"github.com/craftbay/auction-service/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/craftbay/auction-service/internal/store/memory"
	_ "github.com/craftbay/auction-service/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open store using the configured driver (postgres or memory).
	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to store", slog.String("driver", cfg.Database.Driver))

	// Optional advisory bid floor cache.
	cache, err := pricecache.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting price cache: %w", err)
	}
	defer cache.Close()
	if cache != nil {
		logger.InfoContext(ctx, "price cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	mgr := auction.NewManager(repos.Records, repos.Events, logger, tp.TracerProvider, clk, cfg.Auction.MaxBidRetries)

	// Setup health checks.
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
	)

	// HTTP API runs on every replica; health endpoints share the server.
	router := api.New(mgr, cache, logger).Router()
	router.HandleFunc("/healthz", healthHandler.LivenessHandler())
	router.HandleFunc("/readyz", healthHandler.ReadinessHandler())

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
		}
	}()

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "auctiond is running", slog.String("version", version))

	// The closing sweeper is the only work that must run on exactly one
	// replica; expired auctions read between sweeps are settled lazily by
	// the API anyway.
	sweeper := auction.NewSweeper(mgr, cfg.Auction.SweepInterval, logger)

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for sweeper leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, sweeper.Run, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		go sweeper.Run(ctx)
		<-ctx.Done()
	}

	logger.Info("shutting down...")
	healthHandler.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}
