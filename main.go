package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"sjsage522/pricewatch/config"
	"sjsage522/pricewatch/internal"
	"sjsage522/pricewatch/internal/analytics"
	"sjsage522/pricewatch/internal/crawler"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/cache"
	"sjsage522/pricewatch/services/publisher"
	"sjsage522/pricewatch/services/server"
	"sjsage522/pricewatch/services/store"
	"sjsage522/pricewatch/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("fetch_mode", cfg.FetchMode).
		Dur("sweep_interval", cfg.SweepInterval).
		Dur("scrape_delay", cfg.ScrapeDelay).
		Msg("Starting application")

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer deps.Close()

	g, gctx := errgroup.WithContext(ctx)

	orchestrator := worker.NewOrchestrator(
		deps.Store,
		deps.Store,
		deps.Fetcher,
		crawler.NewExtractor(&cfg),
		deps.Publisher,
		crawler.FetchOptionsFor(&cfg),
		cfg.ScrapeDelay,
	)
	runner := worker.NewSweepRunner(gctx, orchestrator)
	reader := analytics.NewService(deps.Store, deps.Store, cfg.TopNGrossProfit)
	httpServer := server.NewServer(cfg.HTTPAddr, reader, runner)
	w := worker.NewWorker(gctx, runner, cfg.SweepInterval)

	g.Go(func() error {
		return httpServer.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Msg("Starting price watch worker")
		return w.Start()
	})

	if err := g.Wait(); err != nil {
		logger.LogError("main", err, "Service exited with error")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	runner.Wait()
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*internal.Dependencies, error) {
	deps := &internal.Dependencies{Publisher: publisher.NopPublisher{}}

	// Initialize store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		deps.Store = pg
		logger.Info("Connected to Postgres")
	} else {
		deps.Store = store.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, snapshots are kept in memory only")
	}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Msg("Memcache not reachable yet")
		}
		deps.Cache = cacheService
		logger.Info("Using Memcache at %s", cfg.MemcacheAddr)
	}

	// Initialize publisher
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			deps.Store.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Publisher = redisPublisher
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	deps.Fetcher = crawler.NewFetcher(cfg, deps.Cache)
	return deps, nil
}
