package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/adapter/chromedp_checker"
	"github.com/user/linkchecker-service/internal/adapter/httpcheck"
	"github.com/user/linkchecker-service/internal/adapter/postgres"
	redis_adapter "github.com/user/linkchecker-service/internal/adapter/redis"
	"github.com/user/linkchecker-service/internal/extractor"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/internal/usecase"
	"github.com/user/linkchecker-service/pkg/config"
	"github.com/user/linkchecker-service/pkg/logger"
	"github.com/user/linkchecker-service/pkg/metrics"
)

// app holds the wired service. Close releases it in reverse order.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	scanner usecase.Scanner
	report  usecase.Report
	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	// --- Logger ---
	log := logger.Init(os.Stdout, cfg.LogLevel)

	// --- Metrics ---
	metrics.Init()

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	// --- Database Connections ---
	dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, dbpool.Close)
	if err := dbpool.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("PostgreSQL connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info("Redis connection established")

	// --- Repositories ---
	trackedRepo := postgres.NewTrackedEntityRepo(dbpool)
	linkRepo := postgres.NewLinkReportRepo(dbpool)
	contentStore := postgres.NewContentStore(dbpool)
	checkCache := redis_adapter.NewCheckCache(rdb)
	progressRepo := redis_adapter.NewProgressRepo(rdb)
	scanLoader := config.NewScanLoader(cfg.ScanConfigFile)

	urls, err := extractor.New(cfg.SiteBaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}

	var urlChecker repository.URLChecker
	switch cfg.CheckerMode {
	case config.CheckerBrowser:
		bc := chromedp_checker.NewBrowserChecker(cfg.CheckConcurrency, cfg.CheckTimeout, log)
		a.closers = append(a.closers, bc.Close)
		urlChecker = bc
	default:
		urlChecker = httpcheck.New(cfg.CheckTimeout, httpcheck.WithRateLimit(cfg.CheckRatePerSecond))
	}

	// --- Use Cases ---
	tracker := usecase.NewChangeTracker(trackedRepo, linkRepo, contentStore, log)
	linkChecker := usecase.NewLinkChecker(linkRepo, urlChecker, checkCache, cfg.CheckCacheTTL, cfg.CheckConcurrency, log)
	a.scanner = usecase.NewScanner(usecase.ScannerDeps{
		Config:    scanLoader,
		Tracker:   tracker,
		Content:   contentStore,
		Committer: trackedRepo,
		Links:     linkRepo,
		Checker:   linkChecker,
		Progress:  progressRepo,
		URLs:      urls,
	}, cfg.ExtractionWorkers, log)
	a.closers = append(a.closers, a.scanner.Shutdown)
	a.report = usecase.NewReport(linkRepo, scanLoader, log)

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
