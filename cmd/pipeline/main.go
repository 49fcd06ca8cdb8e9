package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/analytics"
	"github.com/stockpipe/stockpipe/internal/cache"
	"github.com/stockpipe/stockpipe/internal/config"
	"github.com/stockpipe/stockpipe/internal/fetch"
	"github.com/stockpipe/stockpipe/internal/logging"
	"github.com/stockpipe/stockpipe/internal/output"
	"github.com/stockpipe/stockpipe/internal/ratelimit"
	"github.com/stockpipe/stockpipe/internal/transform"
	"github.com/stockpipe/stockpipe/internal/warehouse"
	"github.com/stockpipe/stockpipe/pkg/frankfurter"
	"github.com/stockpipe/stockpipe/pkg/polygon"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Pipeline failed")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	runID := uuid.New().String()
	logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"environment": cfg.Environment,
		"tickers":     cfg.Polygon.Tickers,
	}).Info("Starting pipeline run")

	pool, err := warehouse.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// A broken cache degrades to uncached fetches, it never blocks the run.
	var responseCache *cache.ResponseCache
	if cfg.Redis.Enabled {
		redisClient, err := cache.Connect(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running uncached")
		} else {
			defer redisClient.Close()
			responseCache = cache.NewResponseCache(redisClient, cfg.Redis.CacheTTLDuration(), logger)
		}
	}

	clock := ratelimit.SystemClock()

	// One limiter and executor for both upstreams, so the whole run shares a
	// single request budget.
	limiter, err := ratelimit.NewLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, clock)
	if err != nil {
		return err
	}
	backoff := ratelimit.BackoffPolicy{
		Base: cfg.Fetch.BaseBackoffDuration(),
		Max:  cfg.Fetch.MaxBackoffDuration(),
	}
	executor := fetch.NewExecutor(
		fetch.NewHTTPClient(cfg.Fetch.RequestTimeoutDuration()),
		limiter, backoff, clock, cfg.Fetch.MaxRetries, logger,
	)

	stockClient := polygon.NewClient(cfg.Polygon, executor, responseCache, clock, logger)
	fxClient := frankfurter.NewClient(cfg.Frankfurter, executor, responseCache, clock, logger)

	stocks, stockFailures := stockClient.StockData(ctx, cfg.Polygon.Tickers, cfg.Polygon.Days, cfg.Fetch.MaxConcurrency)
	rates, rateFailures := fxClient.CurrencyData(ctx, cfg.Frankfurter.Days, cfg.Fetch.MaxConcurrency)

	if len(stockFailures) == len(cfg.Polygon.Tickers) && len(cfg.Polygon.Tickers) > 0 {
		return fmt.Errorf("all %d tickers failed", len(cfg.Polygon.Tickers))
	}
	logger.WithFields(logrus.Fields{
		"stock_failures": len(stockFailures),
		"rate_failures":  len(rateFailures),
	}).Info("Acquisition finished")

	combined := transform.Combine(stocks, rates, logger)
	summaries := analytics.Summarize(stocks, 5, logger)

	loader := warehouse.NewLoader(pool, logger)
	if err := loader.CreateSchema(ctx); err != nil {
		return err
	}
	stats, err := loader.Load(ctx, stocks, rates, stockClient.CompanyNames(), cfg.Frankfurter.BaseCurrency)
	if err != nil {
		return err
	}

	writer := output.NewWriter(cfg.Output, logger)
	if _, err := writer.WriteSampleCSV(combined); err != nil {
		return err
	}
	if _, err := writer.WriteSchemaSQL(); err != nil {
		return err
	}
	if _, err := writer.WriteSummaryJSON(summaries); err != nil {
		return err
	}

	if responseCache != nil {
		hits, misses, sets := responseCache.Counters()
		logger.WithFields(logrus.Fields{
			"hits":   hits,
			"misses": misses,
			"sets":   sets,
		}).Info("Response cache counters")
	}

	logger.WithFields(logrus.Fields{
		"run_id":     runID,
		"stocks":     stats.Stocks,
		"currencies": stats.Currencies,
		"price_rows": stats.PriceRows,
		"rate_rows":  stats.RateRows,
		"records":    len(combined),
	}).Info("Pipeline run complete")
	return nil
}
