package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/retail-proxy/internal/server"
	"github.com/Sternrassler/retail-proxy/pkg/cache"
	"github.com/Sternrassler/retail-proxy/pkg/inventory"
	"github.com/Sternrassler/retail-proxy/pkg/logging"
	"github.com/Sternrassler/retail-proxy/pkg/router"
	"github.com/Sternrassler/retail-proxy/pkg/upstream"
)

func main() {
	// .env is optional, real environments set variables directly
	_ = godotenv.Load()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") != "",
		Output: os.Stderr,
	})

	redisURL := getEnv("REDIS_URL", "localhost:6379")
	listenAddr := getEnv("LISTEN_ADDR", ":9999")
	metricsAddr := getEnv("METRICS_ADDR", ":8080")
	photosURL := getEnv("PHOTOS_URL", router.DefaultConfig().PhotosURL)
	userAgent := getEnv("USER_AGENT", "retail-proxy/0.1.0")

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
		DB:   envInt("REDIS_DB", 4),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis_url", redisURL).Msg("Connected to Redis")

	// Compose the data path: upstream client, cache-aside fetcher, ledger
	upstreamClient := upstream.New(upstream.Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	})
	fetcher := cache.NewFetcher(cache.NewStore(redisClient), upstreamClient)
	ledger := inventory.NewLedger(redisClient, inventory.Config{
		MaxRetries: envInt("SELL_MAX_RETRIES", 0),
	})

	r := router.New(fetcher, ledger, router.Config{PhotosURL: photosURL})
	srv := server.New(r, server.Config{Addr: listenAddr})

	// Metrics and health listener
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		logger.Info().Str("addr", metricsAddr).Msg("Metrics listener started")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	// Best-effort reclamation of sold-out items
	if interval := envInt("REFRESH_INTERVAL_SECONDS", 0); interval > 0 {
		go refreshLoop(ctx, ledger, time.Duration(interval)*time.Second)
	}

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()
	logger.Info().Str("addr", listenAddr).Msg("Retail proxy started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")
	cancel()

	if err := srv.Close(); err != nil {
		logger.Warn().Err(err).Msg("Server close failed")
	}

	// Final sweep before exit; failures are reported, not fatal
	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer sweepCancel()
	if report, err := ledger.Refresh(sweepCtx); err != nil {
		logger.Warn().Err(err).Int("deleted", report.Deleted).Msg("Final refresh sweep incomplete")
	} else {
		logger.Info().Int("deleted", report.Deleted).Msg("Final refresh sweep done")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn().Err(err).Msg("Redis close failed")
	}
	logger.Info().Msg("Stopped")
}

// refreshLoop periodically reclaims zero-quantity items. Sweeps are
// best-effort; a failed sweep is logged and the next one runs on schedule.
func refreshLoop(ctx context.Context, ledger *inventory.Ledger, interval time.Duration) {
	logger := logging.NewLogger("refresh")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := ledger.Refresh(ctx)
			if err != nil {
				logger.Warn().Err(err).Int("deleted", report.Deleted).Msg("Refresh sweep incomplete")
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
