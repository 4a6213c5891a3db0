package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/promolabs/promo-api/internal/config"
	"github.com/promolabs/promo-api/internal/lock"
	"github.com/promolabs/promo-api/internal/obs"
	"github.com/promolabs/promo-api/internal/promo"
	"github.com/promolabs/promo-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.RedisURL == "" {
		panic("worker requires REDIS_URL")
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "promo"), nil)

	redisClient := mustInitRedis(context.Background(), cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	sweeper := promo.Sweeper{
		BaseURL: envOrDefault("PROMO_API_BASE_URL", "http://localhost:8080"),
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Timeout: 10 * time.Second},
			Breaker:     resilience.NewBreaker(3, 0.5, 30*time.Second),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
		},
		Locker: lock.Locker{R: redisClient, TTL: cfg.LockTTL, RetryBackoff: cfg.LockRetryBackoff},
		Logger: logger,
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for asynq")
	}

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{})
	spec := fmt.Sprintf("@every %s", cfg.ExpirySweepInterval)
	if _, err := scheduler.Register(spec, asynq.NewTask(promo.TaskExpireRules, nil)); err != nil {
		logger.Fatal().Err(err).Str("spec", spec).Msg("register expiry schedule")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	defer scheduler.Shutdown()

	srv := asynq.NewServer(redisConn, asynq.Config{Concurrency: 1})
	mux := asynq.NewServeMux()
	mux.HandleFunc(promo.TaskExpireRules, sweeper.HandleExpireTask)

	logger.Info().Str("interval", cfg.ExpirySweepInterval.String()).Msg("expiry worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
