package app

import (
	"context"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/promolabs/promo-api/internal/rule"
)

// Dependencies enumerates core services shared across modules to make future wiring explicit.
type Dependencies struct {
	Context         context.Context
	Rules           *rule.Store
	Redis           *redis.Client
	Validator       *validator.Validate
	Limiter         *limiter.Limiter
	LimiterStore    limiter.Store
	TaskClient      *asynq.Client
	TaskServer      *asynq.Server
	MetricsRegistry *prometheus.Registry
	TracerProvider  trace.TracerProvider
	MeterProvider   metric.MeterProvider
}

// NewLimiterStore wires a rate limiter store backed by Redis.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{})
}

// NewLimiter builds a limiter from a formatted rate such as "100-M".
func NewLimiter(store limiter.Store, rate string) (*limiter.Limiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	return limiter.New(store, parsed), nil
}

// Tracer returns the default OpenTelemetry tracer for instrumentation hooks.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns the default OpenTelemetry meter for instrumentation hooks.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
