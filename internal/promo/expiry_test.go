package promo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/promolabs/promo-api/internal/lock"
	"github.com/promolabs/promo-api/internal/promo"
	"github.com/promolabs/promo-api/internal/resilience"
)

func TestSweeperHandleExpireTask(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls int
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/rules/sweep-expired", r.URL.Path)
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"swept":2}}`))
	}))
	t.Cleanup(api.Close)

	sweeper := promo.Sweeper{
		BaseURL: api.URL,
		HTTP:    resilience.HTTPClient{Client: api.Client()},
		Locker:  lock.Locker{R: client, TTL: time.Second, RetryBackoff: 5 * time.Millisecond},
	}

	task := asynq.NewTask(promo.TaskExpireRules, nil)
	require.NoError(t, sweeper.HandleExpireTask(context.Background(), task))
	require.Equal(t, 1, calls)
	// lock released after the sweep
	require.False(t, mr.Exists(promo.ExpireLockKey))
}

func TestSweeperPropagatesAPIFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(api.Close)

	sweeper := promo.Sweeper{
		BaseURL: api.URL,
		HTTP:    resilience.HTTPClient{Client: api.Client()},
		Locker:  lock.Locker{R: client, TTL: time.Second, RetryBackoff: 5 * time.Millisecond},
	}

	err = sweeper.HandleExpireTask(context.Background(), asynq.NewTask(promo.TaskExpireRules, nil))
	require.Error(t, err)
}
