package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingStore(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	StoreTimeout time.Duration
	RedisTimeout time.Duration
}

var notReady atomic.Bool

// SetReady flips the readiness gate. Graceful shutdown sets it to false so
// load balancers drain the instance before connections are closed.
func SetReady(ready bool) {
	notReady.Store(!ready)
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on the shutdown gate and dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if notReady.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	storeStatus := "ok"
	if err := h.Checker.PingStore(ctx, h.storeTimeout()); err != nil {
		storeStatus = err.Error()
	}
	redisStatus := "ok"
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		redisStatus = err.Error()
	}
	status := map[string]string{
		"store": storeStatus,
		"redis": redisStatus,
	}
	w.Header().Set("Content-Type", "application/json")
	if storeStatus != "ok" || redisStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) storeTimeout() time.Duration {
	if h.StoreTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.StoreTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
