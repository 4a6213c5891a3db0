package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	limiter "github.com/ulule/limiter/v3"
)

// Handler enforces rate limits before delegating to the next handler. Limiter
// failures fail open so a Redis outage never takes the API down with it.
type Handler struct {
	L       *limiter.Limiter
	Key     func(*http.Request) string
	OnError func(error)
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.L == nil || h.Key == nil {
			next.ServeHTTP(w, r)
			return
		}
		lctx, err := h.L.Get(r.Context(), h.Key(r))
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := lctx.Reset - time.Now().Unix()
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
