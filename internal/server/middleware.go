package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/ratelimit"
)

// RateLimitMiddleware guards next with a per-client fixed-window limit.
// The key is the forwarded client address when a proxy sets one,
// otherwise the peer address. A nil limiter passes everything through.
func RateLimitMiddleware(next http.Handler, lim *ratelimit.Limiter, clk clock.Clock) http.Handler {
	if lim == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			key = forwarded
		}

		decision := lim.Allow(r.Context(), key)
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", decision.ResetAt.Format(time.RFC3339))

		if !decision.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAt.Sub(clk.Now()).Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
