package middleware

import (
	"net/http"
	"strconv"
	"time"

	"backpropd/internal/metrics"
	"backpropd/internal/ratelimit"
)

// RateLimitOptions configures the rate limit stage.
type RateLimitOptions struct {
	Store *ratelimit.Store
	// Stats receives every decision. Optional; recording errors are
	// dropped, the request path never blocks on stats.
	Stats ratelimit.Recorder
	// KeyFn derives the limiting key. Defaults to ClientIP.
	KeyFn func(r *http.Request) string
}

type rateLimitDenial struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
}

// RateLimit counts each request against its client key's fixed window.
// Remaining-quota and reset-time headers are emitted on every response,
// allowed or denied. Over-capacity requests terminate the chain with 429.
func RateLimit(opts RateLimitOptions) Middleware {
	keyFn := opts.KeyFn
	if keyFn == nil {
		keyFn = ClientIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			d := opts.Store.Take(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(opts.Store.Limit()))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), ratelimit.Event{
					Key:     key,
					Allowed: d.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}

			if !d.Allowed {
				retryAfter := int64(d.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				setAction(r, metrics.ActionRateLimited)
				h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				WriteJSON(w, http.StatusTooManyRequests, rateLimitDenial{
					Error:      "rate_limit_exceeded",
					RetryAfter: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
