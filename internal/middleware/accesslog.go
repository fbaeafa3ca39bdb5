package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"backpropd/internal/geo"
	"backpropd/internal/logging"
	"backpropd/internal/metrics"
)

// stage charged for each denial action.
var actionStages = map[string]string{
	metrics.ActionCORSDeny:         StageCORS,
	metrics.ActionRateLimited:      StageRateLimit,
	metrics.ActionValidationFailed: StageValidation,
	metrics.ActionPanic:            "recover",
}

// AccessLog assigns each request an ID, serves it, then writes one access
// log line and records metrics. It is the outermost wrapper so that every
// outcome, including the recover fallback's 500, is accounted for.
func AccessLog(log *logging.Logger, m *metrics.Metrics, resolver *geo.Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{requestID: uuid.NewString()}
			r = withRequestInfo(r, info)
			w.Header().Set("X-Request-ID", info.requestID)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			duration := float64(time.Since(start).Microseconds()) / 1000.0
			clientIP := ClientIP(r)
			transport := "http"
			if r.TLS != nil {
				transport = "https"
			}
			action := info.action
			if action == "" {
				action = metrics.ActionAllow
			}

			if log != nil {
				log.LogRequest(logging.RequestLog{
					Timestamp:  start.UTC(),
					RequestID:  info.requestID,
					Transport:  transport,
					ClientIP:   clientIP,
					Country:    resolver.Country(clientIP),
					Method:     r.Method,
					Path:       r.URL.Path,
					UserAgent:  r.UserAgent(),
					Origin:     r.Header.Get("Origin"),
					Action:     action,
					StatusCode: sw.status,
					Duration:   duration,
				})
			}

			if m != nil {
				m.RecordRequest(transport, clientIP, action, duration)
				if stage, ok := actionStages[action]; ok {
					m.RecordStageDenial(stage)
				}
			}
		})
	}
}
