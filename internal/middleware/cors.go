package middleware

import (
	"net/http"
	"strings"

	"backpropd/internal/metrics"
)

// CORSConfig is the origin allow-list and the preflight response values.
type CORSConfig struct {
	// AllowedOrigins is matched case-insensitively against the Origin
	// header. Empty means any origin is allowed; the entry "*" does the
	// same explicitly.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// corsDenial is the structured body for an origin denial.
type corsDenial struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Origin  string `json:"origin"`
}

// CORS inspects the Origin header. Requests without one pass through
// untouched. A disallowed origin terminates the chain with 403; headers
// attached by earlier stages remain on the denial response. Preflight
// requests from allowed origins are answered immediately with 200,
// bypassing all later stages.
func CORS(cfg CORSConfig) Middleware {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	allowAny := len(cfg.AllowedOrigins) == 0
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			allowAny = true
			continue
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, OPTIONS"
	}
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	if headers == "" {
		headers = "Content-Type"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !allowAny {
				if _, ok := allowed[strings.ToLower(origin)]; !ok {
					setAction(r, metrics.ActionCORSDeny)
					WriteJSON(w, http.StatusForbidden, corsDenial{
						Error:   "cors_denied",
						Message: "origin not allowed",
						Origin:  origin,
					})
					return
				}
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				// Preflight: answer immediately, later stages never run.
				setAction(r, metrics.ActionPreflight)
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
