package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"backpropd/internal/metrics"
)

// helloBody is the fixed body for the root route.
const helloBody = "Hello, World!\n"

// SecurityInfo reports which pipeline stages are active, surfaced by the
// health endpoint.
type SecurityInfo struct {
	Headers    bool `json:"headers"`
	CORS       bool `json:"cors"`
	RateLimit  bool `json:"rateLimit"`
	Validation bool `json:"validation"`
}

// healthResponse is the health endpoint document.
type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Version   string       `json:"version"`
	Security  SecurityInfo `json:"security"`
}

// notFoundResponse names the unmatched path.
type notFoundResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Config configures the route set.
type Config struct {
	Version  string
	Security SecurityInfo
	Metrics  *metrics.Metrics
}

// Handler dispatches the requests that survive the pipeline. It is
// deterministic and keeps no per-request state.
type Handler struct {
	version  string
	security SecurityInfo
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates the route dispatcher.
func New(cfg Config) *Handler {
	return &Handler{
		version:  cfg.Version,
		security: cfg.Security,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		// Any method is served; the route contract is path-only.
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(helloBody))
	case "/health":
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "OK",
			Timestamp: h.now().UTC().Format(time.RFC3339),
			Version:   h.version,
			Security:  h.security,
		})
	case "/metrics":
		if h.metrics != nil {
			h.metrics.Handler()(w, r)
			return
		}
		h.notFound(w, r)
	default:
		h.notFound(w, r)
	}
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{
		Error:   "not_found",
		Message: "route not found",
		Path:    r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
