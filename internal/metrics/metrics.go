package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Actions recorded per request outcome.
const (
	ActionAllow            = "allow"
	ActionCORSDeny         = "cors_deny"
	ActionPreflight        = "preflight"
	ActionRateLimited      = "rate_limited"
	ActionValidationFailed = "validation_failed"
	ActionPanic            = "panic"
)

// Metrics collects in-process request counters.
type Metrics struct {
	mu sync.Mutex

	totalRequests     int64
	allowedRequests   int64
	deniedRequests    int64
	uniqueIPs         map[string]struct{}
	transportRequests map[string]int64
	stageDenials      map[string]int64
	totalDurationMs   float64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests     int64            `json:"total_requests"`
	AllowedRequests   int64            `json:"allowed_requests"`
	DeniedRequests    int64            `json:"denied_requests"`
	UniqueIPs         int              `json:"unique_ips"`
	TransportRequests map[string]int64 `json:"transport_requests"`
	StageDenials      map[string]int64 `json:"stage_denials"`
	AvgDurationMs     float64          `json:"avg_duration_ms"`
}

// New creates an empty metrics collector.
func New() *Metrics {
	return &Metrics{
		uniqueIPs:         make(map[string]struct{}),
		transportRequests: make(map[string]int64),
		stageDenials:      make(map[string]int64),
	}
}

// RecordRequest records one completed request.
func (m *Metrics) RecordRequest(transport, clientIP, action string, durationMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests++
	m.totalDurationMs += durationMs
	if clientIP != "" {
		m.uniqueIPs[clientIP] = struct{}{}
	}
	if transport != "" {
		m.transportRequests[transport]++
	}

	switch action {
	case ActionAllow, ActionPreflight:
		m.allowedRequests++
	default:
		m.deniedRequests++
	}
}

// RecordStageDenial counts a short-circuit by the named pipeline stage.
func (m *Metrics) RecordStageDenial(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageDenials[stage]++
}

// GetSnapshot returns a copy of the current counters.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := Snapshot{
		TotalRequests:     m.totalRequests,
		AllowedRequests:   m.allowedRequests,
		DeniedRequests:    m.deniedRequests,
		UniqueIPs:         len(m.uniqueIPs),
		TransportRequests: make(map[string]int64, len(m.transportRequests)),
		StageDenials:      make(map[string]int64, len(m.stageDenials)),
	}
	for k, v := range m.transportRequests {
		snapshot.TransportRequests[k] = v
	}
	for k, v := range m.stageDenials {
		snapshot.StageDenials[k] = v
	}
	if m.totalRequests > 0 {
		snapshot.AvgDurationMs = m.totalDurationMs / float64(m.totalRequests)
	}
	return snapshot
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalRequests = 0
	m.allowedRequests = 0
	m.deniedRequests = 0
	m.totalDurationMs = 0
	m.uniqueIPs = make(map[string]struct{})
	m.transportRequests = make(map[string]int64)
	m.stageDenials = make(map[string]int64)
}

// Handler returns an HTTP handler that serves the snapshot as JSON.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.GetSnapshot())
	}
}
