package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestMetricsRecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("http", "10.0.0.1", ActionAllow, 15.5)
	m.RecordRequest("http", "10.0.0.2", ActionRateLimited, 10.0)
	m.RecordRequest("https", "10.0.0.1", ActionAllow, 20.0)

	snapshot := m.GetSnapshot()

	if snapshot.TotalRequests != 3 {
		t.Errorf("expected 3 total requests, got %d", snapshot.TotalRequests)
	}

	if snapshot.AllowedRequests != 2 {
		t.Errorf("expected 2 allowed requests, got %d", snapshot.AllowedRequests)
	}

	if snapshot.DeniedRequests != 1 {
		t.Errorf("expected 1 denied request, got %d", snapshot.DeniedRequests)
	}

	if snapshot.UniqueIPs != 2 {
		t.Errorf("expected 2 unique IPs, got %d", snapshot.UniqueIPs)
	}

	if snapshot.TransportRequests["http"] != 2 {
		t.Errorf("expected 2 requests over http, got %d", snapshot.TransportRequests["http"])
	}

	if snapshot.TransportRequests["https"] != 1 {
		t.Errorf("expected 1 request over https, got %d", snapshot.TransportRequests["https"])
	}
}

func TestMetricsStageDenials(t *testing.T) {
	m := New()

	m.RecordStageDenial("rate_limit")
	m.RecordStageDenial("rate_limit")
	m.RecordStageDenial("cors")

	snapshot := m.GetSnapshot()

	if snapshot.StageDenials["rate_limit"] != 2 {
		t.Errorf("expected 2 rate_limit denials, got %d", snapshot.StageDenials["rate_limit"])
	}

	if snapshot.StageDenials["cors"] != 1 {
		t.Errorf("expected 1 cors denial, got %d", snapshot.StageDenials["cors"])
	}
}

func TestMetricsAvgDuration(t *testing.T) {
	m := New()

	m.RecordRequest("http", "10.0.0.1", ActionAllow, 10.0)
	m.RecordRequest("http", "10.0.0.1", ActionAllow, 30.0)

	snapshot := m.GetSnapshot()

	if snapshot.AvgDurationMs != 20.0 {
		t.Errorf("expected avg duration 20.0, got %f", snapshot.AvgDurationMs)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RecordRequest("http", "10.0.0.1", ActionAllow, 10.0)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()

	m.Handler()(rr, req)

	if rr.Code != 200 {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snapshot); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if snapshot.TotalRequests != 1 {
		t.Errorf("expected 1 total request in response, got %d", snapshot.TotalRequests)
	}
}

func TestMetricsReset(t *testing.T) {
	m := New()

	m.RecordRequest("http", "10.0.0.1", ActionAllow, 10.0)
	m.Reset()

	snapshot := m.GetSnapshot()

	if snapshot.TotalRequests != 0 {
		t.Errorf("expected 0 total requests after reset, got %d", snapshot.TotalRequests)
	}

	if snapshot.UniqueIPs != 0 {
		t.Errorf("expected 0 unique IPs after reset, got %d", snapshot.UniqueIPs)
	}
}
