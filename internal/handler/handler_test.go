package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backpropd/internal/metrics"
)

func testHandler() *Handler {
	return New(Config{
		Version: "test",
		Security: SecurityInfo{
			Headers:    true,
			CORS:       true,
			RateLimit:  true,
			Validation: true,
		},
	})
}

func TestRootRoute(t *testing.T) {
	h := testHandler()

	// The route contract is path-only; every method gets the greeting.
	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"} {
		req := httptest.NewRequest(method, "/", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("%s /: expected status 200, got %d", method, rr.Code)
		}
		if got := rr.Header().Get("Content-Type"); got != "text/plain" {
			t.Errorf("%s /: expected text/plain, got %q", method, got)
		}
		if method != "HEAD" && rr.Body.String() != "Hello, World!\n" {
			t.Errorf("%s /: unexpected body %q", method, rr.Body.String())
		}
	}
}

func TestNotFound(t *testing.T) {
	h := testHandler()

	for _, path := range []string{"/missing", "/api/users", "/health/extra"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, rr.Code)
		}

		var body notFoundResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: failed to parse body: %v", path, err)
		}
		if body.Error != "not_found" {
			t.Errorf("%s: expected error not_found, got %q", path, body.Error)
		}
		if body.Path != path {
			t.Errorf("expected echoed path %q, got %q", path, body.Path)
		}
	}
}

func TestHealth(t *testing.T) {
	h := testHandler()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body.Status != "OK" {
		t.Errorf("expected status OK, got %q", body.Status)
	}
	if body.Version != "test" {
		t.Errorf("expected version test, got %q", body.Version)
	}
	if body.Timestamp != fixed.Format(time.RFC3339) {
		t.Errorf("unexpected timestamp %q", body.Timestamp)
	}
	if !body.Security.Headers || !body.Security.CORS || !body.Security.RateLimit || !body.Security.Validation {
		t.Errorf("expected all stages reported active, got %+v", body.Security)
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.RecordRequest("http", "10.0.0.1", metrics.ActionAllow, 1.5)

	h := New(Config{Version: "test", Metrics: m})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var snap metrics.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to parse metrics body: %v", err)
	}
	if snap.TotalRequests != 1 {
		t.Errorf("expected 1 total request, got %d", snap.TotalRequests)
	}
}

func TestMetricsRouteDisabled(t *testing.T) {
	h := testHandler() // no metrics wired

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 without metrics, got %d", rr.Code)
	}
}
