package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusWriter records the status code and whether the response started.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.status = http.StatusOK
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

type ctxKey int

const requestInfoKey ctxKey = iota

// requestInfo is per-request state shared between the access log middleware
// and the stages. Stage delivery is sequential within one request, so no
// locking is needed.
type requestInfo struct {
	requestID string
	action    string
}

func withRequestInfo(r *http.Request, info *requestInfo) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))
}

func infoFrom(r *http.Request) *requestInfo {
	info, _ := r.Context().Value(requestInfoKey).(*requestInfo)
	return info
}

// setAction records the pipeline outcome for the access log. A no-op when
// the request carries no info (stages under test in isolation).
func setAction(r *http.Request, action string) {
	if info := infoFrom(r); info != nil {
		info.action = action
	}
}

// RequestID returns the ID assigned by the access log middleware, or "".
func RequestID(r *http.Request) string {
	if info := infoFrom(r); info != nil {
		return info.requestID
	}
	return ""
}
