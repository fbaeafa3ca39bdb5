package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	"backpropd/internal/metrics"
)

// FieldRule constrains one top-level string field of a JSON request body.
// Absent fields are not an error; constraints apply only when present.
type FieldRule struct {
	Name      string
	MinLength int
	MaxLength int
	Allowed   []string
}

// ValidationOptions configures the input validation stage.
type ValidationOptions struct {
	// MaxBodyBytes bounds the request body. Defaults to 1 MiB.
	MaxBodyBytes int64
	Fields       []FieldRule
}

// FieldError is one validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationDenial struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

// ValidateInput sanitizes and checks JSON request bodies. Every top-level
// string field is trimmed and HTML-escaped in place before the declared
// per-field constraints run; constraint failures accumulate and terminate
// the chain with 400. Requests without a JSON body pass through untouched.
// Surviving requests see the sanitized body.
func ValidateInput(opts ValidationOptions) Middleware {
	maxBytes := opts.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 || !isJSONRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
			r.Body.Close()
			if err != nil {
				deny(w, r, []FieldError{{Field: "body", Message: "failed to read request body"}})
				return
			}
			if int64(len(body)) > maxBytes {
				deny(w, r, []FieldError{{Field: "body", Message: "request body too large"}})
				return
			}
			if len(bytes.TrimSpace(body)) == 0 {
				r.Body = io.NopCloser(bytes.NewReader(nil))
				next.ServeHTTP(w, r)
				return
			}

			var fields map[string]interface{}
			if err := json.Unmarshal(body, &fields); err != nil {
				deny(w, r, []FieldError{{Field: "body", Message: "request body is not a JSON object"}})
				return
			}

			// Sanitize in place before constraints run, so length bounds
			// apply to what downstream code will actually see.
			for k, v := range fields {
				if s, ok := v.(string); ok {
					fields[k] = html.EscapeString(strings.TrimSpace(s))
				}
			}

			var errs []FieldError
			for _, rule := range opts.Fields {
				v, ok := fields[rule.Name]
				if !ok {
					continue
				}
				s, ok := v.(string)
				if !ok {
					errs = append(errs, FieldError{Field: rule.Name, Message: "must be a string"})
					continue
				}
				errs = append(errs, checkField(rule, s)...)
			}

			if len(errs) > 0 {
				deny(w, r, errs)
				return
			}

			sanitized, err := json.Marshal(fields)
			if err != nil {
				deny(w, r, []FieldError{{Field: "body", Message: "failed to re-encode request body"}})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(sanitized))
			r.ContentLength = int64(len(sanitized))

			next.ServeHTTP(w, r)
		})
	}
}

func isJSONRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct)) == "application/json"
}

func checkField(rule FieldRule, s string) []FieldError {
	var errs []FieldError

	if rule.MinLength > 0 && len(s) < rule.MinLength {
		errs = append(errs, FieldError{
			Field:   rule.Name,
			Message: "shorter than minimum length " + strconv.Itoa(rule.MinLength),
		})
	}
	if rule.MaxLength > 0 && len(s) > rule.MaxLength {
		errs = append(errs, FieldError{
			Field:   rule.Name,
			Message: "exceeds maximum length " + strconv.Itoa(rule.MaxLength),
		})
	}
	if len(rule.Allowed) > 0 {
		ok := false
		for _, a := range rule.Allowed {
			if s == a {
				ok = true
				break
			}
		}
		if !ok {
			errs = append(errs, FieldError{
				Field:   rule.Name,
				Message: "not one of the allowed values",
			})
		}
	}

	return errs
}

func deny(w http.ResponseWriter, r *http.Request, errs []FieldError) {
	setAction(r, metrics.ActionValidationFailed)
	WriteJSON(w, http.StatusBadRequest, validationDenial{
		Error:   "validation_failed",
		Details: errs,
	})
}
