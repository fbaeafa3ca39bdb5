package middleware

import "net/http"

// Fixed response headers attached to every response on both transports.
var securityHeaders = [...][2]string{
	{"Content-Security-Policy", "default-src 'self'"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"Referrer-Policy", "no-referrer"},
}

const hstsValue = "max-age=15552000; includeSubDomains"

// SecurityHeaders unconditionally attaches the fixed security header set.
// Strict-Transport-Security is added only on the encrypted transport; the
// transport check is per-request so one pipeline instance serves both
// listeners. This stage never terminates the chain.
func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}
