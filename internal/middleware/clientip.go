package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client address used as the rate-limiting key.
// X-Forwarded-For's first entry wins, then X-Real-IP, then RemoteAddr.
// In deployments without a trusted proxy the forwarded headers are
// spoofable; protecting them is the load balancer's job.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
