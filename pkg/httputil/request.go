package httputil

import (
	"net"
	"net/http"
	"strings"

	"github.com/newsdeck/gatehouse/pkg/contextkeys"
)

// ClientIP resolves the caller's IP address. The value resolved by the
// request-id middleware wins when present; otherwise proxy headers are
// consulted before falling back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if ip := contextkeys.GetClientIP(r.Context()); ip != "" {
		return ip
	}

	// First entry of X-Forwarded-For is the original client when behind a proxy
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
