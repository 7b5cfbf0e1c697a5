package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClientKey is the shared bucket for callers with no usable address
// indicator. All unidentifiable traffic competes for the same window.
const UnknownClientKey = "unknown"

// ClientKey derives the client identity from forwarding headers, in priority
// order: first X-Forwarded-For hop, X-Real-IP, then the CDN client-IP header.
// Behind a serverless or CDN front there is no meaningful RemoteAddr, so a
// request with none of these lands in the shared unknown bucket.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// first hop is the original client
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	return UnknownClientKey
}
