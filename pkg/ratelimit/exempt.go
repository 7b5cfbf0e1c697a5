package ratelimit

import (
	"net/http"
	"net/url"
	"strings"
)

// ExemptFunc classifies a caller as exempt from rate limiting.
type ExemptFunc func(r *http.Request) bool

// InternalMarkerHeader is the trusted internal marker checked by the default
// heuristic. Any non-empty value exempts the request.
const InternalMarkerHeader = "X-Internal-Request"

// externalToolSignatures identify well-known scripted clients. A request with
// no origin indicator and one of these agents is NOT exempt.
var externalToolSignatures = []string{
	"curl",
	"wget",
	"python-requests",
	"httpie",
	"postman",
	"go-http-client",
	"okhttp",
	"java/",
	"libwww",
}

// DefaultExempt returns the default exemption heuristic. A caller is exempt
// when it presents the internal marker header, its Origin or Referer host is
// in the allow-list, or its User-Agent matches an internal tooling signature.
// A request with no origin indicator at all and no known scripted-client
// agent is also exempt, so same-origin page loads are not penalized.
//
// All of these signals are spoofable headers. The classification is advisory
// fair-use control, not a security boundary.
func DefaultExempt(allowedHosts []string, internalAgents []string) ExemptFunc {
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts[h] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		if r.Header.Get(InternalMarkerHeader) != "" {
			return true
		}

		ua := strings.ToLower(r.Header.Get("User-Agent"))
		for _, sig := range internalAgents {
			if sig != "" && strings.Contains(ua, strings.ToLower(sig)) {
				return true
			}
		}

		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = r.Header.Get("Referer")
		}
		if origin != "" {
			if u, err := url.Parse(origin); err == nil {
				if _, ok := hosts[strings.ToLower(u.Hostname())]; ok {
					return true
				}
			}
			return false
		}

		// No origin indicator: exempt unless the agent looks like a known
		// external tool.
		for _, sig := range externalToolSignatures {
			if strings.Contains(ua, sig) {
				return false
			}
		}
		return true
	}
}
