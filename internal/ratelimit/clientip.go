package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// fallbackClientIP is used when no well-formed address can be derived.
const fallbackClientIP = "0.0.0.0"

// ClientID derives the rate-limit identity for a request. When trustProxy
// is set the first hop of X-Forwarded-For wins; otherwise the direct
// connection address is used. Anything that does not parse as an IP
// collapses to 0.0.0.0.
func ClientID(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first := strings.TrimSpace(strings.Split(fwd, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
			return fallbackClientIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return fallbackClientIP
}
