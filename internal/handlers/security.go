package handlers

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/shopmate/shopmate/internal/observability"
)

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders sets baseline security headers for all responses.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, kv := range securityHeaders {
			w.Header().Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed is the socket upgrader's origin check. Native apps send no
// Origin and are let through; their token still has to verify. Browsers
// must come from the API host itself or a configured origin.
func (h *Handlers) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	ctx := r.Context()
	observability.Count(ctx, "security.origin.checked")

	host, err := originHost(origin)
	if err == nil && h.trustedHost(host, r.Host) {
		return true
	}
	observability.Count(ctx, "security.origin.blocked", "reason", "invalid_origin")
	h.loggerFromContext(ctx).Warn("blocked realtime socket with invalid origin", "origin", origin, "error", err)
	return false
}

func (h *Handlers) trustedHost(host, requestHost string) bool {
	if host == hostOnly(requestHost) {
		return true
	}
	if h.config == nil {
		return false
	}
	return slices.ContainsFunc(h.config.AllowedOrigins, func(allowed string) bool {
		allowedHost, err := originHost(allowed)
		return err == nil && allowedHost == host
	})
}

func originHost(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", errors.New("origin has no host")
	}
	return host, nil
}

func hostOnly(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		hostport = host
	}
	return strings.ToLower(hostport)
}
