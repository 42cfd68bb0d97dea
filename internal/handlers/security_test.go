package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopmate/shopmate/internal/config"
)

func TestOriginAllowed(t *testing.T) {
	t.Parallel()

	h := &Handlers{
		config: &config.Config{AllowedOrigins: []string{"https://app.shopmate.in"}},
		logger: discardLogger(),
	}

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "native client without origin", origin: "", want: true},
		{name: "same host", origin: "https://api.shopmate.in", want: true},
		{name: "configured origin", origin: "https://app.shopmate.in", want: true},
		{name: "cross origin", origin: "https://attacker.example", want: false},
		{name: "unparseable origin", origin: "://", want: false},
		{name: "origin without host", origin: "https://", want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "https://api.shopmate.in/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := h.originAllowed(req); got != tc.want {
				t.Fatalf("originAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	h.SecurityHeaders(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/orders", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("expected %s=%q, got %q", header, want, got)
		}
	}
}
