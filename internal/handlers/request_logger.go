package handlers

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets realtime upgrades pass through the recorder.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// RequestLogger scopes a logger and a sentry meter to the request, both
// tagged with the same request id, then records the outcome once the
// handler returns.
func (h *Handlers) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := requestIDFromRequest(r)
		w.Header().Set("X-Request-ID", requestID)

		route := routeLabel(r)
		ip := clientIP(r)

		logger := h.logger.With("request_id", requestID, "method", r.Method, "path", r.URL.Path, "remote_ip", ip)
		if route != "unknown" {
			logger = logger.With("route", route)
		}

		ctx := r.Context()
		meter := sentry.NewMeter(ctx).WithCtx(ctx)
		meter.SetAttributes(
			attribute.String("http.request_id", requestID),
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("network.client.ip", ip),
		)
		ctx = observability.WithMeter(logging.WithLogger(ctx, logger), meter)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.code()
		elapsed := time.Since(start)
		observability.ObserveHTTPRequest(route, r.Method, strconv.Itoa(status), elapsed.Seconds())

		outcome := sentry.WithAttributes(attribute.Int("http.status_code", status))
		meter.Count("http.server.requests", 1, outcome)
		meter.Distribution("http.server.duration", float64(elapsed.Milliseconds()), sentry.WithUnit(sentry.UnitMillisecond), outcome)
		if status >= http.StatusInternalServerError {
			meter.Count("http.server.errors", 1, outcome)
		}

		level := slog.LevelInfo
		if quietPath(r.URL.Path) {
			level = slog.LevelDebug
		}
		logger.Log(ctx, level, "request completed",
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"bytes", rec.bytes,
		)
	})
}

// quietPath marks scrape and static bill traffic that would drown the
// order log at info level.
func quietPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/bills/")
}

func requestIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" && len(id) <= 128 {
		return id
	}
	return uuid.NewString()
}

// clientIP trusts the first X-Forwarded-For hop, then X-Real-Ip.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// routeLabel keeps metric cardinality bounded by preferring the route name
// over the raw path.
func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unknown"
	}
	if name := route.GetName(); name != "" {
		return name
	}
	if template, err := route.GetPathTemplate(); err == nil && template != "" {
		return template
	}
	return "unknown"
}
