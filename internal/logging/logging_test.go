package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFromContextFallsBack(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&buf, nil))

	FromContext(context.Background(), fallback).Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("expected fallback logger output, got %q", buf.String())
	}

	if FromContext(context.Background(), nil) == nil {
		t.Fatal("expected a no-op logger when nothing is configured")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := With(context.Background(), base, "order_id", "o-1")
	ctx = With(ctx, nil, "role", "shopper")
	FromContext(ctx, nil).Info("transition")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if record["order_id"] != "o-1" || record["role"] != "shopper" {
		t.Fatalf("missing context attributes: %v", record)
	}
}

func TestNewWritesJSONFileCopy(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shopmate.log")
	var stdout bytes.Buffer

	logger, closer, err := New(&stdout, Options{Level: slog.LevelInfo, Format: "text", FilePath: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("order placed", "order_number", "ORD1")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "order placed") {
		t.Fatalf("expected console output, got %q", stdout.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"order_number":"ORD1"`) {
		t.Fatalf("expected JSON file output, got %q", string(data))
	}
}

func TestNewRedactsSecrets(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	logger, _, err := New(&stdout, Options{Level: slog.LevelDebug, Format: "json"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("out for delivery", "order_id", "o-1", "otp", "4821", "UPI_ID", "shopper@bank")

	var record map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if record["otp"] != redacted || record["UPI_ID"] != redacted {
		t.Fatalf("secrets not redacted: %v", record)
	}
	if record["order_id"] != "o-1" {
		t.Fatalf("order_id = %v, want o-1", record["order_id"])
	}
}

func TestFanoutRespectsSinkLevels(t *testing.T) {
	t.Parallel()

	var debug, warn bytes.Buffer
	logger := slog.New(newFanout(
		slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		nil,
		slog.NewJSONHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)).With("shop_id", "s-1")

	logger.Debug("cache miss")
	logger.Warn("breaker open")

	if got := strings.Count(debug.String(), "\n"); got != 2 {
		t.Fatalf("debug sink got %d lines, want 2: %q", got, debug.String())
	}
	if strings.Contains(warn.String(), "cache miss") || !strings.Contains(warn.String(), `"shop_id":"s-1"`) {
		t.Fatalf("warn sink output = %q", warn.String())
	}
}

func TestNewFanoutCollapsesTrivialCases(t *testing.T) {
	t.Parallel()

	if h := newFanout(nil, nil); h != slog.DiscardHandler {
		t.Fatalf("newFanout(nil, nil) = %T, want discard handler", h)
	}
	only := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if h := newFanout(only); h != only {
		t.Fatalf("newFanout(single) = %T, want the single handler", h)
	}
}
