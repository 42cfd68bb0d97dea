package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

type Options struct {
	Level  slog.Level
	Format string
	// FilePath, when set, receives a JSON copy of every record.
	FilePath string
}

// redactedKeys never reach a sink in clear text. Delivery codes and payout
// ids show up in payload dumps and must stay out of log files.
var redactedKeys = map[string]bool{
	"otp":           true,
	"delivery_otp":  true,
	"upi_id":        true,
	"access_token":  true,
	"authorization": true,
}

const redacted = "[redacted]"

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, redacted)
	}
	return a
}

// New builds the process logger. The returned closer releases the log file.
func New(stdout io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	jsonOpts := &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: redact}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(stdout, jsonOpts)
	} else {
		console = tint.NewHandler(stdout, &tint.Options{Level: opts.Level, ReplaceAttr: redact})
	}

	if opts.FilePath == "" {
		return slog.New(console), noFile{}, nil
	}

	file, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.New(newFanout(console, slog.NewJSONHandler(file, jsonOpts))), file, nil
}

type noFile struct{}

func (noFile) Close() error { return nil }
