package db

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"

	"github.com/shopmate/shopmate/internal/logging"
)

type queryTraceKey struct{}

type queryTrace struct {
	span      *sentry.Span
	query     string
	startedAt time.Time
}

// queryTracer opens a sentry span per query and logs queries slower than slowQuery.
type queryTracer struct {
	logger    *slog.Logger
	slowQuery time.Duration
}

func newQueryTracer(logger *slog.Logger, slowQuery time.Duration) *queryTracer {
	return &queryTracer{logger: logger, slowQuery: slowQuery}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	trace := &queryTrace{
		query:     normalizeQuery(data.SQL),
		startedAt: time.Now(),
	}

	if sentry.SpanFromContext(ctx) != nil {
		span := sentry.StartSpan(
			ctx,
			"db.query",
			sentry.WithDescription(trace.query),
			sentry.WithSpanOrigin(sentry.SpanOriginManual),
		)
		span.SetData("db.system", "postgresql")
		if operation := queryOperation(trace.query); operation != "" {
			span.SetData("db.operation", operation)
		}
		if table := queryTable(trace.query); table != "" {
			span.SetData("db.sql.table", table)
		}
		trace.span = span
		ctx = span.Context()
	}

	return context.WithValue(ctx, queryTraceKey{}, trace)
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	trace, _ := ctx.Value(queryTraceKey{}).(*queryTrace)
	if trace == nil {
		return
	}

	elapsed := time.Since(trace.startedAt)
	if t.slowQuery > 0 && elapsed >= t.slowQuery {
		logging.FromContext(ctx, t.logger).Warn("slow query",
			"query", trace.query,
			"duration_ms", elapsed.Milliseconds(),
			"rows_affected", data.CommandTag.RowsAffected(),
		)
	}

	if trace.span == nil {
		return
	}
	if data.Err != nil {
		trace.span.Status = sentry.SpanStatusInternalError
		trace.span.SetData("db.error", data.Err.Error())
	} else {
		trace.span.Status = sentry.SpanStatusOK
	}
	if rows := data.CommandTag.RowsAffected(); rows >= 0 {
		trace.span.SetData("db.rows_affected", rows)
	}
	trace.span.Finish()
}

func normalizeQuery(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if normalized == "" {
		return "sql.query"
	}

	const maxLen = 512
	if len(normalized) > maxLen {
		return normalized[:maxLen]
	}
	return normalized
}

func queryOperation(query string) string {
	parts := strings.Fields(query)
	if len(parts) == 0 {
		return ""
	}
	return strings.ToUpper(parts[0])
}

// queryTable returns the first table named after FROM, INTO or UPDATE.
func queryTable(query string) string {
	parts := strings.Fields(query)
	for i := 0; i < len(parts)-1; i++ {
		switch strings.ToUpper(parts[i]) {
		case "FROM", "INTO", "UPDATE":
			return strings.Trim(parts[i+1], `"(),;`)
		}
	}
	return ""
}
