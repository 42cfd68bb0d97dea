package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterKey struct{}

// WithMeter stores meter on ctx. A nil meter is replaced by a fresh one so
// later lookups never allocate per call.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return context.WithValue(ctx, meterKey{}, meter.WithCtx(ctx))
}

// MeterFromContext returns the request meter, or a detached one for work
// that did not start in a request.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	meter, ok := ctx.Value(meterKey{}).(sentry.Meter)
	if !ok || meter == nil {
		meter = sentry.NewMeter(ctx)
	}
	return meter.WithCtx(ctx)
}

// Count adds one to name on the context meter. kv alternates attribute
// names and values; a trailing name without a value is dropped.
func Count(ctx context.Context, name string, kv ...string) {
	meter := MeterFromContext(ctx)
	if len(kv) < 2 {
		meter.Count(name, 1)
		return
	}
	meter.Count(name, 1, sentry.WithAttributes(stringAttrs(kv)...))
}

// Tag attaches kv to every later measurement on the context meter.
func Tag(ctx context.Context, kv ...string) {
	if attrs := stringAttrs(kv); len(attrs) > 0 {
		MeterFromContext(ctx).SetAttributes(attrs...)
	}
}

func stringAttrs(kv []string) []attribute.Builder {
	attrs := make([]attribute.Builder, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	return attrs
}
