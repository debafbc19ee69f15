package observability

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

type spanKey struct{}

// Span identifies one timed operation.
type Span struct {
	Component string
	Operation string
	Start     time.Time
}

// SpanFromContext returns the innermost span started on ctx, if any.
func SpanFromContext(ctx context.Context) (Span, bool) {
	span, ok := ctx.Value(spanKey{}).(Span)
	return span, ok
}

// StartSpan records the start of an operation and returns a func that
// records its end. The returned func is safe to call when disabled.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, enabled := current()
	if logger == nil || !enabled {
		return ctx, func(error) {}
	}

	span := Span{Component: component, Operation: operation, Start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, span)
	logger.LogAttrs(ctx, slog.LevelDebug, "[OBSERVABILITY] span start",
		slog.String("component", component),
		slog.String("operation", operation),
	)

	return ctx, func(err error) {
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(span.Start)),
		}
		if err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.LogAttrs(ctx, level, "[OBSERVABILITY] span end", attrs...)
	}
}

// RecordMetric emits a best-effort datapoint. Labels are emitted in key order.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger, enabled := current()
	if logger == nil || !enabled {
		return
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, labels[k]))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "[OBSERVABILITY] metric", attrs...)
}
