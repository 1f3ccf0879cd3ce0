package workerpresentation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

// WithEventContext injects a logger for background executions.
// attrs should stay low-cardinality: event name, topic, consumer.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = tel.Logger()
	}
	if attrs == nil {
		attrs = make(map[string]string)
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// EventHandler wraps a bus handler with a span and an event-scoped logger.
// consumer names the subscriber, e.g. "kafka_relay".
func EventHandler(tel observability.Observability, consumer string) func(string, domoutbox.Handler) domoutbox.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return func(name string, next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) (err error) {
			ctx, span := tel.Tracer().Start(ctx, "Event."+name,
				attribute.String("event.name", name),
				attribute.String("event.consumer", consumer),
			)
			defer span.End()

			attrs := map[string]string{"event": name, "consumer": consumer}
			if keyed, ok := e.(domoutbox.Keyed); ok {
				attrs["aggregate_id"] = keyed.AggregateID()
			}
			sc := span.SpanContext()
			ctx = WithEventContext(ctx, logctx.From(ctx), tel, sc.TraceID(), sc.SpanID(), attrs)

			start := time.Now()
			err = next(ctx, e)
			logger := logctx.FromOr(ctx, tel.Logger())
			latency := observability.F("latency_seconds", time.Since(start).Seconds())
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				logger.Warn("event_handled", observability.F("outcome", "error"), latency, observability.F("error", err))
				return err
			}
			span.SetStatus(codes.Ok, "")
			logger.Debug("event_handled", observability.F("outcome", "success"), latency)
			return nil
		}
	}
}
