package workerpresentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

type recordingLogger struct {
	fields []observability.Field
	msgs   *[]string
}

func (l recordingLogger) With(fields ...observability.Field) observability.Logger {
	return recordingLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...), msgs: l.msgs}
}
func (l recordingLogger) Debug(msg string, _ ...observability.Field) { *l.msgs = append(*l.msgs, msg) }
func (l recordingLogger) Info(msg string, _ ...observability.Field)  { *l.msgs = append(*l.msgs, msg) }
func (l recordingLogger) Warn(msg string, _ ...observability.Field)  { *l.msgs = append(*l.msgs, msg) }
func (l recordingLogger) Error(msg string, _ ...observability.Field) { *l.msgs = append(*l.msgs, msg) }

func (l recordingLogger) value(key string) (any, bool) {
	for _, f := range l.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func TestWithEventContext_GeneratesEventID(t *testing.T) {
	var msgs []string
	base := recordingLogger{msgs: &msgs}

	ctx := WithEventContext(context.Background(), base, observability.Nop(), trace.TraceID{}, trace.SpanID{},
		map[string]string{"event": "order.created", "empty": ""})

	got, ok := logctx.From(ctx).(recordingLogger)
	require.True(t, ok)
	id, ok := got.value("event_id")
	require.True(t, ok)
	assert.NotEmpty(t, id)
	_, ok = got.value("trace_id")
	assert.False(t, ok, "invalid trace ids are skipped")
	_, ok = got.value("empty")
	assert.False(t, ok)
	ev, _ := got.value("event")
	assert.Equal(t, "order.created", ev)
}

func TestEventHandler_PassesScopedLoggerAndError(t *testing.T) {
	var msgs []string
	ctx := logctx.With(context.Background(), recordingLogger{msgs: &msgs})
	boom := errors.New("boom")

	var seen recordingLogger
	h := EventHandler(nil, "kafka_relay")(order.EventCreated, func(ctx context.Context, _ domoutbox.Event) error {
		seen, _ = logctx.From(ctx).(recordingLogger)
		return boom
	})

	err := h(ctx, order.OrderCreatedEvent{OrderID: "o-1"})
	assert.ErrorIs(t, err, boom)
	agg, ok := seen.value("aggregate_id")
	require.True(t, ok)
	assert.Equal(t, "o-1", agg)
	consumer, _ := seen.value("consumer")
	assert.Equal(t, "kafka_relay", consumer)
	assert.Contains(t, msgs, "event_handled")
}
