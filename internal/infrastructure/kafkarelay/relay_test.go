package kafkarelay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakeSubscriber map[string][]domoutbox.Handler

func (s fakeSubscriber) Subscribe(name string, h domoutbox.Handler) { s[name] = append(s[name], h) }

type namedOnly struct{}

func (namedOnly) EventName() string { return "noise" }

func TestRelay_HandleKeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	r := New(w, "orders", nil)

	evt := order.OrderStatusChangedEvent{OrderID: "o-1", UserID: "u-1", From: order.StatusPending, To: order.StatusConfirmed}
	require.NoError(t, r.Handle(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "o-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, order.EventStatusChanged, string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "confirmed", decoded["to"])
	assert.Equal(t, "pending", decoded["from"])
}

func TestRelay_RejectsUnkeyedEvents(t *testing.T) {
	w := &fakeWriter{}
	r := New(w, "orders", nil)

	assert.ErrorIs(t, r.Handle(context.Background(), namedOnly{}), ErrUnkeyedEvent)
	assert.ErrorIs(t, r.Handle(context.Background(), order.OrderCreatedEvent{}), ErrUnkeyedEvent)
	assert.Empty(t, w.msgs)
}

func TestRelay_WriteFailureSurfaces(t *testing.T) {
	boom := errors.New("broker down")
	r := New(&fakeWriter{err: boom}, "orders", nil)

	err := r.Handle(context.Background(), order.OrderCreatedEvent{OrderID: "o-1"})
	assert.ErrorIs(t, err, boom)
}

func TestRelay_RegisterWrapsEachEvent(t *testing.T) {
	w := &fakeWriter{}
	r := New(w, "orders", nil)
	sub := fakeSubscriber{}

	var wrapped []string
	wrap := func(name string, h domoutbox.Handler) domoutbox.Handler {
		wrapped = append(wrapped, name)
		return h
	}
	r.Register(sub, wrap, order.EventCreated, order.EventStatusChanged)

	assert.Equal(t, []string{order.EventCreated, order.EventStatusChanged}, wrapped)
	require.Len(t, sub[order.EventCreated], 1)
	require.NoError(t, sub[order.EventCreated][0](context.Background(), order.OrderCreatedEvent{OrderID: "o-2"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-2", string(w.msgs[0].Key))
}
