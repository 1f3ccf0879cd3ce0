package outbox_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type pinged struct{ id string }

func (pinged) EventName() string { return "test.pinged" }

func TestBusFansOutToAllSubscribers(t *testing.T) {
	ctx := context.Background()
	bus := outbox.NewBus(observability.NopLogger(), outbox.Options{})

	var mu sync.Mutex
	var got []string
	record := func(tag string) domoutbox.Handler {
		return func(_ context.Context, e domoutbox.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, tag+":"+e.(pinged).id)
			return nil
		}
	}
	bus.Subscribe("test.pinged", record("a"))
	bus.Subscribe("test.pinged", record("b"))

	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, pinged{id: "1"}))
	bus.Stop(ctx)

	assert.ElementsMatch(t, []string{"a:1", "b:1"}, got)
}

func TestBusSurvivesHandlerFailures(t *testing.T) {
	ctx := context.Background()
	bus := outbox.NewBus(nil, outbox.Options{Concurrency: 1})

	var calls atomic.Int32
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		calls.Add(1)
		panic("boom")
	})
	bus.Subscribe("test.pinged", func(context.Context, domoutbox.Event) error {
		calls.Add(1)
		return errors.New("nope")
	})

	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, pinged{id: "1"}))
	require.NoError(t, bus.Publish(ctx, pinged{id: "2"}))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	assert.Equal(t, int32(4), calls.Load())
}

func TestPublishAfterStop(t *testing.T) {
	ctx := context.Background()
	bus := outbox.NewBus(nil, outbox.Options{})
	bus.Start(ctx)
	bus.Stop(ctx)

	assert.ErrorIs(t, bus.Publish(ctx, pinged{id: "late"}), outbox.ErrClosed)
}
