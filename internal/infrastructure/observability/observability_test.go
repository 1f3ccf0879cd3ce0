package observability

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_ResolvesRegisteredInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.RegisterDefaults(prometrics.New("checkout", "", reg))
	tel := New(nil, nil, counters, histograms)

	tel.Metrics().Counter(observability.MWebhookEvents).Add(1,
		observability.L("type", "checkout.session.completed"),
		observability.L("outcome", "processed"),
	)
	tel.Metrics().Histogram(observability.MUsecaseDuration).Observe(0.2,
		observability.L("use_case", "order.create"),
	)

	count, err := testutil.GatherAndCount(reg, "checkout_webhook_events_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProvider_UnknownKeysAreNoop(t *testing.T) {
	tel := New(nil, nil, nil, nil)

	assert.NotPanics(t, func() {
		tel.Metrics().Counter("missing").Add(1)
		tel.Metrics().Histogram("missing").Observe(1)
		tel.Logger().Info("ignored")
	})
	assert.NotNil(t, tel.Tracer())
}
