package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_WritesFieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := Wrap(zap.New(core)).With(observability.F("service", "checkout"))

	log.Warn("webhook_anomaly",
		observability.F("order_id", "o-1"),
		observability.F("error", errors.New("boom")),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "webhook_anomaly", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "checkout", fields["service"])
	assert.Equal(t, "o-1", fields["order_id"])
	assert.Equal(t, "boom", fields["error"])
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Service: "checkout", Level: "loud"})
	require.Error(t, err)
}
