package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

func sampleItems() []order.Item {
	return []order.Item{
		{ProductID: "p-1", Name: "Tee", Quantity: 2, UnitPrice: 1500, Size: "M"},
		{ProductID: "p-2", Name: "Mug", Quantity: 1, UnitPrice: 900},
	}
}

func TestNewDerivesBalancedTotal(t *testing.T) {
	o, err := order.New("o-1", "u-1", sampleItems(), "House 4, Dhaka", order.Pricing{
		ShippingCost:   6000,
		Tax:            195,
		DiscountAmount: 390,
	}, "SAVE10")
	require.NoError(t, err)

	assert.Equal(t, int64(3900), o.Subtotal())
	assert.Equal(t, int64(3900+6000+195-390), o.Total)
	assert.True(t, o.Balanced())
	assert.Equal(t, order.StatusPending, o.Status)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestNewRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		items   []order.Item
		address string
		pricing order.Pricing
		wantErr error
	}{
		{name: "no items", address: "Dhaka", wantErr: order.ErrEmptyItems},
		{name: "blank address", items: sampleItems(), address: "  ", wantErr: order.ErrAddressRequired},
		{
			name:    "zero quantity",
			items:   []order.Item{{ProductID: "p-1", Quantity: 0, UnitPrice: 100}},
			address: "Dhaka",
			wantErr: order.ErrInvalidQuantity,
		},
		{
			name:    "negative total",
			items:   []order.Item{{ProductID: "p-1", Quantity: 1, UnitPrice: 100}},
			address: "Dhaka",
			pricing: order.Pricing{DiscountAmount: 500},
			wantErr: order.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := order.New("o-1", "u-1", tt.items, tt.address, tt.pricing, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestItemsAreSnapshotted(t *testing.T) {
	items := sampleItems()
	o, err := order.New("o-1", "u-1", items, "Dhaka", order.Pricing{}, "")
	require.NoError(t, err)

	items[0].UnitPrice = 1
	assert.Equal(t, int64(1500), o.Items[0].UnitPrice)

	clone := o.Clone()
	clone.Items[0].Quantity = 99
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestStateMachine(t *testing.T) {
	all := []order.Status{
		order.StatusPending, order.StatusConfirmed, order.StatusShipped,
		order.StatusDelivered, order.StatusCancelled,
	}
	allowed := map[order.Status][]order.Status{
		order.StatusPending:   {order.StatusConfirmed, order.StatusCancelled},
		order.StatusConfirmed: {order.StatusShipped, order.StatusCancelled},
		order.StatusShipped:   {order.StatusDelivered},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, order.CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.True(t, order.StatusDelivered.Terminal())
	assert.True(t, order.StatusCancelled.Terminal())
	assert.False(t, order.StatusShipped.Terminal())
}

func TestTransitionToLeavesOrderUntouchedOnInvalidMove(t *testing.T) {
	o, err := order.New("o-1", "u-1", sampleItems(), "Dhaka", order.Pricing{}, "")
	require.NoError(t, err)

	err = o.TransitionTo(order.StatusDelivered)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
	assert.Equal(t, order.StatusPending, o.Status)

	require.NoError(t, o.TransitionTo(order.StatusConfirmed))
	assert.Equal(t, order.StatusConfirmed, o.Status)
}

func TestParseStatus(t *testing.T) {
	s, ok := order.ParseStatus("shipped")
	assert.True(t, ok)
	assert.Equal(t, order.StatusShipped, s)

	_, ok = order.ParseStatus("lost")
	assert.False(t, ok)
}
