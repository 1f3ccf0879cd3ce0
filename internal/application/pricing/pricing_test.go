package pricing

import (
	"testing"
	"time"

	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestShipping_Tiers(t *testing.T) {
	e := newEngine(t)

	cases := []struct {
		address string
		want    int64
	}{
		{"House 12, Road 5, Dhanmondi, Dhaka 1209", 6000},
		{"DHAKA", 6000},
		{"Agrabad, Chattogram", 10000},
		{"Sylhet Sadar", 12000},
		{"", 12000},
		{"Springfield", 12000},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, e.Shipping(tc.address), tc.address)
	}
}

func TestTax_IsFlatRateOfSubtotal(t *testing.T) {
	e := newEngine(t)

	for _, subtotal := range []int64{0, 100, 2000, 12345, 999999} {
		want := (subtotal*5 + 50) / 100
		assert.Equal(t, want, e.Tax(subtotal), "subtotal %d", subtotal)
	}
	assert.Equal(t, int64(1), e.Tax(10), "half rounds up")
	assert.Equal(t, int64(0), e.Tax(-10))
}

func TestApplyDiscount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lines := []Line{
		{ProductID: "p-shirt", Category: "apparel", UnitPrice: 2500, Quantity: 2},
		{ProductID: "p-mug", Category: "kitchen", UnitPrice: 1000, Quantity: 1},
	}
	const subtotal = 6000

	base := func() *domdiscount.Discount {
		return &domdiscount.Discount{Code: "SAVE10", Type: domdiscount.TypePercentage, Value: 10, Active: true}
	}

	fixedOnMug := func(d *domdiscount.Discount) {
		d.Type, d.Value, d.ProductIDs = domdiscount.TypeFixedAmount, 5000, []string{"p-mug"}
	}

	tests := []struct {
		name    string
		mutate  func(d *domdiscount.Discount)
		nilCode bool
		want    int64
		wantErr error
	}{
		{name: "percentage of full subtotal", want: 600},
		{name: "unknown code", nilCode: true, wantErr: domdiscount.ErrCodeNotFound},
		{name: "inactive", mutate: func(d *domdiscount.Discount) { d.Active = false }, wantErr: domdiscount.ErrCodeExpired},
		{name: "not yet valid", mutate: func(d *domdiscount.Discount) { d.ValidFrom = now.Add(time.Hour) }, wantErr: domdiscount.ErrCodeExpired},
		{name: "expired", mutate: func(d *domdiscount.Discount) { d.ValidTo = now.Add(-time.Hour) }, wantErr: domdiscount.ErrCodeExpired},
		{
			name:    "usage exhausted",
			mutate:  func(d *domdiscount.Discount) { d.UsageLimit, d.TimesUsed = 3, 3 },
			wantErr: domdiscount.ErrUsageLimitReached,
		},
		{name: "minimum not met", mutate: func(d *domdiscount.Discount) { d.MinPurchase = 6001 }, wantErr: domdiscount.ErrMinimumNotMet},
		{name: "minimum met exactly", mutate: func(d *domdiscount.Discount) { d.MinPurchase = 6000 }, want: 600},
		{
			name:    "filters match nothing",
			mutate:  func(d *domdiscount.Discount) { d.Categories = []string{"garden"} },
			wantErr: domdiscount.ErrNotApplicable,
		},
		{
			name:   "category filter limits eligible subtotal",
			mutate: func(d *domdiscount.Discount) { d.Categories = []string{"Apparel"} },
			want:   500,
		},
		{
			name:   "product filter limits eligible subtotal",
			mutate: func(d *domdiscount.Discount) { d.ProductIDs = []string{"p-mug"}; d.Value = 50 },
			want:   500,
		},
		{
			name:   "fixed amount",
			mutate: func(d *domdiscount.Discount) { d.Type, d.Value = domdiscount.TypeFixedAmount, 1500 },
			want:   1500,
		},
		{
			name:   "fixed amount capped at eligible subtotal",
			mutate: fixedOnMug,
			want:   1000,
		},
		{name: "hundred percent", mutate: func(d *domdiscount.Discount) { d.Value = 100 }, want: subtotal},
	}

	e := newEngine(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d *domdiscount.Discount
			if !tc.nilCode {
				d = base()
				if tc.mutate != nil {
					tc.mutate(d)
				}
			}
			got, err := e.ApplyDiscount(subtotal, lines, d, now)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuote_TotalBalances(t *testing.T) {
	e := newEngine(t)
	now := time.Now()
	lines := []Line{
		{ProductID: "a", UnitPrice: 1999, Quantity: 3},
		{ProductID: "b", UnitPrice: 349, Quantity: 1},
	}
	d := &domdiscount.Discount{Code: "TAKE7", Type: domdiscount.TypePercentage, Value: 7, Active: true}

	b, err := e.Quote(lines, "Gulshan, Dhaka", d, now)
	require.NoError(t, err)

	assert.Equal(t, int64(6346), b.Subtotal)
	assert.Equal(t, int64(6000), b.Shipping)
	assert.Equal(t, int64(317), b.Tax)
	assert.Equal(t, int64(444), b.Discount)
	assert.Equal(t, b.Subtotal+b.Shipping+b.Tax-b.Discount, b.Total)
	assert.GreaterOrEqual(t, b.Total, int64(0))
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tiers = append(cfg.Tiers, Tier{Locality: " ", Cost: 10})
	_, err := NewEngine(cfg)
	require.Error(t, err)
}
