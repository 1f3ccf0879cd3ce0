package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
)

func newOrder(t *testing.T, id, userID string) *order.Order {
	t.Helper()
	o, err := order.New(id, userID, []order.Item{{ProductID: "p-1", Name: "Tee", Quantity: 1, UnitPrice: 1500}},
		"Dhaka", order.Pricing{ShippingCost: 6000}, "")
	require.NoError(t, err)
	return o
}

func TestOrderRepositoryInsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()

	o := newOrder(t, "o-1", "u-1")
	require.NoError(t, repo.Insert(ctx, o))
	assert.ErrorIs(t, repo.Insert(ctx, o), order.ErrConflict)

	got, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, o.Total, got.Total)

	got.Items[0].Quantity = 42
	again, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepositoryPaymentSession(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o-1", "u-1")))

	require.NoError(t, repo.AttachPaymentSession(ctx, "o-1", "cs_1"))
	require.NoError(t, repo.AttachPaymentSession(ctx, "o-1", "cs_1"))
	assert.ErrorIs(t, repo.AttachPaymentSession(ctx, "o-1", "cs_2"), order.ErrConflict)

	got, err := repo.FindByPaymentSession(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.ID)

	_, err = repo.FindByPaymentSession(ctx, "cs_unknown")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepositoryListByUser(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o-1", "u-1")))
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o-2", "u-1")))
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o-3", "u-2")))

	list, err := repo.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrderRepositoryUpdateStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	require.NoError(t, repo.Insert(ctx, newOrder(t, "o-1", "u-1")))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.UpdateStatus(ctx, "o-1", order.StatusPending, order.StatusCancelled); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	_, err := repo.UpdateStatus(ctx, "missing", order.StatusPending, order.StatusCancelled)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestProductRepositoryReserveLastUnit(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository(product.Product{ID: "p-1", Price: 1500, Stock: 1})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Reserve(ctx, "p-1", 1); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, product.ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	p, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	require.NoError(t, repo.Release(ctx, "p-1", 1))
	p, err = repo.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)

	assert.ErrorIs(t, repo.Reserve(ctx, "missing", 1), product.ErrNotFound)
}

func TestCartRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCartRepository()

	c, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, c.Empty())

	require.NoError(t, c.Add("p-1", 2, 1500, ""))
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)

	require.NoError(t, repo.Delete(ctx, "u-1"))
	got, err = repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, got.Empty())

	assert.ErrorIs(t, repo.Save(ctx, &cart.Cart{}), cart.ErrUserRequired)
}

func TestDiscountRepositoryUsage(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDiscountRepository()

	d := &discount.Discount{Code: " once ", Type: discount.TypeFixedAmount, Value: 500, Active: true, UsageLimit: 1}
	require.NoError(t, repo.Create(ctx, d))
	assert.ErrorIs(t, repo.Create(ctx, &discount.Discount{Code: "ONCE"}), discount.ErrConflict)

	got, err := repo.FindByCode(ctx, "once")
	require.NoError(t, err)
	assert.Equal(t, "ONCE", got.Code)

	require.NoError(t, repo.IncrementUsage(ctx, "ONCE"))
	assert.ErrorIs(t, repo.IncrementUsage(ctx, "ONCE"), discount.ErrUsageLimitReached)

	require.NoError(t, repo.DecrementUsage(ctx, "ONCE"))
	require.NoError(t, repo.DecrementUsage(ctx, "ONCE"))
	got, err = repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, got.TimesUsed)

	_, err = repo.FindByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, discount.ErrCodeNotFound)
}
