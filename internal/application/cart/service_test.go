package cart_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	domproduct "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

func newService() (*appcart.Service, *memory.ProductRepository) {
	products := memory.NewProductRepository(
		domproduct.Product{ID: "p-tee", Name: "Tee", Price: 1500, Stock: 5},
		domproduct.Product{ID: "p-mug", Name: "Mug", Price: 900, Stock: 1},
	)
	return appcart.NewService(memory.NewCartRepository(), products, observability.Nop()), products
}

func TestAddSnapshotsCurrentPrice(t *testing.T) {
	ctx := context.Background()
	svc, products := newService()

	c, err := svc.Add(ctx, appcart.AddItemInput{UserID: "u-1", ProductID: "p-tee", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(1500), c.Items[0].UnitPrice)

	products.Put(domproduct.Product{ID: "p-tee", Name: "Tee", Price: 1700, Stock: 5})
	c, err = svc.Add(ctx, appcart.AddItemInput{UserID: "u-1", ProductID: "p-tee", Quantity: 2, Size: "M"})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, int64(1700), c.Items[0].UnitPrice)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Add(ctx, appcart.AddItemInput{UserID: "u-1", ProductID: "p-tee", Quantity: 0})
	assert.ErrorIs(t, err, application.ErrValidation)

	_, err = svc.Add(ctx, appcart.AddItemInput{ProductID: "p-tee", Quantity: 1})
	assert.ErrorIs(t, err, application.ErrValidation)

	_, err = svc.Add(ctx, appcart.AddItemInput{UserID: "u-1", ProductID: "p-none", Quantity: 1})
	assert.ErrorIs(t, err, domproduct.ErrNotFound)
}

func TestUpdateRemoveClear(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Add(ctx, appcart.AddItemInput{UserID: "u-1", ProductID: "p-tee", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, appcart.AddItemInput{UserID: "u-1", ProductID: "p-mug", Quantity: 1})
	require.NoError(t, err)

	c, err := svc.Update(ctx, appcart.UpdateItemInput{UserID: "u-1", ProductID: "p-tee", Size: "M", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, c.Items[0].Quantity)

	c, err = svc.Update(ctx, appcart.UpdateItemInput{UserID: "u-1", ProductID: "p-tee", Quantity: 0})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	c, err = svc.Remove(ctx, "u-1", "p-mug")
	require.NoError(t, err)
	assert.True(t, c.Empty())

	_, err = svc.Remove(ctx, "u-1", "p-mug")
	require.NoError(t, err)

	_, err = svc.Add(ctx, appcart.AddItemInput{UserID: "u-1", ProductID: "p-mug", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "u-1"))

	c, err = svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}
