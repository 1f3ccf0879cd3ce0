package cart_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

func TestAddMergesSameProductAndSize(t *testing.T) {
	c := cart.New("u-1")
	require.NoError(t, c.Add("p-1", 1, 1500, "M"))
	require.NoError(t, c.Add("p-1", 2, 1600, "M"))
	require.NoError(t, c.Add("p-1", 1, 1600, "L"))

	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, int64(1600), c.Items[0].UnitPrice)
	assert.Equal(t, "L", c.Items[1].Size)
}

func TestAddValidates(t *testing.T) {
	c := cart.New("u-1")
	assert.ErrorIs(t, c.Add("", 1, 100, ""), cart.ErrProductRequired)
	assert.ErrorIs(t, c.Add("p-1", 0, 100, ""), cart.ErrInvalidQuantity)
	assert.True(t, c.Empty())
}

func TestUpdate(t *testing.T) {
	c := cart.New("u-1")
	require.NoError(t, c.Add("p-1", 1, 1500, "M"))
	require.NoError(t, c.Add("p-1", 1, 1500, "L"))
	require.NoError(t, c.Add("p-2", 1, 900, ""))

	c.Update("p-1", "L", 5)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, 5, c.Items[1].Quantity)

	c.Update("p-1", "", 2)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 2, c.Items[1].Quantity)

	c.Update("p-1", "", 0)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p-2", c.Items[0].ProductID)
}

func TestRemoveAndClear(t *testing.T) {
	c := cart.New("u-1")
	require.NoError(t, c.Add("p-1", 1, 1500, "M"))
	require.NoError(t, c.Add("p-1", 1, 1500, "L"))
	require.NoError(t, c.Add("p-2", 1, 900, ""))

	c.Remove("p-1")
	require.Len(t, c.Items, 1)

	c.Remove("missing")
	require.Len(t, c.Items, 1)

	c.Clear()
	assert.True(t, c.Empty())
	assert.NotNil(t, c.Items)
}
