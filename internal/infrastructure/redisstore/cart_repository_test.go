package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCartRepository(client, time.Hour), mr
}

func TestGetMissingCartIsEmpty(t *testing.T) {
	repo, _ := setupTestRedis(t)

	c, err := repo.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.True(t, c.Empty())
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupTestRedis(t)

	c := domain.New("u-1")
	require.NoError(t, c.Add("p-1", 2, 1500, "M"))
	require.NoError(t, repo.Save(ctx, c))

	assert.True(t, mr.Exists("cart:u-1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:u-1"))

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(1500), got.Items[0].UnitPrice)
	assert.Equal(t, "M", got.Items[0].Size)
}

func TestCartExpires(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupTestRedis(t)

	c := domain.New("u-1")
	require.NoError(t, c.Add("p-1", 1, 100, ""))
	require.NoError(t, repo.Save(ctx, c))

	mr.FastForward(2 * time.Hour)

	got, err := repo.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo, mr := setupTestRedis(t)

	c := domain.New("u-1")
	require.NoError(t, c.Add("p-1", 1, 100, ""))
	require.NoError(t, repo.Save(ctx, c))
	require.NoError(t, repo.Delete(ctx, "u-1"))
	assert.False(t, mr.Exists("cart:u-1"))

	require.NoError(t, repo.Delete(ctx, "never-existed"))
}

func TestGetCorruptPayload(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:u-1", "{not json"))

	_, err := repo.Get(context.Background(), "u-1")
	assert.Error(t, err)
}

func TestRedisUnavailable(t *testing.T) {
	repo, mr := setupTestRedis(t)
	mr.Close()

	_, err := repo.Get(context.Background(), "u-1")
	assert.Error(t, err)
}
