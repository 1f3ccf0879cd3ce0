package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

const defaultCartTTL = 72 * time.Hour

// CartRepository keeps one JSON document per user under cart:<userID>.
// Every save refreshes the TTL, so only abandoned carts expire.
type CartRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ domain.Repository = (*CartRepository)(nil)

func NewCartRepository(client redis.UniversalClient, ttl time.Duration) *CartRepository {
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	return &CartRepository{client: client, ttl: ttl}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []domain.Item{}
	}
	c.UserID = userID
	return &c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	if c == nil || c.UserID == "" {
		return domain.ErrUserRequired
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(c.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}

func cartKey(userID string) string {
	return "cart:" + userID
}
