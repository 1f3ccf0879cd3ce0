package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]*domain.Cart)}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[userID]
	if !ok {
		return domain.New(userID), nil
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	_ = ctx
	if c == nil || c.UserID == "" {
		return domain.ErrUserRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[c.UserID] = c.Clone()
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}
