package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
)

type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewProductRepository(seed ...domain.Product) *ProductRepository {
	r := &ProductRepository{products: make(map[string]*domain.Product, len(seed))}
	for _, p := range seed {
		r.products[p.ID] = cloneProduct(&p)
	}
	return r
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

// Reserve checks and decrements under one lock so concurrent buyers of the last unit serialize.
func (r *ProductRepository) Reserve(ctx context.Context, id string, quantity int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	return p.Reserve(quantity)
}

func (r *ProductRepository) Release(ctx context.Context, id string, quantity int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	return p.Release(quantity)
}

// Put inserts or replaces a product; used for seeding.
func (r *ProductRepository) Put(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = cloneProduct(&p)
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
