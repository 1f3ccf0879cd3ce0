package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
)

type DiscountRepository struct {
	mu        sync.RWMutex
	discounts map[string]*domain.Discount
}

func NewDiscountRepository() *DiscountRepository {
	return &DiscountRepository{discounts: make(map[string]*domain.Discount)}
}

func (r *DiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	_ = ctx
	if d == nil {
		return domain.ErrInvalid
	}
	code := domain.NormalizeCode(d.Code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.discounts[code]; exists {
		return domain.ErrConflict
	}
	clone := d.Clone()
	clone.Code = code
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	r.discounts[code] = clone
	return nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*domain.Discount, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.discounts[domain.NormalizeCode(code)]
	if !ok {
		return nil, domain.ErrCodeNotFound
	}
	return d.Clone(), nil
}

func (r *DiscountRepository) IncrementUsage(ctx context.Context, code string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.discounts[domain.NormalizeCode(code)]
	if !ok {
		return domain.ErrCodeNotFound
	}
	if d.Exhausted() {
		return domain.ErrUsageLimitReached
	}
	d.TimesUsed++
	return nil
}

func (r *DiscountRepository) DecrementUsage(ctx context.Context, code string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.discounts[domain.NormalizeCode(code)]
	if !ok {
		return domain.ErrCodeNotFound
	}
	if d.TimesUsed > 0 {
		d.TimesUsed--
	}
	return nil
}
