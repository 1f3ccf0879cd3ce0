package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	sessions map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:   make(map[string]*domain.Order),
		sessions: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}

	r.orders[order.ID] = order.Clone()
	if order.PaymentSessionID != "" {
		r.sessions[order.PaymentSessionID] = order.ID
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.orders[id].Clone(), nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *OrderRepository) AttachPaymentSession(ctx context.Context, id, sessionID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if order.Status != domain.StatusPending || (order.PaymentSessionID != "" && order.PaymentSessionID != sessionID) {
		return domain.ErrConflict
	}
	order.PaymentSessionID = sessionID
	order.UpdatedAt = time.Now().UTC()
	r.sessions[sessionID] = id
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if order.Status != from {
		return nil, domain.ErrConflict
	}
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	return order.Clone(), nil
}
