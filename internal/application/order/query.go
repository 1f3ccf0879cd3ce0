package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

// QueryService serves read projections of orders.
type QueryService struct {
	orders domain.Repository
}

func NewQueryService(orders domain.Repository) *QueryService {
	return &QueryService{orders: orders}
}

func (q *QueryService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, application.Validation("order id is required")
	}
	o, err := q.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return o, nil
}

func (q *QueryService) ListByCustomer(ctx context.Context, userID string) ([]*domain.Order, error) {
	if userID == "" {
		return nil, application.Validation("customer id is required")
	}
	list, err := q.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return list, nil
}
