package product

import "context"

// Repository is the authoritative price and stock source.
type Repository interface {
	Get(ctx context.Context, id string) (*Product, error)
	// Reserve is a single conditional decrement: stock -= qty only when stock >= qty.
	Reserve(ctx context.Context, id string, quantity int) error
	Release(ctx context.Context, id string, quantity int) error
}
