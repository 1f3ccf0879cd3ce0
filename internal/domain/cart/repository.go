package cart

import "context"

type Repository interface {
	// Get returns the stored cart or an empty one for users without a cart.
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, userID string) error
}
