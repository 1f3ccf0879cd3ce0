package order

import "context"

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentSession(ctx context.Context, sessionID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	// AttachPaymentSession records the gateway session id while the order is still pending.
	AttachPaymentSession(ctx context.Context, id, sessionID string) error
	// UpdateStatus writes `to` only if the stored status is still `from`.
	// A mismatch returns ErrConflict and leaves the order untouched.
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Order, error)
}
