package order

import (
	"errors"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

var (
	ErrEmptyCart         = errors.New("order: cart is empty")
	ErrOutOfStock        = errors.New("order: out of stock")
	ErrPaymentGateway    = errors.New("order: payment gateway failure")
	ErrRepository        = errors.New("order: repository failure")
	ErrNotFound          = domain.ErrNotFound
	ErrConflict          = domain.ErrConflict
	ErrInvalidTransition = domain.ErrInvalidTransition
)

const (
	orderService = "order-service"
	gatewayPeer  = "payment-gateway"
	publishPeer  = "outbox"

	publishTimeout = 300 * time.Millisecond
)

// CheckoutOptions controls payment session creation.
// SuccessURL and CancelURL may contain {order_id}, replaced per order.
type CheckoutOptions struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	Attempts       int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

func (o CheckoutOptions) withDefaults() CheckoutOptions {
	if o.Currency == "" {
		o.Currency = "bdt"
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Second
	}
	if o.RetryBackoff < 0 {
		o.RetryBackoff = 0
	}
	return o
}
