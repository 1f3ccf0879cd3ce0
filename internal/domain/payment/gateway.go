package payment

import (
	"context"
	"errors"
)

var (
	ErrSignatureInvalid = errors.New("payment: webhook signature invalid")
	ErrMalformedEvent   = errors.New("payment: malformed webhook event")
	ErrUnavailable      = errors.New("payment: gateway unavailable")
	// ErrRejected marks a request the gateway refused; retrying it cannot succeed.
	ErrRejected = errors.New("payment: gateway rejected request")
)

type LineItem struct {
	ProductID  string
	Name       string
	UnitAmount int64
	Quantity   int
}

// SessionRequest describes a hosted checkout session. IdempotencyKey must be
// stable across retries so the provider never opens two sessions for one order.
type SessionRequest struct {
	IdempotencyKey string
	OrderID        string
	CustomerID     string
	Items          []LineItem
	ShippingCost   int64
	Tax            int64
	DiscountAmount int64
	Total          int64
	Currency       string
	SuccessURL     string
	CancelURL      string
}

type Session struct {
	ID  string
	URL string
}

type EventKind string

const (
	KindPaymentSucceeded EventKind = "payment_succeeded"
	KindPaymentFailed    EventKind = "payment_failed"
	KindUnknown          EventKind = "unknown"
)

// Event is the provider-neutral view of a verified webhook delivery.
type Event struct {
	ID              string
	Type            string
	Kind            EventKind
	SessionID       string
	OrderID         string
	ClientReference string
}

// Gateway is the hosted payment provider capability.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	VerifySignature(payload []byte, header string) error
	ParseEvent(payload []byte) (Event, error)
}
