package order

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: conflict")
	ErrEmptyItems        = errors.New("order: at least one item is required")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount     = errors.New("order: amount must be zero or greater")
	ErrAddressRequired   = errors.New("order: shipping address is required")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Item is an immutable line snapshot taken at checkout time.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Size      string `json:"size,omitempty"`
}

func (i Item) LineTotal() int64 { return i.UnitPrice * int64(i.Quantity) }

// Pricing holds the amounts computed by the pricing engine for a checkout.
type Pricing struct {
	ShippingCost   int64
	Tax            int64
	DiscountAmount int64
}

type Order struct {
	ID               string
	UserID           string
	Items            []Item
	ShippingAddress  string
	ShippingCost     int64
	Tax              int64
	DiscountAmount   int64
	Total            int64
	DiscountCode     string
	PaymentSessionID string
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New builds a pending order and derives Total from the item snapshot and pricing.
func New(id, userID string, items []Item, address string, pricing Pricing, discountCode string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	if strings.TrimSpace(address) == "" {
		return nil, ErrAddressRequired
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
	}
	if pricing.ShippingCost < 0 || pricing.Tax < 0 || pricing.DiscountAmount < 0 {
		return nil, ErrInvalidAmount
	}

	snapshot := make([]Item, len(items))
	copy(snapshot, items)

	o := &Order{
		ID:              id,
		UserID:          userID,
		Items:           snapshot,
		ShippingAddress: address,
		ShippingCost:    pricing.ShippingCost,
		Tax:             pricing.Tax,
		DiscountAmount:  pricing.DiscountAmount,
		DiscountCode:    discountCode,
		Status:          StatusPending,
	}
	o.Total = o.Subtotal() + o.ShippingCost + o.Tax - o.DiscountAmount
	if o.Total < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	return o, nil
}

func (o *Order) Subtotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.LineTotal()
	}
	return sum
}

// Balanced reports whether Total still matches its components.
func (o *Order) Balanced() bool {
	return o.Total >= 0 && o.Total == o.Subtotal()+o.ShippingCost+o.Tax-o.DiscountAmount
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = make([]Item, len(o.Items))
	copy(clone.Items, o.Items)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
