package product

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("product: not found")
	ErrInvalidQuantity   = errors.New("product: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("product: insufficient stock")
)

type Product struct {
	ID        string
	Name      string
	Category  string
	Price     int64
	Stock     int
	UpdatedAt time.Time
}

// Reserve deducts quantity when enough stock is on hand.
func (p *Product) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.Stock {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	p.touch()
	return nil
}

func (p *Product) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += quantity
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
