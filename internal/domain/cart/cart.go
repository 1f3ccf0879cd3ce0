package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrProductRequired = errors.New("cart: product id is required")
	ErrUserRequired    = errors.New("cart: user id is required")
)

type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Size      string `json:"size,omitempty"`
}

type Cart struct {
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, Items: []Item{}}
}

// Add merges into the line with the same product and size, or appends a new one.
// The unit price snapshot is refreshed on merge.
func (c *Cart) Add(productID string, quantity int, unitPrice int64, size string) error {
	if productID == "" {
		return ErrProductRequired
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Size == size {
			c.Items[i].Quantity += quantity
			c.Items[i].UnitPrice = unitPrice
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, Item{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Size:      size,
	})
	c.touch()
	return nil
}

// Update sets the quantity of matching lines; quantity <= 0 removes them.
// An empty size matches every line of the product.
func (c *Cart) Update(productID, size string, quantity int) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID == productID && (size == "" || it.Size == size) {
			if quantity <= 0 {
				continue
			}
			it.Quantity = quantity
		}
		kept = append(kept, it)
	}
	c.Items = kept
	c.touch()
}

func (c *Cart) Remove(productID string) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	c.touch()
}

func (c *Cart) Clear() {
	c.Items = []Item{}
	c.touch()
}

func (c *Cart) Empty() bool { return len(c.Items) == 0 }

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Items = make([]Item, len(c.Items))
	copy(clone.Items, c.Items)
	return &clone
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
