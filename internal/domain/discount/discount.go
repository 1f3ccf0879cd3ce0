package discount

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrCodeNotFound      = errors.New("discount: code not found")
	ErrCodeExpired       = errors.New("discount: code expired or inactive")
	ErrUsageLimitReached = errors.New("discount: usage limit reached")
	ErrMinimumNotMet     = errors.New("discount: minimum purchase not met")
	ErrNotApplicable     = errors.New("discount: not applicable to cart items")
	ErrConflict          = errors.New("discount: code already exists")
	ErrInvalid           = errors.New("discount: invalid definition")
)

type Type string

const (
	TypePercentage  Type = "percentage"
	TypeFixedAmount Type = "fixed_amount"
)

// Discount is a named reduction. Value is percent points (0..100) for
// TypePercentage and minor units for TypeFixedAmount. A zero UsageLimit means
// unlimited; zero ValidFrom/ValidTo leave that side of the window open.
type Discount struct {
	Code        string
	Type        Type
	Value       int64
	Active      bool
	ValidFrom   time.Time
	ValidTo     time.Time
	MinPurchase int64
	ProductIDs  []string
	Categories  []string
	UsageLimit  int
	TimesUsed   int
	CreatedAt   time.Time
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the definition invariants. It does not evaluate the rules against a cart.
func (d *Discount) Validate() error {
	if NormalizeCode(d.Code) == "" {
		return errors.Join(ErrInvalid, errors.New("code is required"))
	}
	switch d.Type {
	case TypePercentage:
		if d.Value < 0 || d.Value > 100 {
			return errors.Join(ErrInvalid, errors.New("percentage must be within 0..100"))
		}
	case TypeFixedAmount:
		if d.Value < 0 {
			return errors.Join(ErrInvalid, errors.New("amount must be zero or greater"))
		}
	default:
		return errors.Join(ErrInvalid, errors.New("unknown type"))
	}
	if d.MinPurchase < 0 || d.UsageLimit < 0 || d.TimesUsed < 0 {
		return errors.Join(ErrInvalid, errors.New("negative limits"))
	}
	if d.UsageLimit > 0 && d.TimesUsed > d.UsageLimit {
		return errors.Join(ErrInvalid, errors.New("times used exceeds usage limit"))
	}
	if !d.ValidFrom.IsZero() && !d.ValidTo.IsZero() && d.ValidTo.Before(d.ValidFrom) {
		return errors.Join(ErrInvalid, errors.New("valid_to precedes valid_from"))
	}
	return nil
}

// Usable reports ErrCodeExpired or ErrUsageLimitReached for a discount evaluated at now.
func (d *Discount) Usable(now time.Time) error {
	if !d.Active {
		return ErrCodeExpired
	}
	if !d.ValidFrom.IsZero() && now.Before(d.ValidFrom) {
		return ErrCodeExpired
	}
	if !d.ValidTo.IsZero() && now.After(d.ValidTo) {
		return ErrCodeExpired
	}
	if d.Exhausted() {
		return ErrUsageLimitReached
	}
	return nil
}

func (d *Discount) Exhausted() bool {
	return d.UsageLimit > 0 && d.TimesUsed >= d.UsageLimit
}

func (d *Discount) HasFilters() bool {
	return len(d.ProductIDs) > 0 || len(d.Categories) > 0
}

// Matches reports whether a line with the given product and category is eligible.
func (d *Discount) Matches(productID, category string) bool {
	if !d.HasFilters() {
		return true
	}
	for _, id := range d.ProductIDs {
		if id == productID {
			return true
		}
	}
	for _, c := range d.Categories {
		if category != "" && strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func (d *Discount) Clone() *Discount {
	if d == nil {
		return nil
	}
	clone := *d
	clone.ProductIDs = append([]string(nil), d.ProductIDs...)
	clone.Categories = append([]string(nil), d.Categories...)
	return &clone
}
