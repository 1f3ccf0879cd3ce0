package pricing

import (
	"fmt"
	"strings"
	"time"

	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	"github.com/shopspring/decimal"
)

// Tier maps a locality found in a shipping address to a fixed shipping cost.
type Tier struct {
	Locality string
	Cost     int64
}

type Config struct {
	// Tiers are matched in order; the first locality contained in the address wins.
	Tiers           []Tier
	DefaultShipping int64
	TaxRate         decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{Locality: "dhaka", Cost: 6000},
			{Locality: "chattogram", Cost: 10000},
		},
		DefaultShipping: 12000,
		TaxRate:         decimal.RequireFromString("0.05"),
	}
}

// Line is the pricing view of a cart line, carrying the authoritative unit price.
type Line struct {
	ProductID string
	Category  string
	UnitPrice int64
	Quantity  int
}

func (l Line) Total() int64 { return l.UnitPrice * int64(l.Quantity) }

type Breakdown struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Discount int64
	Total    int64
}

// Engine is pure: no I/O, all inputs passed explicitly.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.TaxRate.IsNegative() {
		return nil, fmt.Errorf("pricing: tax rate must be zero or greater")
	}
	if cfg.DefaultShipping < 0 {
		return nil, fmt.Errorf("pricing: default shipping must be zero or greater")
	}
	tiers := make([]Tier, 0, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		loc := strings.ToLower(strings.TrimSpace(t.Locality))
		if loc == "" || t.Cost < 0 {
			return nil, fmt.Errorf("pricing: invalid shipping tier %q", t.Locality)
		}
		tiers = append(tiers, Tier{Locality: loc, Cost: t.Cost})
	}
	cfg.Tiers = tiers
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Shipping(address string) int64 {
	addr := strings.ToLower(address)
	for _, t := range e.cfg.Tiers {
		if strings.Contains(addr, t.Locality) {
			return t.Cost
		}
	}
	return e.cfg.DefaultShipping
}

// Tax applies the flat rate to the subtotal only, rounded half-up to the minor unit.
func (e *Engine) Tax(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	return decimal.NewFromInt(subtotal).Mul(e.cfg.TaxRate).Round(0).IntPart()
}

// ApplyDiscount evaluates d against the lines. A nil discount means the code did not resolve.
func (e *Engine) ApplyDiscount(subtotal int64, lines []Line, d *domdiscount.Discount, now time.Time) (int64, error) {
	if d == nil {
		return 0, domdiscount.ErrCodeNotFound
	}
	if err := d.Usable(now); err != nil {
		return 0, err
	}
	if subtotal < d.MinPurchase {
		return 0, domdiscount.ErrMinimumNotMet
	}

	eligible := subtotal
	if d.HasFilters() {
		eligible = 0
		for _, l := range lines {
			if d.Matches(l.ProductID, l.Category) {
				eligible += l.Total()
			}
		}
		if eligible == 0 {
			return 0, domdiscount.ErrNotApplicable
		}
	}

	var amount int64
	switch d.Type {
	case domdiscount.TypePercentage:
		amount = decimal.NewFromInt(eligible).
			Mul(decimal.NewFromInt(d.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).IntPart()
	case domdiscount.TypeFixedAmount:
		amount = d.Value
	default:
		return 0, domdiscount.ErrInvalid
	}
	if amount > eligible {
		amount = eligible
	}
	if amount < 0 {
		amount = 0
	}
	return amount, nil
}

// Quote prices a checkout. d may be nil when no code was supplied.
func (e *Engine) Quote(lines []Line, address string, d *domdiscount.Discount, now time.Time) (Breakdown, error) {
	var b Breakdown
	for _, l := range lines {
		b.Subtotal += l.Total()
	}
	b.Shipping = e.Shipping(address)
	b.Tax = e.Tax(b.Subtotal)
	if d != nil {
		amount, err := e.ApplyDiscount(b.Subtotal, lines, d, now)
		if err != nil {
			return Breakdown{}, err
		}
		b.Discount = amount
	}
	b.Total = b.Subtotal + b.Shipping + b.Tax - b.Discount
	return b, nil
}
