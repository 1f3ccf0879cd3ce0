package discount

import "context"

type Repository interface {
	Create(ctx context.Context, d *Discount) error
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// IncrementUsage bumps TimesUsed unless the usage limit is already reached,
	// in which case it returns ErrUsageLimitReached.
	IncrementUsage(ctx context.Context, code string) error
	// DecrementUsage gives one use back, never going below zero.
	DecrementUsage(ctx context.Context, code string) error
}
