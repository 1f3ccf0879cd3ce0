package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	"github.com/lib/pq"
)

type DiscountRepository struct {
	db *sql.DB
}

func NewDiscountRepository(db *sql.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

func (r *DiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	if d == nil {
		return domain.ErrInvalid
	}
	code := domain.NormalizeCode(d.Code)
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO discounts (code, type, value, active, valid_from, valid_to, min_purchase,
		                       product_ids, categories, usage_limit, times_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, q,
		code, string(d.Type), d.Value, d.Active, nullTime(d.ValidFrom), nullTime(d.ValidTo), d.MinPurchase,
		pq.Array(nonNil(d.ProductIDs)), pq.Array(nonNil(d.Categories)), d.UsageLimit, d.TimesUsed, createdAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert discount: %w", err)
	}
	d.Code = code
	d.CreatedAt = createdAt
	return nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*domain.Discount, error) {
	const q = `
		SELECT code, type, value, active, valid_from, valid_to, min_purchase,
		       product_ids, categories, usage_limit, times_used, created_at
		FROM discounts WHERE code = $1`

	var (
		d        domain.Discount
		typ      string
		from, to sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, domain.NormalizeCode(code)).Scan(
		&d.Code, &typ, &d.Value, &d.Active, &from, &to, &d.MinPurchase,
		pq.Array(&d.ProductIDs), pq.Array(&d.Categories), &d.UsageLimit, &d.TimesUsed, &d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get discount: %w", err)
	}
	d.Type = domain.Type(typ)
	if from.Valid {
		d.ValidFrom = from.Time.UTC()
	}
	if to.Valid {
		d.ValidTo = to.Time.UTC()
	}
	return &d, nil
}

// IncrementUsage only succeeds while the limit has room, so concurrent
// confirmations cannot push times_used past usage_limit.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, code string) error {
	const q = `
		UPDATE discounts SET times_used = times_used + 1
		WHERE code = $1 AND (usage_limit = 0 OR times_used < usage_limit)`

	code = domain.NormalizeCode(code)
	res, err := r.db.ExecContext(ctx, q, code)
	if err != nil {
		return fmt.Errorf("increment discount usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment discount usage: %w", err)
	}
	if n == 1 {
		return nil
	}

	var ok bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM discounts WHERE code = $1)`, code).Scan(&ok); err != nil {
		return fmt.Errorf("check discount: %w", err)
	}
	if !ok {
		return domain.ErrCodeNotFound
	}
	return domain.ErrUsageLimitReached
}

func (r *DiscountRepository) DecrementUsage(ctx context.Context, code string) error {
	const q = `UPDATE discounts SET times_used = GREATEST(times_used - 1, 0) WHERE code = $1`

	res, err := r.db.ExecContext(ctx, q, domain.NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("decrement discount usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement discount usage: %w", err)
	}
	if n == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
