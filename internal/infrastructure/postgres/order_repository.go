package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

const orderColumns = `id, user_id, items, shipping_address, shipping_cost, tax, discount_amount, total,
	discount_code, payment_session_id, status, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	const q = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, q,
		o.ID, o.UserID, items, o.ShippingAddress, o.ShippingCost, o.Tax, o.DiscountAmount, o.Total,
		o.DiscountCode, nullString(o.PaymentSessionID), string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *OrderRepository) FindByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_session_id = $1`, sessionID)
	return scanOrder(row)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (r *OrderRepository) AttachPaymentSession(ctx context.Context, id, sessionID string) error {
	const q = `
		UPDATE orders SET payment_session_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND (payment_session_id IS NULL OR payment_session_id = $2)`

	res, err := r.db.ExecContext(ctx, q, id, sessionID, string(domain.StatusPending))
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("attach payment session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach payment session: %w", err)
	}
	if n == 1 {
		return nil
	}
	return r.missOrConflict(ctx, id)
}

// UpdateStatus is a compare-and-set on the status column.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	q := `UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2 RETURNING ` + orderColumns

	o, err := scanOrder(r.db.QueryRowContext(ctx, q, id, string(from), string(to)))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, r.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) missOrConflict(ctx context.Context, id string) error {
	var ok bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&ok); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var (
		o       domain.Order
		items   []byte
		session sql.NullString
		status  string
	)
	err := s.Scan(
		&o.ID, &o.UserID, &items, &o.ShippingAddress, &o.ShippingCost, &o.Tax, &o.DiscountAmount, &o.Total,
		&o.DiscountCode, &session, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	o.PaymentSessionID = session.String
	o.Status = domain.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
