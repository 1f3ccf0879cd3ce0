package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	const q = `SELECT id, name, category, price, stock, updated_at FROM products WHERE id = $1`

	var p domain.Product
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// Reserve decrements stock in a single statement guarded by stock >= quantity.
func (r *ProductRepository) Reserve(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	const q = `UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`
	res, err := r.db.ExecContext(ctx, q, quantity, id)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *ProductRepository) Release(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	const q = `UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, q, quantity, id)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Seed inserts a catalogue row unless the id already exists, so restarts
// never reset live stock.
func (r *ProductRepository) Seed(ctx context.Context, p domain.Product) error {
	const q = `
		INSERT INTO products (id, name, category, price, stock, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, q, p.ID, p.Name, p.Category, p.Price, p.Stock); err != nil {
		return fmt.Errorf("seed product: %w", err)
	}
	return nil
}

func (r *ProductRepository) exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check product: %w", err)
	}
	return ok, nil
}
