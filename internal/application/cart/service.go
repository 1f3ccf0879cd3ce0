package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domproduct "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	cartService   = "cart-service"
	useCaseAdd    = "cart.add"
	useCaseUpdate = "cart.update"
	useCaseRemove = "cart.remove"
	useCaseClear  = "cart.clear"
)

var ErrRepository = errors.New("cart: repository failure")

// Service owns the per-user cart. Prices are snapshotted from the product
// catalogue when a line is added; checkout re-reads them anyway.
type Service struct {
	carts    domain.Repository
	products domproduct.Repository
	ins      application.Instruments
}

func NewService(carts domain.Repository, products domproduct.Repository, tel observability.Observability) *Service {
	return &Service{
		carts:    carts,
		products: products,
		ins:      application.NewInstruments(tel, cartService),
	}
}

type AddItemInput struct {
	UserID    string
	ProductID string
	Quantity  int
	Size      string
}

func (s *Service) Add(ctx context.Context, cmd AddItemInput) (_ *domain.Cart, err error) {
	ctx, run := s.ins.Begin(ctx, useCaseAdd, "AddCartItem",
		attribute.String("cart.user_id", cmd.UserID),
		attribute.String("cart.product_id", cmd.ProductID),
	)
	defer func() { run.End(err) }()

	if strings.TrimSpace(cmd.UserID) == "" {
		run.Fail("USER_ID_REQUIRED")
		return nil, application.Validation("user id is required")
	}
	if strings.TrimSpace(cmd.ProductID) == "" {
		run.Fail("PRODUCT_ID_REQUIRED")
		return nil, application.Validation("product id is required")
	}
	if cmd.Quantity <= 0 {
		run.Fail("QUANTITY_INVALID")
		return nil, application.Validation("quantity must be greater than zero")
	}

	p, err := s.products.Get(ctx, cmd.ProductID)
	if err != nil {
		if errors.Is(err, domproduct.ErrNotFound) {
			run.Fail("PRODUCT_NOT_FOUND")
			return nil, err
		}
		run.Fail("PRODUCT_LOOKUP_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	c, err := s.load(ctx, cmd.UserID)
	if err != nil {
		run.Fail("CART_LOOKUP_FAILED")
		return nil, err
	}
	if err := c.Add(p.ID, cmd.Quantity, p.Price, cmd.Size); err != nil {
		run.Fail("CART_ADD_REJECTED")
		return nil, err
	}
	if err := s.save(ctx, c); err != nil {
		run.Fail("CART_SAVE_FAILED")
		return nil, err
	}
	return c, nil
}

type UpdateItemInput struct {
	UserID    string
	ProductID string
	Size      string
	Quantity  int
}

// Update sets a line quantity; zero or less removes the matching lines.
func (s *Service) Update(ctx context.Context, cmd UpdateItemInput) (_ *domain.Cart, err error) {
	ctx, run := s.ins.Begin(ctx, useCaseUpdate, "UpdateCartItem",
		attribute.String("cart.user_id", cmd.UserID),
		attribute.String("cart.product_id", cmd.ProductID),
	)
	defer func() { run.End(err) }()

	if cmd.UserID == "" || cmd.ProductID == "" {
		run.Fail("INPUT_INVALID")
		return nil, application.Validation("user id and product id are required")
	}

	c, err := s.load(ctx, cmd.UserID)
	if err != nil {
		run.Fail("CART_LOOKUP_FAILED")
		return nil, err
	}
	c.Update(cmd.ProductID, cmd.Size, cmd.Quantity)
	if err := s.save(ctx, c); err != nil {
		run.Fail("CART_SAVE_FAILED")
		return nil, err
	}
	return c, nil
}

func (s *Service) Remove(ctx context.Context, userID, productID string) (_ *domain.Cart, err error) {
	ctx, run := s.ins.Begin(ctx, useCaseRemove, "RemoveCartItem",
		attribute.String("cart.user_id", userID),
		attribute.String("cart.product_id", productID),
	)
	defer func() { run.End(err) }()

	if userID == "" || productID == "" {
		run.Fail("INPUT_INVALID")
		return nil, application.Validation("user id and product id are required")
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		run.Fail("CART_LOOKUP_FAILED")
		return nil, err
	}
	c.Remove(productID)
	if err := s.save(ctx, c); err != nil {
		run.Fail("CART_SAVE_FAILED")
		return nil, err
	}
	return c, nil
}

// Clear empties the cart. Only the confirmed-payment path calls it.
func (s *Service) Clear(ctx context.Context, userID string) (err error) {
	ctx, run := s.ins.Begin(ctx, useCaseClear, "ClearCart", attribute.String("cart.user_id", userID))
	defer func() { run.End(err) }()

	if userID == "" {
		run.Fail("USER_ID_REQUIRED")
		return application.Validation("user id is required")
	}
	if err := s.carts.Delete(ctx, userID); err != nil {
		run.Fail("CART_DELETE_FAILED")
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return nil
}

// Get returns the user's cart, empty when none has been stored yet.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	if userID == "" {
		return nil, application.Validation("user id is required")
	}
	return s.load(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	if c == nil {
		c = domain.New(userID)
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *domain.Cart) error {
	if err := s.carts.Save(ctx, c); err != nil {
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return nil
}
