package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application/pricing"
	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	domproduct "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const useCaseOrderCreate = "order.create"

type ItemInput struct {
	ProductID string
	Quantity  int
	Size      string
}

type CreateOrderInput struct {
	UserID       string
	Items        []ItemInput
	Address      string
	DiscountCode string
}

type CreateOrderResult struct {
	OrderID    string
	SessionURL string
	Total      int64
}

// CreateOrderUseCase turns a cart snapshot into a pending order with a hosted
// payment session. Stock is reserved before the order is persisted and is
// released again on every failure after that point. Status changes after
// creation go through the shared Lifecycle.
type CreateOrderUseCase struct {
	orders      domain.Repository
	products    domproduct.Repository
	discounts   domdiscount.Repository
	engine      *pricing.Engine
	gateway     dompayment.Gateway
	idGenerator IDGenerator
	lifecycle   *Lifecycle
	opts        CheckoutOptions
	now         func() time.Time
	ins         application.Instruments
}

var _ application.UseCase[CreateOrderInput, *CreateOrderResult] = (*CreateOrderUseCase)(nil)

func NewCreateOrderUseCase(
	orders domain.Repository,
	products domproduct.Repository,
	discounts domdiscount.Repository,
	engine *pricing.Engine,
	gateway dompayment.Gateway,
	idGen IDGenerator,
	lifecycle *Lifecycle,
	opts CheckoutOptions,
	tel observability.Observability,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		orders:      orders,
		products:    products,
		discounts:   discounts,
		engine:      engine,
		gateway:     gateway,
		idGenerator: idGen,
		lifecycle:   lifecycle,
		opts:        opts.withDefaults(),
		now:         time.Now,
		ins:         application.NewInstruments(tel, orderService),
	}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, run := uc.ins.Begin(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.user_id", cmd.UserID),
		attribute.Int("order.lines", len(cmd.Items)),
	)
	defer func() { run.End(err) }()
	span := run.Span()

	if strings.TrimSpace(cmd.UserID) == "" {
		run.Fail("USER_ID_REQUIRED")
		return nil, application.Validation("user id is required")
	}
	if len(cmd.Items) == 0 {
		run.Fail("EMPTY_CART")
		return nil, ErrEmptyCart
	}
	if strings.TrimSpace(cmd.Address) == "" {
		run.Fail("ADDRESS_REQUIRED")
		return nil, application.Validation("shipping address is required")
	}
	for _, it := range cmd.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			run.Fail("ITEM_INVALID")
			return nil, application.Validation("every item needs a product id and a positive quantity")
		}
	}

	items, lines, status, err := uc.snapshot(ctx, cmd.Items)
	if err != nil {
		run.Fail(status)
		return nil, err
	}

	var disc *domdiscount.Discount
	code := domdiscount.NormalizeCode(cmd.DiscountCode)
	if code != "" {
		span.SetAttributes(attribute.String("order.discount_code", code))
		disc, err = uc.discounts.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, domdiscount.ErrCodeNotFound) {
				run.Fail("DISCOUNT_NOT_FOUND")
				return nil, err
			}
			run.Fail("DISCOUNT_LOOKUP_FAILED")
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
	}

	quote, err := uc.engine.Quote(lines, cmd.Address, disc, uc.now())
	if err != nil {
		run.Fail("DISCOUNT_REJECTED")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	reserved, err := uc.reserve(ctx, items)
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			run.Fail("OUT_OF_STOCK")
		} else {
			run.Fail("STOCK_RESERVE_FAILED")
		}
		return nil, err
	}
	span.AddEvent("order.stock_reserved")

	orderID := uc.idGenerator.NewID()
	entity, derr := domain.New(orderID, cmd.UserID, items, cmd.Address, domain.Pricing{
		ShippingCost:   quote.Shipping,
		Tax:            quote.Tax,
		DiscountAmount: quote.Discount,
	}, discountCode(disc))
	if derr != nil {
		uc.release(ctx, run.Logger(), reserved)
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int64("order.total", entity.Total))
	run.Annotate(observability.F("order_id", orderID))

	if err := uc.orders.Insert(ctx, entity); err != nil {
		uc.release(ctx, run.Logger(), reserved)
		run.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	session, gwErr := uc.createSession(ctx, entity)
	if gwErr != nil {
		uc.abandon(ctx, run.Logger(), entity)
		run.Fail("PAYMENT_GATEWAY_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrPaymentGateway, gwErr)
	}

	if err := uc.orders.AttachPaymentSession(ctx, entity.ID, session.ID); err != nil {
		// The session is live at the provider; webhooks still resolve the order by its id in metadata.
		run.Status("SESSION_ATTACH_FAILED")
		run.Logger().Warn("payment_session_attach_failed",
			observability.F("order_id", entity.ID),
			observability.F("session_id", session.ID),
			observability.F("error", err),
		)
	} else {
		entity.PaymentSessionID = session.ID
	}

	uc.lifecycle.publish(ctx, domain.NewOrderCreatedEvent(entity))
	span.AddEvent("order.created", trace.WithAttributes(attribute.String("order.id", orderID)))

	return &CreateOrderResult{OrderID: entity.ID, SessionURL: session.URL, Total: entity.Total}, nil
}

// snapshot re-reads every product so prices and stock come from the catalogue,
// never from the client.
func (uc *CreateOrderUseCase) snapshot(ctx context.Context, in []ItemInput) ([]domain.Item, []pricing.Line, string, error) {
	items := make([]domain.Item, 0, len(in))
	lines := make([]pricing.Line, 0, len(in))
	requested := make(map[string]int, len(in))

	for _, it := range in {
		p, err := uc.products.Get(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, domproduct.ErrNotFound) {
				return nil, nil, "PRODUCT_NOT_FOUND", fmt.Errorf("%w: product %s", ErrNotFound, it.ProductID)
			}
			return nil, nil, "PRODUCT_LOOKUP_FAILED", fmt.Errorf("%w: %w", ErrRepository, err)
		}
		requested[p.ID] += it.Quantity
		if p.Stock < requested[p.ID] {
			return nil, nil, "OUT_OF_STOCK", fmt.Errorf("%w: product %s", ErrOutOfStock, p.ID)
		}
		items = append(items, domain.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			Size:      it.Size,
		})
		lines = append(lines, pricing.Line{
			ProductID: p.ID,
			Category:  p.Category,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
	}
	return items, lines, "", nil
}

// reserve decrements stock per product. On any failure the reservations made so
// far are released before returning.
func (uc *CreateOrderUseCase) reserve(ctx context.Context, items []domain.Item) ([]productQuantity, error) {
	wanted := quantitiesByProduct(items)
	reserved := make([]productQuantity, 0, len(wanted))
	for _, q := range wanted {
		if err := uc.products.Reserve(ctx, q.productID, q.quantity); err != nil {
			uc.release(ctx, uc.ins.Logger(), reserved)
			if errors.Is(err, domproduct.ErrInsufficientStock) {
				return nil, fmt.Errorf("%w: product %s", ErrOutOfStock, q.productID)
			}
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
		reserved = append(reserved, q)
	}
	return reserved, nil
}

func (uc *CreateOrderUseCase) release(ctx context.Context, logger observability.Logger, reserved []productQuantity) {
	ctx = context.WithoutCancel(ctx)
	for _, q := range reserved {
		if err := uc.products.Release(ctx, q.productID, q.quantity); err != nil {
			logger.Error("stock_release_failed",
				observability.F("product_id", q.productID),
				observability.F("quantity", q.quantity),
				observability.F("error", err),
			)
		}
	}
}

// abandon cancels a pending order whose payment session could not be created.
// The guarded transition releases its stock exactly once.
func (uc *CreateOrderUseCase) abandon(ctx context.Context, logger observability.Logger, o *domain.Order) {
	ctx = context.WithoutCancel(ctx)
	if _, err := uc.lifecycle.Transition(ctx, o, domain.StatusCancelled, "payment_session_failed"); err != nil {
		logger.Error("order_abandon_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err),
		)
	}
}

// createSession calls the gateway with a bounded timeout per attempt and a fixed
// number of attempts. Every attempt carries the order id as idempotency key.
func (uc *CreateOrderUseCase) createSession(ctx context.Context, o *domain.Order) (*dompayment.Session, error) {
	req := dompayment.SessionRequest{
		IdempotencyKey: o.ID,
		OrderID:        o.ID,
		CustomerID:     o.UserID,
		Items:          make([]dompayment.LineItem, 0, len(o.Items)),
		ShippingCost:   o.ShippingCost,
		Tax:            o.Tax,
		DiscountAmount: o.DiscountAmount,
		Total:          o.Total,
		Currency:       uc.opts.Currency,
		SuccessURL:     strings.ReplaceAll(uc.opts.SuccessURL, "{order_id}", o.ID),
		CancelURL:      strings.ReplaceAll(uc.opts.CancelURL, "{order_id}", o.ID),
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, dompayment.LineItem{
			ProductID:  it.ProductID,
			Name:       it.Name,
			UnitAmount: it.UnitPrice,
			Quantity:   it.Quantity,
		})
	}

	var lastErr error
	for attempt := 1; attempt <= uc.opts.Attempts; attempt++ {
		if attempt > 1 && uc.opts.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(lastErr, ctx.Err())
			case <-time.After(uc.opts.RetryBackoff * time.Duration(attempt-1)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, uc.opts.AttemptTimeout)
		start := time.Now()
		session, err := uc.gateway.CreateSession(attemptCtx, req)
		cancel()

		if err == nil && (session == nil || session.ID == "") {
			err = fmt.Errorf("%w: empty session", dompayment.ErrUnavailable)
		}
		if err == nil {
			uc.ins.External(gatewayPeer, "create_session", "success", start)
			return session, nil
		}

		uc.ins.External(gatewayPeer, "create_session", "error", start)
		lastErr = err
		if errors.Is(err, dompayment.ErrRejected) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func discountCode(d *domdiscount.Discount) string {
	if d == nil {
		return ""
	}
	return d.Code
}
