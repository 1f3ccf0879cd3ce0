package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	domproduct "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

// Lifecycle is the single writer of order status. Every write is conditional
// on the status the caller read, so side effects of entering a status run at
// most once per order no matter how many callers race.
type Lifecycle struct {
	orders    domain.Repository
	products  domproduct.Repository
	discounts domdiscount.Repository
	publisher domoutbox.Publisher
	ins       application.Instruments
}

func NewLifecycle(
	orders domain.Repository,
	products domproduct.Repository,
	discounts domdiscount.Repository,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Lifecycle {
	return &Lifecycle{
		orders:    orders,
		products:  products,
		discounts: discounts,
		publisher: publisher,
		ins:       application.NewInstruments(tel, orderService),
	}
}

// Transition moves current to the target status. It returns ErrInvalidTransition
// when the lifecycle forbids the move and ErrConflict when the stored status no
// longer matches current.Status.
func (l *Lifecycle) Transition(ctx context.Context, current *domain.Order, to domain.Status, reason string) (*domain.Order, error) {
	return l.transition(ctx, current, to, reason, true)
}

// Revoke cancels a confirmed order whose discount use was never counted, so
// unlike Transition it leaves the discount counter alone. Stock is still released.
func (l *Lifecycle) Revoke(ctx context.Context, current *domain.Order, reason string) (*domain.Order, error) {
	return l.transition(ctx, current, domain.StatusCancelled, reason, false)
}

func (l *Lifecycle) transition(ctx context.Context, current *domain.Order, to domain.Status, reason string, restoreUsage bool) (*domain.Order, error) {
	if current == nil {
		return nil, ErrNotFound
	}
	from := current.Status
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updated, err := l.orders.UpdateStatus(ctx, current.ID, from, to)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			return nil, ErrConflict
		case errors.Is(err, domain.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	if to == domain.StatusCancelled {
		l.afterCancel(ctx, updated, from, restoreUsage)
	}
	l.publish(ctx, domain.NewOrderStatusChangedEvent(updated, from, reason))
	return updated, nil
}

// afterCancel returns reserved stock and, for orders whose discount use was
// already counted at confirmation, gives that use back.
func (l *Lifecycle) afterCancel(ctx context.Context, o *domain.Order, from domain.Status, restoreUsage bool) {
	ctx = context.WithoutCancel(ctx)
	logger := logctx.FromOr(ctx, l.ins.Logger()).With(observability.F("order_id", o.ID))

	releaseItems(ctx, l.products, logger, o.Items)

	if restoreUsage && from == domain.StatusConfirmed && o.DiscountCode != "" && l.discounts != nil {
		if err := l.discounts.DecrementUsage(ctx, o.DiscountCode); err != nil {
			logger.Error("discount_usage_restore_failed",
				observability.F("discount_code", o.DiscountCode),
				observability.F("error", err),
			)
		}
	}
}

func (l *Lifecycle) publish(ctx context.Context, e domoutbox.Event) {
	if l.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	if err := l.publisher.Publish(pubCtx, e); err != nil {
		outcome = "error"
		logctx.FromOr(ctx, l.ins.Logger()).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err),
		)
	}
	l.ins.External(publishPeer, e.EventName(), outcome, start)
}

// releaseItems gives back stock for every line. Failures are logged and do not
// stop the remaining releases.
func releaseItems(ctx context.Context, products domproduct.Repository, logger observability.Logger, items []domain.Item) {
	for _, qty := range quantitiesByProduct(items) {
		if err := products.Release(ctx, qty.productID, qty.quantity); err != nil {
			logger.Error("stock_release_failed",
				observability.F("product_id", qty.productID),
				observability.F("quantity", qty.quantity),
				observability.F("error", err),
			)
		}
	}
}

type productQuantity struct {
	productID string
	quantity  int
}

// quantitiesByProduct sums lines of the same product (different sizes share stock),
// preserving first-seen order.
func quantitiesByProduct(items []domain.Item) []productQuantity {
	idx := make(map[string]int, len(items))
	out := make([]productQuantity, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, productQuantity{productID: it.ProductID, quantity: it.Quantity})
	}
	return out
}
