package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderUpdateStatus = "order.update_status"

type UpdateStatusInput struct {
	OrderID string
	Status  string
	Reason  string
}

// UpdateStatusUseCase is the administrative status change. Losing a race against
// a webhook surfaces as ErrConflict and changes nothing.
type UpdateStatusUseCase struct {
	orders    domain.Repository
	lifecycle *Lifecycle
	ins       application.Instruments
}

var _ application.UseCase[UpdateStatusInput, *domain.Order] = (*UpdateStatusUseCase)(nil)

func NewUpdateStatusUseCase(orders domain.Repository, lifecycle *Lifecycle, tel observability.Observability) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{
		orders:    orders,
		lifecycle: lifecycle,
		ins:       application.NewInstruments(tel, orderService),
	}
}

func (uc *UpdateStatusUseCase) Execute(ctx context.Context, cmd UpdateStatusInput) (_ *domain.Order, err error) {
	ctx, run := uc.ins.Begin(ctx, useCaseOrderUpdateStatus, "UpdateOrderStatus",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.target_status", cmd.Status),
	)
	defer func() { run.End(err) }()

	if cmd.OrderID == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.Validation("order id is required")
	}
	to, ok := domain.ParseStatus(cmd.Status)
	if !ok {
		run.Fail("STATUS_UNKNOWN")
		return nil, application.Validation(fmt.Sprintf("unknown status %q", cmd.Status))
	}

	current, err := uc.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return nil, ErrNotFound
		}
		run.Fail("ORDER_LOOKUP_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "admin"
	}
	updated, err := uc.lifecycle.Transition(ctx, current, to, reason)
	switch {
	case err == nil:
		run.Annotate(
			observability.F("from", string(current.Status)),
			observability.F("to", string(updated.Status)),
		)
		return updated, nil
	case errors.Is(err, ErrInvalidTransition):
		run.Fail("INVALID_TRANSITION")
	case errors.Is(err, ErrConflict):
		run.Fail("STATUS_CONFLICT")
	default:
		run.Fail("STATUS_WRITE_FAILED")
	}
	return nil, err
}
