package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService    = "payment-service"
	useCaseWebhook    = "payment.webhook"
	reasonPaid        = "payment_succeeded"
	reasonFailed      = "payment_failed"
	reasonExhausted   = "discount_exhausted"
	anomalyLogMessage = "webhook_anomaly"
)

var ErrRepository = errors.New("payment: repository failure")

// CartClearer empties a user's cart once their payment is confirmed.
type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

type Outcome string

const (
	// OutcomeProcessed means the event changed order state.
	OutcomeProcessed Outcome = "processed"
	// OutcomeDuplicate means the order already reflected the event.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeAnomaly is acknowledged but needs a human look, e.g. payment for a cancelled order.
	OutcomeAnomaly Outcome = "anomaly"
	// OutcomeIgnored covers event types this service does not act on.
	OutcomeIgnored Outcome = "ignored"
)

type WebhookResult struct {
	EventID   string
	EventType string
	OrderID   string
	Outcome   Outcome
	Status    domorder.Status
	Reason    string
}

// WebhookProcessor applies verified payment notifications. Deliveries are
// at-least-once and unordered, so every effect is gated by the order's current
// status rather than by event ids.
type WebhookProcessor struct {
	gateway   dompayment.Gateway
	orders    domorder.Repository
	discounts domdiscount.Repository
	lifecycle *apporder.Lifecycle
	carts     CartClearer
	events    observability.Counter // webhook_events_total{type,outcome}
	ins       application.Instruments
}

func NewWebhookProcessor(
	gateway dompayment.Gateway,
	orders domorder.Repository,
	discounts domdiscount.Repository,
	lifecycle *apporder.Lifecycle,
	carts CartClearer,
	tel observability.Observability,
) *WebhookProcessor {
	metrics := observability.NopMetrics()
	if tel != nil {
		metrics = tel.Metrics()
	}
	return &WebhookProcessor{
		gateway:   gateway,
		orders:    orders,
		discounts: discounts,
		lifecycle: lifecycle,
		carts:     carts,
		events:    metrics.Counter(observability.MWebhookEvents),
		ins:       application.NewInstruments(tel, paymentService),
	}
}

// Process verifies and applies one delivery. A returned error means the provider
// should retry; every acknowledged delivery returns a result and nil.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (res WebhookResult, err error) {
	ctx, run := p.ins.Begin(ctx, useCaseWebhook, "HandlePaymentWebhook")
	defer func() {
		outcome := string(res.Outcome)
		if err != nil {
			outcome = "error"
		}
		eventType := res.EventType
		if eventType == "" {
			eventType = "unknown"
		}
		p.events.Add(1, observability.L("type", eventType), observability.L("outcome", outcome))
		run.Annotate(
			observability.F("event_id", res.EventID),
			observability.F("event_type", res.EventType),
			observability.F("order_id", res.OrderID),
			observability.F("webhook_outcome", outcome),
		)
		run.End(err)
	}()

	if err := p.gateway.VerifySignature(payload, signature); err != nil {
		run.Fail("SIGNATURE_INVALID")
		if !errors.Is(err, dompayment.ErrSignatureInvalid) {
			err = fmt.Errorf("%w: %w", dompayment.ErrSignatureInvalid, err)
		}
		return res, err
	}

	evt, err := p.gateway.ParseEvent(payload)
	if err != nil {
		run.Fail("EVENT_MALFORMED")
		if !errors.Is(err, dompayment.ErrMalformedEvent) {
			err = fmt.Errorf("%w: %w", dompayment.ErrMalformedEvent, err)
		}
		return res, err
	}
	res.EventID, res.EventType = evt.ID, evt.Type
	run.Span().SetAttributes(
		attribute.String("webhook.event_id", evt.ID),
		attribute.String("webhook.event_type", evt.Type),
	)

	if evt.Kind != dompayment.KindPaymentSucceeded && evt.Kind != dompayment.KindPaymentFailed {
		res.Outcome = OutcomeIgnored
		run.Status("EVENT_IGNORED")
		return res, nil
	}

	o, err := p.resolveOrder(ctx, evt)
	if err != nil {
		if errors.Is(err, domorder.ErrNotFound) {
			return p.anomaly(run, res, "order_not_found"), nil
		}
		run.Fail("ORDER_LOOKUP_FAILED")
		return res, err
	}
	res.OrderID, res.Status = o.ID, o.Status
	run.Span().SetAttributes(attribute.String("order.id", o.ID))

	if evt.SessionID != "" && o.PaymentSessionID != "" && evt.SessionID != o.PaymentSessionID {
		return p.anomaly(run, res, "session_mismatch"), nil
	}

	if evt.Kind == dompayment.KindPaymentSucceeded {
		return p.confirm(ctx, run, res, o)
	}
	return p.cancel(ctx, run, res, o)
}

// confirm lets the Pending -> Confirmed write decide which delivery wins. Only
// the winner counts the discount use and clears the cart, so concurrent copies
// of one event cannot undo each other.
func (p *WebhookProcessor) confirm(ctx context.Context, run *application.Run, res WebhookResult, o *domorder.Order) (WebhookResult, error) {
	switch o.Status {
	case domorder.StatusPending:
	case domorder.StatusCancelled:
		return p.anomaly(run, res, "paid_after_cancel"), nil
	default:
		res.Outcome = OutcomeDuplicate
		run.Status("ALREADY_CONFIRMED")
		return res, nil
	}

	confirmed, err := p.lifecycle.Transition(ctx, o, domorder.StatusConfirmed, reasonPaid)
	if err != nil {
		if errors.Is(err, apporder.ErrConflict) {
			return p.lostRace(ctx, run, res, o.ID, domorder.StatusConfirmed)
		}
		run.Fail("ORDER_CONFIRM_FAILED")
		return res, err
	}
	res.Status = confirmed.Status

	if confirmed.DiscountCode != "" && p.discounts != nil {
		err := p.discounts.IncrementUsage(ctx, confirmed.DiscountCode)
		switch {
		case err == nil:
		case errors.Is(err, domdiscount.ErrUsageLimitReached):
			revoked, rerr := p.lifecycle.Revoke(ctx, confirmed, reasonExhausted)
			if rerr != nil && !errors.Is(rerr, apporder.ErrConflict) {
				run.Fail("ORDER_CANCEL_FAILED")
				return res, rerr
			}
			if revoked != nil {
				res.Status = revoked.Status
			}
			return p.anomaly(run, res, reasonExhausted), nil
		case errors.Is(err, domdiscount.ErrCodeNotFound):
			run.Logger().Warn("discount_missing_at_confirmation",
				observability.F("order_id", o.ID),
				observability.F("discount_code", o.DiscountCode),
			)
		default:
			// The order is already confirmed, so a retried delivery would be a
			// duplicate. Leave the miscount for an operator.
			run.Logger().Error("discount_usage_count_failed",
				observability.F("order_id", o.ID),
				observability.F("discount_code", o.DiscountCode),
				observability.F("error", err),
			)
		}
	}

	if p.carts != nil {
		if err := p.carts.Clear(ctx, o.UserID); err != nil {
			run.Logger().Warn("cart_clear_failed",
				observability.F("order_id", o.ID),
				observability.F("user_id", o.UserID),
				observability.F("error", err),
			)
		}
	}

	res.Outcome = OutcomeProcessed
	return res, nil
}

// lostRace reports a delivery whose conditional write was beaten by another
// writer. Reaching the wanted status is a duplicate; anything else is an anomaly.
func (p *WebhookProcessor) lostRace(ctx context.Context, run *application.Run, res WebhookResult, orderID string, want domorder.Status) (WebhookResult, error) {
	current, err := p.orders.Get(ctx, orderID)
	if err != nil {
		run.Fail("ORDER_LOOKUP_FAILED")
		return res, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	res.Status = current.Status
	switch {
	case current.Status == want:
		res.Outcome = OutcomeDuplicate
		run.Status("STATUS_CONFLICT")
		return res, nil
	case want == domorder.StatusConfirmed && current.Status == domorder.StatusCancelled:
		return p.anomaly(run, res, "paid_after_cancel"), nil
	case want == domorder.StatusCancelled && current.Status == domorder.StatusConfirmed:
		return p.anomaly(run, res, "failed_after_payment"), nil
	}
	// Moved further along the lifecycle by someone else.
	res.Outcome = OutcomeDuplicate
	run.Status("STATUS_CONFLICT")
	return res, nil
}

func (p *WebhookProcessor) cancel(ctx context.Context, run *application.Run, res WebhookResult, o *domorder.Order) (WebhookResult, error) {
	switch o.Status {
	case domorder.StatusPending:
	case domorder.StatusCancelled:
		res.Outcome = OutcomeDuplicate
		run.Status("ALREADY_CANCELLED")
		return res, nil
	case domorder.StatusConfirmed:
		return p.anomaly(run, res, "failed_after_payment"), nil
	default:
		return p.anomaly(run, res, "failed_after_fulfilment"), nil
	}

	cancelled, err := p.lifecycle.Transition(ctx, o, domorder.StatusCancelled, reasonFailed)
	if err != nil {
		if errors.Is(err, apporder.ErrConflict) {
			return p.lostRace(ctx, run, res, o.ID, domorder.StatusCancelled)
		}
		run.Fail("ORDER_CANCEL_FAILED")
		return res, err
	}
	res.Status = cancelled.Status
	res.Outcome = OutcomeProcessed
	return res, nil
}

// resolveOrder prefers the order id carried in metadata, then the client
// reference, then the session id recorded at checkout.
func (p *WebhookProcessor) resolveOrder(ctx context.Context, evt dompayment.Event) (*domorder.Order, error) {
	for _, id := range []string{evt.OrderID, evt.ClientReference} {
		if id == "" {
			continue
		}
		o, err := p.orders.Get(ctx, id)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, domorder.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
	}
	if evt.SessionID == "" {
		return nil, domorder.ErrNotFound
	}
	o, err := p.orders.FindByPaymentSession(ctx, evt.SessionID)
	if err != nil && !errors.Is(err, domorder.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return o, err
}

func (p *WebhookProcessor) anomaly(run *application.Run, res WebhookResult, reason string) WebhookResult {
	res.Outcome = OutcomeAnomaly
	res.Reason = reason
	run.Status("ANOMALY_" + strings.ToUpper(reason))
	run.Logger().Warn(anomalyLogMessage,
		observability.F("reason", reason),
		observability.F("event_id", res.EventID),
		observability.F("event_type", res.EventType),
		observability.F("order_id", res.OrderID),
	)
	return res
}
