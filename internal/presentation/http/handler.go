package httppresentation

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
	appdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/application/discount"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxJSONBody          = 1 << 20
	maxWebhookBody       = 1 << 20
)

type OrderQueries interface {
	Get(ctx context.Context, orderID string) (*domorder.Order, error)
	ListByCustomer(ctx context.Context, userID string) ([]*domorder.Order, error)
}

type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) (apppayment.WebhookResult, error)
}

type CartService interface {
	Get(ctx context.Context, userID string) (*domcart.Cart, error)
	Add(ctx context.Context, cmd appcart.AddItemInput) (*domcart.Cart, error)
	Update(ctx context.Context, cmd appcart.UpdateItemInput) (*domcart.Cart, error)
	Remove(ctx context.Context, userID, productID string) (*domcart.Cart, error)
}

type TokenParser interface {
	ParseBearer(header string) (auth.Identity, error)
}

// Deps lists what the router serves. Metrics is mounted on /metrics when set.
// CORSOrigins enables browser access from those origins.
type Deps struct {
	CreateOrder    application.UseCase[apporder.CreateOrderInput, *apporder.CreateOrderResult]
	UpdateStatus   application.UseCase[apporder.UpdateStatusInput, *domorder.Order]
	Orders         OrderQueries
	Webhooks       WebhookProcessor
	Carts          CartService
	CreateDiscount application.UseCase[appdiscount.CreateDiscountInput, *domdiscount.Discount]
	Auth           TokenParser
	Metrics        http.Handler
	CORSOrigins    []string
}

type Handler struct {
	deps Deps
	log  observability.Logger
	tel  observability.Observability
}

func NewHandler(deps Deps, logger observability.Logger, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	if logger == nil {
		logger = tel.Logger()
	}
	return &Handler{
		deps: deps,
		log:  logger.With(observability.F("component", componentHTTPHandler)),
		tel:  tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(h.deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", headerRequestID},
			ExposedHeaders: []string{headerRequestID},
			MaxAge:         600,
		}))
	}

	h.handle(r, http.MethodGet, "/health", h.handleHealth)
	if h.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.deps.Metrics)
	}

	// Signed by the provider, not by a user token.
	h.handle(r, http.MethodPost, "/webhooks/payment", h.handlePaymentWebhook)

	h.handle(r, http.MethodPost, "/orders", h.requireUser(h.handleCreateOrder))
	h.handle(r, http.MethodGet, "/orders", h.requireUser(h.handleListOrders))
	h.handle(r, http.MethodGet, "/orders/{id}", h.requireUser(h.handleGetOrder))
	h.handle(r, http.MethodPut, "/orders/{id}/status", h.requireAdmin(h.handleUpdateStatus))

	h.handle(r, http.MethodGet, "/cart", h.requireUser(h.handleGetCart))
	h.handle(r, http.MethodPost, "/cart/items", h.requireUser(h.handleAddCartItem))
	h.handle(r, http.MethodPut, "/cart/items/{productID}", h.requireUser(h.handleUpdateCartItem))
	h.handle(r, http.MethodDelete, "/cart/items/{productID}", h.requireUser(h.handleRemoveCartItem))

	h.handle(r, http.MethodPost, "/discounts", h.requireAdmin(h.handleCreateDiscount))

	return r
}

// handle wraps a route as Trace → request logger → metrics → access log → handler.
func (h *Handler) handle(r chi.Router, method, route string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			h.tel,
		)(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	r.Method(method, route, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("minishop.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		template := routeFromContext(parentCtx)
		if template == "unknown" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			r.Method+" "+template,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctxWithSpan))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

// withHTTPMetrics records request count and latency on instruments registered at startup.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.tel.Metrics().Counter(observability.MHTTPRequests).Add(1, labels...)
		h.tel.Metrics().Histogram(observability.MHTTPRequestDuration).Observe(time.Since(start).Seconds(), labels...)
	})
}

type routeKey struct{}

// contextWithRoute stores the route template so metrics and logs stay low-cardinality.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && strings.TrimSpace(route) != "" {
		return route
	}
	return "unknown"
}
