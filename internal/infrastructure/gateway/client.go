package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	sessionsPath     = "/v1/checkout/sessions"
	maxErrorBody     = 1 << 16
	defaultTimeout   = 10 * time.Second
	defaultTolerance = 5 * time.Minute
)

type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	// Timeout bounds a single HTTP exchange; callers add their own per-attempt deadline.
	Timeout            time.Duration
	SignatureTolerance time.Duration
	// BreakerFailures consecutive transient failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client talks to a hosted-checkout provider over JSON/HTTP and verifies its
// webhook signatures. Transient failures trip a circuit breaker so a provider
// outage fails checkouts fast instead of holding stock behind slow timeouts.
type Client struct {
	baseURL   string
	apiKey    string
	secret    []byte
	tolerance time.Duration
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[*payment.Session]
	now       func() time.Time
	log       observability.Logger
}

var _ payment.Gateway = (*Client)(nil)

func New(cfg Config, logger observability.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: base url is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("gateway: webhook secret is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SignatureTolerance <= 0 {
		cfg.SignatureTolerance = defaultTolerance
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	logger = logger.With(observability.F("component", "payment_gateway"))

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[*payment.Session](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, payment.ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_changed",
				observability.F("breaker", name),
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		secret:    []byte(cfg.WebhookSecret),
		tolerance: cfg.SignatureTolerance,
		http:      &http.Client{Timeout: cfg.Timeout},
		breaker:   breaker,
		now:       time.Now,
		log:       logger,
	}, nil
}

type lineItemBody struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

type sessionBody struct {
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	Currency          string            `json:"currency"`
	LineItems         []lineItemBody    `json:"line_items"`
	ShippingAmount    int64             `json:"shipping_amount"`
	TaxAmount         int64             `json:"tax_amount"`
	DiscountAmount    int64             `json:"discount_amount"`
	AmountTotal       int64             `json:"amount_total"`
	SuccessURL        string            `json:"success_url,omitempty"`
	CancelURL         string            `json:"cancel_url,omitempty"`
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession opens a hosted checkout session. Errors wrap payment.ErrUnavailable
// for transient conditions and payment.ErrRejected for requests the provider refused.
func (c *Client) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	session, err := c.breaker.Execute(func() (*payment.Session, error) {
		return c.createSession(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", payment.ErrUnavailable, err)
	}
	return session, err
}

func (c *Client) createSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	body := sessionBody{
		ClientReferenceID: req.OrderID,
		Metadata:          map[string]string{"order_id": req.OrderID, "customer_id": req.CustomerID},
		Currency:          req.Currency,
		LineItems:         make([]lineItemBody, 0, len(req.Items)),
		ShippingAmount:    req.ShippingCost,
		TaxAmount:         req.Tax,
		DiscountAmount:    req.DiscountAmount,
		AmountTotal:       req.Total,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
	}
	for _, it := range req.Items {
		body.LineItems = append(body.LineItems, lineItemBody(it))
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode session: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionsPath, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		sentinel := payment.ErrRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
			sentinel = payment.ErrUnavailable
		}
		return nil, fmt.Errorf("%w: status=%d body=%s", sentinel, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode session: %w", payment.ErrUnavailable, err)
	}
	if out.ID == "" || out.URL == "" {
		return nil, fmt.Errorf("%w: session response missing id or url", payment.ErrUnavailable)
	}
	return &payment.Session{ID: out.ID, URL: out.URL}, nil
}
