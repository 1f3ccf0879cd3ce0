package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// SignatureHeader carries `t=<unix seconds>,v1=<hex hmac>`; several v1 entries
// may be present while the provider rotates secrets.
const SignatureHeader = "Payment-Signature"

const (
	eventSessionCompleted      = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	eventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	eventSessionExpired        = "checkout.session.expired"
)

// VerifySignature checks the HMAC-SHA256 of "<t>.<payload>" and rejects
// timestamps outside the configured tolerance to limit replays.
func (c *Client) VerifySignature(payload []byte, header string) error {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := c.now().Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}
	if age > c.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", payment.ErrSignatureInvalid)
	}

	expected := computeSignature(c.secret, ts, payload)
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", payment.ErrSignatureInvalid)
}

// Sign builds a header value for payload as the provider would. Used by tests
// and local tooling that replays events.
func Sign(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature([]byte(secret), ts, payload)))
}

func computeSignature(secret []byte, ts int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var (
		ts   int64
		sigs [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", payment.ErrSignatureInvalid)
			}
			ts = n
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: header missing timestamp or signature", payment.ErrSignatureInvalid)
	}
	return ts, sigs, nil
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string            `json:"id"`
			ClientReferenceID string            `json:"client_reference_id"`
			PaymentStatus     string            `json:"payment_status"`
			Metadata          map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent maps a provider event onto the neutral payment.Event. Only
// session events are classified; everything else is KindUnknown.
func (c *Client) ParseEvent(payload []byte) (payment.Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return payment.Event{}, fmt.Errorf("%w: %w", payment.ErrMalformedEvent, err)
	}
	if env.ID == "" || env.Type == "" {
		return payment.Event{}, fmt.Errorf("%w: id and type are required", payment.ErrMalformedEvent)
	}

	obj := env.Data.Object
	evt := payment.Event{
		ID:              env.ID,
		Type:            env.Type,
		Kind:            classify(env.Type, obj.PaymentStatus),
		SessionID:       obj.ID,
		OrderID:         obj.Metadata["order_id"],
		ClientReference: obj.ClientReferenceID,
	}
	if evt.Kind != payment.KindUnknown && evt.SessionID == "" && evt.OrderID == "" && evt.ClientReference == "" {
		return payment.Event{}, fmt.Errorf("%w: event carries no session or order reference", payment.ErrMalformedEvent)
	}
	return evt, nil
}

func classify(eventType, paymentStatus string) payment.EventKind {
	switch eventType {
	case eventSessionCompleted:
		// Delayed payment methods complete the session unpaid and settle later
		// through an async_payment_* event.
		if paymentStatus == "paid" || paymentStatus == "no_payment_required" {
			return payment.KindPaymentSucceeded
		}
		return payment.KindUnknown
	case eventAsyncPaymentSucceeded:
		return payment.KindPaymentSucceeded
	case eventAsyncPaymentFailed, eventSessionExpired:
		return payment.KindPaymentFailed
	}
	return payment.KindUnknown
}
