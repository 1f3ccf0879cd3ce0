package httppresentation

import (
	"errors"
	"io"
	"net/http"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

// handlePaymentWebhook acknowledges every verified event it could settle,
// anomalies included. Only failures worth a provider retry get a 5xx.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	logger := logctx.FromOr(r.Context(), h.log)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		logger.Warn("webhook_body_unreadable", observability.F("error", err))
		writeError(w, http.StatusBadRequest, "BODY_UNREADABLE", errors.New("could not read request body"))
		return
	}

	res, err := h.deps.Webhooks.Process(r.Context(), payload, r.Header.Get(gateway.SignatureHeader))
	switch {
	case err == nil:
	case errors.Is(err, dompayment.ErrSignatureInvalid):
		writeError(w, http.StatusBadRequest, "SIGNATURE_INVALID", dompayment.ErrSignatureInvalid)
		return
	case errors.Is(err, dompayment.ErrMalformedEvent):
		writeError(w, http.StatusBadRequest, "EVENT_MALFORMED", dompayment.ErrMalformedEvent)
		return
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", errors.New("webhook processing failed"))
		return
	}

	logger.Debug("webhook_acknowledged",
		observability.F("event_id", res.EventID),
		observability.F("outcome", string(res.Outcome)),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
