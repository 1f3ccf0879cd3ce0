package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	domproduct "github.com/Zhima-Mochi/minishop-checkout/internal/domain/product"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first match wins.
var errorMappings = []errorMapping{
	{application.ErrValidation, http.StatusBadRequest, "VALIDATION"},
	{apporder.ErrEmptyCart, http.StatusBadRequest, "EMPTY_CART"},
	{domcart.ErrInvalidQuantity, http.StatusBadRequest, "VALIDATION"},
	{domcart.ErrProductRequired, http.StatusBadRequest, "VALIDATION"},
	{domcart.ErrUserRequired, http.StatusBadRequest, "VALIDATION"},
	{domorder.ErrAddressRequired, http.StatusBadRequest, "VALIDATION"},
	{dompayment.ErrSignatureInvalid, http.StatusBadRequest, "SIGNATURE_INVALID"},
	{dompayment.ErrMalformedEvent, http.StatusBadRequest, "EVENT_MALFORMED"},
	{apporder.ErrOutOfStock, http.StatusConflict, "OUT_OF_STOCK"},
	{domproduct.ErrInsufficientStock, http.StatusConflict, "OUT_OF_STOCK"},
	{domorder.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{domorder.ErrConflict, http.StatusConflict, "CONFLICT"},
	{domdiscount.ErrConflict, http.StatusConflict, "DUPLICATE_CODE"},
	{domorder.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domproduct.ErrNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{domdiscount.ErrCodeNotFound, http.StatusUnprocessableEntity, "DISCOUNT_NOT_FOUND"},
	{domdiscount.ErrCodeExpired, http.StatusUnprocessableEntity, "DISCOUNT_EXPIRED"},
	{domdiscount.ErrUsageLimitReached, http.StatusUnprocessableEntity, "DISCOUNT_EXHAUSTED"},
	{domdiscount.ErrMinimumNotMet, http.StatusUnprocessableEntity, "DISCOUNT_MINIMUM_NOT_MET"},
	{domdiscount.ErrNotApplicable, http.StatusUnprocessableEntity, "DISCOUNT_NOT_APPLICABLE"},
	{domdiscount.ErrInvalid, http.StatusUnprocessableEntity, "DISCOUNT_INVALID"},
	{apporder.ErrPaymentGateway, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR"},
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// writeDomainError hides internal error text behind a generic message for 5xx.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, code, errors.New("internal error"))
		return
	}
	writeError(w, status, code, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", application.ErrValidation)
		}
		return fmt.Errorf("%w: %w", application.ErrValidation, err)
	}
	return nil
}
