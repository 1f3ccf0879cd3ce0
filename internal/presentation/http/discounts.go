package httppresentation

import (
	"net/http"
	"time"

	appdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/application/discount"
	domdiscount "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
)

type createDiscountRequest struct {
	Code        string     `json:"code"`
	Type        string     `json:"type"`
	Value       int64      `json:"value"`
	Active      *bool      `json:"active,omitempty"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
	MinPurchase int64      `json:"min_purchase,omitempty"`
	ProductIDs  []string   `json:"product_ids,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	UsageLimit  int        `json:"usage_limit,omitempty"`
}

type discountResponse struct {
	Code        string     `json:"code"`
	Type        string     `json:"type"`
	Value       int64      `json:"value"`
	Active      bool       `json:"active"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
	MinPurchase int64      `json:"min_purchase"`
	ProductIDs  []string   `json:"product_ids,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	UsageLimit  int        `json:"usage_limit"`
	TimesUsed   int        `json:"times_used"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toDiscountResponse(d *domdiscount.Discount) discountResponse {
	return discountResponse{
		Code:        d.Code,
		Type:        string(d.Type),
		Value:       d.Value,
		Active:      d.Active,
		ValidFrom:   timePtr(d.ValidFrom),
		ValidTo:     timePtr(d.ValidTo),
		MinPurchase: d.MinPurchase,
		ProductIDs:  d.ProductIDs,
		Categories:  d.Categories,
		UsageLimit:  d.UsageLimit,
		TimesUsed:   d.TimesUsed,
		CreatedAt:   d.CreatedAt,
	}
}

func (h *Handler) handleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req createDiscountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	d, err := h.deps.CreateDiscount.Execute(r.Context(), appdiscount.CreateDiscountInput{
		Code:        req.Code,
		Type:        req.Type,
		Value:       req.Value,
		Active:      req.Active,
		ValidFrom:   derefTime(req.ValidFrom),
		ValidTo:     derefTime(req.ValidTo),
		MinPurchase: req.MinPurchase,
		ProductIDs:  req.ProductIDs,
		Categories:  req.Categories,
		UsageLimit:  req.UsageLimit,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDiscountResponse(d))
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
