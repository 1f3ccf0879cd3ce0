package httppresentation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appcart "github.com/Zhima-Mochi/minishop-checkout/internal/application/cart"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
}

type updateCartItemRequest struct {
	Quantity int    `json:"quantity"`
	Size     string `json:"size,omitempty"`
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Carts.Get(r.Context(), identity(r).UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.Carts.Add(r.Context(), appcart.AddItemInput{
		UserID:    identity(r).UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      req.Size,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	c, err := h.deps.Carts.Update(r.Context(), appcart.UpdateItemInput{
		UserID:    identity(r).UserID,
		ProductID: chi.URLParam(r, "productID"),
		Size:      req.Size,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Carts.Remove(r.Context(), identity(r).UserID, chi.URLParam(r, "productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
