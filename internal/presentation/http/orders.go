package httppresentation

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type createOrderRequest struct {
	Address      string `json:"address"`
	DiscountCode string `json:"discount_code,omitempty"`
}

type createOrderResponse struct {
	OrderID    string `json:"order_id"`
	SessionURL string `json:"session_url"`
	Total      int64  `json:"total"`
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Size      string `json:"size,omitempty"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id"`
	Items            []orderItemResponse `json:"items"`
	ShippingAddress  string              `json:"shipping_address"`
	Subtotal         int64               `json:"subtotal"`
	ShippingCost     int64               `json:"shipping_cost"`
	Tax              int64               `json:"tax"`
	DiscountAmount   int64               `json:"discount_amount"`
	Total            int64               `json:"total"`
	DiscountCode     string              `json:"discount_code,omitempty"`
	PaymentSessionID string              `json:"payment_session_id,omitempty"`
	Status           domorder.Status     `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse(it))
	}
	return orderResponse{
		ID:               o.ID,
		UserID:           o.UserID,
		Items:            items,
		ShippingAddress:  o.ShippingAddress,
		Subtotal:         o.Subtotal(),
		ShippingCost:     o.ShippingCost,
		Tax:              o.Tax,
		DiscountAmount:   o.DiscountAmount,
		Total:            o.Total,
		DiscountCode:     o.DiscountCode,
		PaymentSessionID: o.PaymentSessionID,
		Status:           o.Status,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// handleCreateOrder checks out the caller's stored cart. The cart itself is
// cleared later, when the payment webhook confirms the order.
func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	user := identity(r)

	cart, err := h.deps.Carts.Get(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]apporder.ItemInput, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, apporder.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, Size: it.Size})
	}

	result, err := h.deps.CreateOrder.Execute(r.Context(), apporder.CreateOrderInput{
		UserID:       user.UserID,
		Items:        items,
		Address:      req.Address,
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:    result.OrderID,
		SessionURL: result.SessionURL,
		Total:      result.Total,
	})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.deps.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	user := identity(r)
	if !user.IsAdmin() && o.UserID != user.UserID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", errors.New("order belongs to another customer"))
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// handleListOrders lists the caller's orders; admins may pass ?customer= for anyone.
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	user := identity(r)
	customer := r.URL.Query().Get("customer")
	if customer == "" {
		customer = user.UserID
	}
	if customer != user.UserID && !user.IsAdmin() {
		writeError(w, http.StatusForbidden, "FORBIDDEN", errForbidden)
		return
	}

	list, err := h.deps.Orders.ListByCustomer(r.Context(), customer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	o, err := h.deps.UpdateStatus.Execute(r.Context(), apporder.UpdateStatusInput{
		OrderID: chi.URLParam(r, "id"),
		Status:  req.Status,
		Reason:  req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
