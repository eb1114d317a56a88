package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/topup-store/internal/domain/auth"
	"github.com/xenking/topup-store/internal/domain/order"
)

type createOrderRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	Promocode     string `json:"promocode,omitempty"`
	PaymentMethod string `json:"payment_method"`
	ReceiptURL    string `json:"receipt_url,omitempty"`
}

type orderResponse struct {
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	ProductID      string      `json:"product_id"`
	Platform       string      `json:"platform"`
	ProductType    string      `json:"product_type"`
	Quantity       int         `json:"quantity"`
	UnitPrice      json.Number `json:"unit_price"`
	OriginalPrice  json.Number `json:"original_price"`
	DiscountAmount json.Number `json:"discount_amount"`
	FinalPrice     json.Number `json:"final_price"`
	Promocode      string      `json:"promocode,omitempty"`
	PaymentMethod  string      `json:"payment_method"`
	ReceiptURL     string      `json:"receipt_url,omitempty"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		OrderID:        o.ID,
		UserID:         o.UserID,
		ProductID:      o.ProductID,
		Platform:       o.Platform,
		ProductType:    o.ProductType,
		Quantity:       o.Quantity,
		UnitPrice:      json.Number(o.UnitPrice.String()),
		OriginalPrice:  json.Number(o.OriginalPrice.String()),
		DiscountAmount: json.Number(o.DiscountAmount.String()),
		FinalPrice:     json.Number(o.FinalPrice.String()),
		Promocode:      o.Promocode,
		PaymentMethod:  string(o.PaymentMethod),
		ReceiptURL:     o.ReceiptURL,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
	}
}

// createOrder handles POST /orders.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidationFailed, "malformed request body")
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:        id.UserID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Promocode:     req.Promocode,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		ReceiptURL:    req.ReceiptURL,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

// getOrder handles GET /orders/{id}. Customers see only their own orders;
// administrators see all.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if o.UserID != id.UserID && !id.IsAdmin() {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "order not found")
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// setOrderStatus handles PATCH /orders/{id}/status (admin only).
func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidationFailed, "malformed request body")
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.SetStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}
