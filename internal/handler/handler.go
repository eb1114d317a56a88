package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/topup-store/internal/domain/ledger"
	"github.com/xenking/topup-store/internal/domain/order"
	"github.com/xenking/topup-store/internal/domain/product"
	"github.com/xenking/topup-store/internal/domain/wallet"
)

// OrderService is the checkout surface the handler consumes.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	SetStatus(ctx context.Context, id string, to order.Status) (*order.Order, error)
}

// WalletService is the wallet surface the handler consumes.
type WalletService interface {
	Balance(ctx context.Context, userID string) (*wallet.Account, error)
	Transactions(ctx context.Context, userID string, limit, offset int) ([]ledger.Entry, error)
	RequestTopup(ctx context.Context, req ledger.TopupRequest) (*ledger.Entry, error)
	ApproveTopup(ctx context.Context, entryID string) (*ledger.Entry, error)
	RejectTopup(ctx context.Context, entryID string) error
	Reconcile(ctx context.Context, userID string) (*wallet.ReconciliationReport, error)
}

// Handler exposes the storefront HTTP API, delegating all business logic to
// the injected services.
type Handler struct {
	orders   OrderService
	wallets  WalletService
	products product.Repository
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(orders OrderService, wallets WalletService, products product.Repository) *Handler {
	return &Handler{
		orders:   orders,
		wallets:  wallets,
		products: products,
	}
}

// Routes registers all API routes on the given router. Authentication
// middleware is expected to run before these handlers.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.listProducts)

	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.With(RequireAdmin).Patch("/orders/{id}/status", h.setOrderStatus)

	r.Get("/wallet", h.getWallet)
	r.Get("/wallet/transactions", h.listTransactions)
	r.Get("/wallet/reconcile", h.reconcileWallet)
	r.Post("/wallet/topups", h.createTopup)
	r.With(RequireAdmin).Post("/wallet/topups/{id}/approve", h.approveTopup)
	r.With(RequireAdmin).Post("/wallet/topups/{id}/reject", h.rejectTopup)
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("encode response", zap.Error(err))
	}
}

// decodeJSON decodes the request body into v, limiting its size.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
