package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/auth"
	"github.com/xenking/topup-store/internal/domain/ledger"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type walletResponse struct {
	UserID            string      `json:"user_id"`
	Balance           json.Number `json:"balance"`
	TotalTopups       json.Number `json:"total_topups"`
	TotalSpent        json.Number `json:"total_spent"`
	LastTransactionAt *time.Time  `json:"last_transaction_at,omitempty"`
}

type entryResponse struct {
	ID               string      `json:"id"`
	Type             string      `json:"type"`
	Amount           json.Number `json:"amount"`
	ResultingBalance json.Number `json:"resulting_balance"`
	Status           string      `json:"status"`
	OrderID          string      `json:"order_id,omitempty"`
	PaymentMethod    string      `json:"payment_method,omitempty"`
	ReceiptURL       string      `json:"receipt_url,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

func toEntryResponse(e *ledger.Entry) entryResponse {
	return entryResponse{
		ID:               e.ID,
		Type:             string(e.Type),
		Amount:           json.Number(e.Amount.String()),
		ResultingBalance: json.Number(e.ResultingBalance.String()),
		Status:           string(e.Status),
		OrderID:          e.OrderID,
		PaymentMethod:    e.PaymentMethod,
		ReceiptURL:       e.ReceiptURL,
		CreatedAt:        e.CreatedAt,
	}
}

// getWallet handles GET /wallet.
func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	acc, err := h.wallets.Balance(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, walletResponse{
		UserID:            acc.UserID,
		Balance:           json.Number(acc.Balance.String()),
		TotalTopups:       json.Number(acc.TotalTopups.String()),
		TotalSpent:        json.Number(acc.TotalSpent.String()),
		LastTransactionAt: acc.LastTransactionAt,
	})
}

// listTransactions handles GET /wallet/transactions.
func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	limit := queryInt(r, "limit", defaultPageLimit)
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := h.wallets.Transactions(r.Context(), id.UserID, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]entryResponse, len(entries))
	for i := range entries {
		resp[i] = toEntryResponse(&entries[i])
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type topupRequest struct {
	Amount        json.Number `json:"amount"`
	PaymentMethod string      `json:"payment_method"`
	ReceiptURL    string      `json:"receipt_url,omitempty"`
}

// createTopup handles POST /wallet/topups.
func (h *Handler) createTopup(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	var req topupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidationFailed, "malformed request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeValidationFailed, "malformed amount")
		return
	}

	entry, err := h.wallets.RequestTopup(r.Context(), ledger.TopupRequest{
		UserID:        id.UserID,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		ReceiptURL:    req.ReceiptURL,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toEntryResponse(entry))
}

// approveTopup handles POST /wallet/topups/{id}/approve (admin only).
func (h *Handler) approveTopup(w http.ResponseWriter, r *http.Request) {
	entry, err := h.wallets.ApproveTopup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toEntryResponse(entry))
}

// rejectTopup handles POST /wallet/topups/{id}/reject (admin only).
func (h *Handler) rejectTopup(w http.ResponseWriter, r *http.Request) {
	if err := h.wallets.RejectTopup(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reconcileResponse struct {
	UserID      string      `json:"user_id"`
	Balance     json.Number `json:"balance"`
	LedgerSum   json.Number `json:"ledger_sum"`
	Balanced    bool        `json:"balanced"`
	Discrepancy json.Number `json:"discrepancy"`
}

// reconcileWallet handles GET /wallet/reconcile: verifies that the caller's
// balance equals the replay of their completed ledger entries.
func (h *Handler) reconcileWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	report, err := h.wallets.Reconcile(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, reconcileResponse{
		UserID:      report.UserID,
		Balance:     json.Number(report.Balance.String()),
		LedgerSum:   json.Number(report.LedgerSum.String()),
		Balanced:    report.Balanced,
		Discrepancy: json.Number(report.Discrepancy.String()),
	})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
