package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/topup-store/internal/domain/ledger"
	"github.com/xenking/topup-store/internal/domain/order"
	"github.com/xenking/topup-store/internal/domain/pricing"
	"github.com/xenking/topup-store/internal/domain/product"
	"github.com/xenking/topup-store/internal/domain/wallet"
)

// Error codes exposed to API clients.
const (
	CodeValidationFailed = "ValidationFailed"
	CodeInvalidPromocode = "InvalidPromocode"
	CodePaymentFailed    = "PaymentFailed"
	CodeInvalidStatus    = "InvalidStatus"
	CodeNotFound         = "NotFound"
	CodeUnauthorized     = "Unauthorized"
	CodeForbidden        = "Forbidden"
	CodeInternalError    = "InternalError"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders a structured API error.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, r, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps domain errors from checkout and admin flows onto the
// API error taxonomy. Unknown errors are logged and hidden behind a generic
// InternalError.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		puErr *pricing.PromocodeUnavailableError
		ibErr *wallet.InsufficientBalanceError
	)

	switch {
	case errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrUnknownPaymentMethod),
		errors.Is(err, order.ErrMissingReceipt),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, wallet.ErrNonPositiveAmount),
		errors.Is(err, wallet.ErrUnknownTopupMethod),
		errors.Is(err, wallet.ErrMissingReceiptForTop):
		writeError(w, r, http.StatusBadRequest, CodeValidationFailed, err.Error())

	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrProductUnavailable):
		writeError(w, r, http.StatusUnprocessableEntity, CodeValidationFailed, "product is not available")

	case errors.As(err, &puErr):
		// Deliberately generic: remaining-slot counts and expiry details
		// would let clients scrape promotion state.
		writeError(w, r, http.StatusUnprocessableEntity, CodeInvalidPromocode, "promocode not available")

	case errors.As(err, &ibErr):
		writeError(w, r, http.StatusPaymentRequired, CodePaymentFailed, ibErr.Error())

	case errors.Is(err, wallet.ErrNotFound):
		writeError(w, r, http.StatusPaymentRequired, CodePaymentFailed, "wallet account not found")

	case errors.Is(err, order.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, CodeNotFound, err.Error())

	case errors.Is(err, order.ErrInvalidStatus):
		writeError(w, r, http.StatusUnprocessableEntity, CodeInvalidStatus, err.Error())

	case errors.Is(err, order.ErrStatusConflict), errors.Is(err, ledger.ErrNotPending):
		writeError(w, r, http.StatusConflict, CodeInvalidStatus, err.Error())

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, CodeInternalError, "internal error")
	}
}
