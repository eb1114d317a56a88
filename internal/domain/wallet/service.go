package wallet

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/ledger"
)

// Validation errors for topup requests.
var (
	ErrNonPositiveAmount    = errors.New("amount must be greater than 0")
	ErrUnknownTopupMethod   = errors.New("unknown topup payment method")
	ErrMissingReceiptForTop = errors.New("receipt reference required for receipt topups")
)

// Notifier receives best-effort alerts about topup requests. Implementations
// must not block; failures never propagate back here.
type Notifier interface {
	TopupRequested(e *ledger.Entry)
}

// ReconciliationReport compares a wallet balance against the replay of its
// completed ledger entries.
type ReconciliationReport struct {
	UserID      string
	Balance     decimal.Decimal
	LedgerSum   decimal.Decimal
	Balanced    bool
	Discrepancy decimal.Decimal
}

// Service wraps the wallet store with the customer-facing top-up flow and
// reconciliation checks. Order payments go through the store directly via the
// order coordinator.
type Service struct {
	store    Store
	entries  ledger.Repository
	notifier Notifier
}

// NewService creates a wallet Service.
func NewService(store Store, entries ledger.Repository, notifier Notifier) *Service {
	return &Service{store: store, entries: entries, notifier: notifier}
}

// Balance returns the user's account, creating it lazily on first access.
func (s *Service) Balance(ctx context.Context, userID string) (*Account, error) {
	return s.store.GetOrCreate(ctx, userID)
}

// Transactions returns a page of the user's ledger, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit, offset int) ([]ledger.Entry, error) {
	return s.entries.ListForUser(ctx, userID, limit, offset)
}

// RequestTopup records a pending topup. The balance is only credited once an
// administrator approves the request.
func (s *Service) RequestTopup(ctx context.Context, req ledger.TopupRequest) (*ledger.Entry, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	switch req.PaymentMethod {
	case "receipt":
		if req.ReceiptURL == "" {
			return nil, ErrMissingReceiptForTop
		}
	case "external":
	default:
		return nil, ErrUnknownTopupMethod
	}

	// The account must exist before its first credit so approval can rely on
	// a plain conditional update.
	if _, err := s.store.GetOrCreate(ctx, req.UserID); err != nil {
		return nil, errors.Wrap(err, "ensure account")
	}

	entry, err := s.entries.CreateTopupRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "create topup request")
	}

	if s.notifier != nil {
		s.notifier.TopupRequested(entry)
	}
	return entry, nil
}

// ApproveTopup credits the wallet for a pending topup entry.
func (s *Service) ApproveTopup(ctx context.Context, entryID string) (*ledger.Entry, error) {
	return s.store.ApproveTopup(ctx, entryID)
}

// RejectTopup cancels a pending topup entry.
func (s *Service) RejectTopup(ctx context.Context, entryID string) error {
	return s.store.RejectTopup(ctx, entryID)
}

// Reconcile checks the reconciliation invariant for one user: the account
// balance must equal the signed sum of completed ledger entries.
func (s *Service) Reconcile(ctx context.Context, userID string) (*ReconciliationReport, error) {
	acc, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load account")
	}
	sum, err := s.entries.SumCompletedForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "sum ledger")
	}
	return &ReconciliationReport{
		UserID:      userID,
		Balance:     acc.Balance,
		LedgerSum:   sum,
		Balanced:    acc.Balance.Equal(sum),
		Discrepancy: acc.Balance.Sub(sum),
	}, nil
}
