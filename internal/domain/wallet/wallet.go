package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/ledger"
)

// ErrNotFound is returned when no wallet account exists for the user.
var ErrNotFound = errors.New("wallet account not found")

// InsufficientBalanceError indicates a debit larger than the current balance.
// It carries both sides so callers can surface the exact shortfall.
type InsufficientBalanceError struct {
	Have decimal.Decimal
	Need decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s", e.Have, e.Need)
}

// Shortfall returns how much is missing to cover the debit.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Need.Sub(e.Have)
}

// Account is a per-user wallet. Balance never goes negative and always equals
// the signed sum of the user's completed ledger entries.
type Account struct {
	UserID            string
	Balance           decimal.Decimal
	TotalTopups       decimal.Decimal
	TotalSpent        decimal.Decimal
	LastTransactionAt *time.Time
	CreatedAt         time.Time
}

// Store mutates wallet accounts. Every balance change is an atomic
// conditional update at the storage layer, paired in the same database
// transaction with exactly one completed ledger entry whose ResultingBalance
// is taken from the update's returned balance. Read-balance-then-write from
// application code is not part of this contract on purpose.
type Store interface {
	// GetOrCreate lazily initializes an account with zero balance.
	GetOrCreate(ctx context.Context, userID string) (*Account, error)

	// Debit atomically withdraws amount (> 0) if the balance covers it,
	// updating balance and TotalSpent together. Fails with ErrNotFound or
	// *InsufficientBalanceError; the balance is untouched on failure.
	Debit(ctx context.Context, userID string, amount decimal.Decimal, orderID string) (*ledger.Entry, error)

	// Credit atomically deposits amount (> 0), creating the account if
	// needed. TotalTopups is increased for topup credits.
	Credit(ctx context.Context, userID string, amount decimal.Decimal, entryType ledger.EntryType, orderID string) (*ledger.Entry, error)

	// ApproveTopup credits the wallet for a pending topup entry and flips the
	// entry to completed, atomically. Fails with ledger.ErrNotFound or
	// ledger.ErrNotPending.
	ApproveTopup(ctx context.Context, entryID string) (*ledger.Entry, error)

	// RejectTopup cancels a pending topup entry without moving money.
	RejectTopup(ctx context.Context, entryID string) error
}
