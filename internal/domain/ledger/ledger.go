// Package ledger defines the append-only log of wallet balance changes.
// Completed entries are immutable: corrections are new entries (a refund is
// appended, the original payment is never edited).
package ledger

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// EntryType classifies what moved the balance.
type EntryType string

const (
	EntryTopup           EntryType = "topup"
	EntryPayment         EntryType = "payment"
	EntryRefund          EntryType = "refund"
	EntryAdminAdjustment EntryType = "admin_adjustment"
)

// EntryStatus is the lifecycle state of a ledger entry. Only pending entries
// may transition (to completed or cancelled); completed entries are final.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
	StatusCancelled EntryStatus = "cancelled"
)

var (
	// ErrNotFound is returned when no entry exists for the given id.
	ErrNotFound = errors.New("ledger entry not found")
	// ErrNotPending is returned when an approval-flow operation targets an
	// entry that already left the pending state.
	ErrNotPending = errors.New("ledger entry is not pending")
)

// Entry is one immutable record of a balance change. Amount is signed:
// negative for payments, positive for top-ups and refunds. ResultingBalance
// holds the wallet balance right after the change was applied; it is zero for
// entries that have not completed.
type Entry struct {
	ID               string
	UserID           string
	Type             EntryType
	Amount           decimal.Decimal
	ResultingBalance decimal.Decimal
	Status           EntryStatus
	OrderID          string
	PaymentMethod    string
	ReceiptURL       string
	CreatedAt        time.Time
}

// TopupRequest is a customer's ask to add funds, credited only after an
// administrator approves the attached payment proof.
type TopupRequest struct {
	UserID        string
	Amount        decimal.Decimal
	PaymentMethod string
	ReceiptURL    string
}

// Repository exposes read access and the pending-topup intake. There is
// deliberately no update or delete operation for completed entries; balance
// moving appends happen inside the wallet store's transactions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Entry, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error)
	// SumCompletedForUser returns the signed sum of all completed entries,
	// used to verify the reconciliation invariant against the wallet balance.
	SumCompletedForUser(ctx context.Context, userID string) (decimal.Decimal, error)
	CreateTopupRequest(ctx context.Context, req TopupRequest) (*Entry, error)
}
