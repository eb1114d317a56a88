package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/ledger"
)

const (
	entryColumns = `id, user_id, type, amount, resulting_balance, status,
		COALESCE(order_id, ''), COALESCE(payment_method, ''), COALESCE(receipt_url, ''), created_at`

	getEntrySQL = `SELECT ` + entryColumns + ` FROM wallet_transactions WHERE id = $1`

	listEntriesSQL = `SELECT ` + entryColumns + ` FROM wallet_transactions
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`

	sumCompletedSQL = `SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions
		WHERE user_id = $1 AND status = 'completed'`

	createTopupRequestSQL = `INSERT INTO wallet_transactions
		(id, user_id, type, amount, status, payment_method, receipt_url)
		VALUES ($1, $2, 'topup', $3, 'pending', $4, $5)
		RETURNING created_at`
)

var _ ledger.Repository = (*LedgerRepository)(nil)

// LedgerRepository implements ledger.Repository backed by PostgreSQL. It is
// read-mostly on purpose: completed entries are only ever written inside the
// wallet store's transactions.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository returns a LedgerRepository that uses the given pool.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// GetByID looks up a single entry.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*ledger.Entry, error) {
	rows, err := r.pool.Query(ctx, getEntrySQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding ledger entry %q: %w", id, err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanEntry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("finding ledger entry %q: %w", id, err)
	}
	return &e, nil
}

// ListForUser returns a page of entries, newest first.
func (r *LedgerRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]ledger.Entry, error) {
	rows, err := r.pool.Query(ctx, listEntriesSQL, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing ledger for %q: %w", userID, err)
	}

	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("listing ledger for %q: %w", userID, err)
	}
	return entries, nil
}

// SumCompletedForUser returns the signed sum of completed entries.
func (r *LedgerRepository) SumCompletedForUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, sumCompletedSQL, userID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing ledger for %q: %w", userID, err)
	}
	return sum, nil
}

// CreateTopupRequest appends a pending topup entry.
func (r *LedgerRepository) CreateTopupRequest(ctx context.Context, req ledger.TopupRequest) (*ledger.Entry, error) {
	e := &ledger.Entry{
		ID:            newEntryID(),
		UserID:        req.UserID,
		Type:          ledger.EntryTopup,
		Amount:        req.Amount,
		Status:        ledger.StatusPending,
		PaymentMethod: req.PaymentMethod,
		ReceiptURL:    req.ReceiptURL,
	}
	err := r.pool.QueryRow(ctx, createTopupRequestSQL,
		e.ID, e.UserID, e.Amount, nullable(e.PaymentMethod), nullable(e.ReceiptURL),
	).Scan(&e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating topup request for %q: %w", req.UserID, err)
	}
	return e, nil
}

func scanEntry(row pgx.CollectableRow) (ledger.Entry, error) {
	var e ledger.Entry
	err := row.Scan(
		&e.ID, &e.UserID, &e.Type, &e.Amount, &e.ResultingBalance, &e.Status,
		&e.OrderID, &e.PaymentMethod, &e.ReceiptURL, &e.CreatedAt,
	)
	return e, err
}

// newEntryID returns a time-ordered unique id for ledger entries.
func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
