package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/ledger"
	"github.com/xenking/topup-store/internal/domain/wallet"
)

const (
	getOrCreateAccountSQL = `INSERT INTO wallet_accounts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, total_topups, total_spent, last_transaction_at, created_at`

	// Debit precondition lives in the WHERE clause: a matched row proves the
	// balance covered the amount at the moment of the update.
	debitAccountSQL = `UPDATE wallet_accounts
		SET balance = balance - $2,
			total_spent = total_spent + $2,
			last_transaction_at = now()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`

	creditAccountSQL = `UPDATE wallet_accounts
		SET balance = balance + $2,
			total_topups = total_topups + CASE WHEN $3 THEN $2 ELSE 0 END,
			last_transaction_at = now()
		WHERE user_id = $1
		RETURNING balance`

	selectBalanceSQL = `SELECT balance FROM wallet_accounts WHERE user_id = $1`

	insertEntrySQL = `INSERT INTO wallet_transactions
		(id, user_id, type, amount, resulting_balance, status, order_id, payment_method, receipt_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	lockPendingTopupSQL = `SELECT id, user_id, type, amount, status,
			COALESCE(payment_method, ''), COALESCE(receipt_url, ''), created_at
		FROM wallet_transactions WHERE id = $1 FOR UPDATE`

	completeTopupSQL = `UPDATE wallet_transactions
		SET status = 'completed', resulting_balance = $2
		WHERE id = $1 AND status = 'pending'`

	cancelTopupSQL = `UPDATE wallet_transactions
		SET status = 'cancelled'
		WHERE id = $1 AND status = 'pending'`
)

var _ wallet.Store = (*WalletStore)(nil)

// WalletStore implements wallet.Store backed by PostgreSQL. Each balance
// change and its ledger append commit as one transaction; the entry's
// resulting balance is the value RETURNING'd by the conditional update, never
// recomputed.
type WalletStore struct {
	pool *pgxpool.Pool
}

// NewWalletStore returns a WalletStore that uses the given pool.
func NewWalletStore(pool *pgxpool.Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// GetOrCreate lazily initializes the account with zero balance. The upsert
// makes concurrent first accesses converge on one row.
func (s *WalletStore) GetOrCreate(ctx context.Context, userID string) (*wallet.Account, error) {
	rows, err := s.pool.Query(ctx, getOrCreateAccountSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create wallet %q: %w", userID, err)
	}

	acc, err := pgx.CollectExactlyOneRow(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("get or create wallet %q: %w", userID, err)
	}
	return &acc, nil
}

// Debit withdraws amount if the balance covers it and appends the completed
// payment entry in the same transaction.
func (s *WalletStore) Debit(ctx context.Context, userID string, amount decimal.Decimal, orderID string) (*ledger.Entry, error) {
	if !amount.IsPositive() {
		return nil, errors.New("debit amount must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var newBalance decimal.Decimal
	err = tx.QueryRow(ctx, debitAccountSQL, userID, amount).Scan(&newBalance)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("debit wallet %q: %w", userID, err)
		}
		// The precondition failed; distinguish a missing account from an
		// uncovered amount for the caller's error message.
		var have decimal.Decimal
		if err := tx.QueryRow(ctx, selectBalanceSQL, userID).Scan(&have); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, wallet.ErrNotFound
			}
			return nil, fmt.Errorf("read wallet %q: %w", userID, err)
		}
		return nil, &wallet.InsufficientBalanceError{Have: have, Need: amount}
	}

	entry := &ledger.Entry{
		ID:               newEntryID(),
		UserID:           userID,
		Type:             ledger.EntryPayment,
		Amount:           amount.Neg(),
		ResultingBalance: newBalance,
		Status:           ledger.StatusCompleted,
		OrderID:          orderID,
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit debit tx: %w", err)
	}
	return entry, nil
}

// Credit deposits amount, creating the account if needed, and appends the
// completed entry in the same transaction.
func (s *WalletStore) Credit(ctx context.Context, userID string, amount decimal.Decimal, entryType ledger.EntryType, orderID string) (*ledger.Entry, error) {
	if !amount.IsPositive() {
		return nil, errors.New("credit amount must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	entry, err := creditInTx(ctx, tx, userID, amount, entryType, orderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit credit tx: %w", err)
	}
	return entry, nil
}

// ApproveTopup credits the wallet for a pending topup entry and completes the
// entry, atomically. The row lock serializes concurrent reviews of the same
// request; the status precondition makes the second one fail cleanly.
func (s *WalletStore) ApproveTopup(ctx context.Context, entryID string) (*ledger.Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	entry, err := lockPendingTopup(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO wallet_accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, entry.UserID); err != nil {
		return nil, fmt.Errorf("ensure wallet %q: %w", entry.UserID, err)
	}

	var newBalance decimal.Decimal
	isTopup := entry.Type == ledger.EntryTopup
	if err := tx.QueryRow(ctx, creditAccountSQL, entry.UserID, entry.Amount, isTopup).Scan(&newBalance); err != nil {
		return nil, fmt.Errorf("credit wallet %q: %w", entry.UserID, err)
	}

	tag, err := tx.Exec(ctx, completeTopupSQL, entryID, newBalance)
	if err != nil {
		return nil, fmt.Errorf("complete topup %q: %w", entryID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ledger.ErrNotPending
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit approve tx: %w", err)
	}

	entry.Status = ledger.StatusCompleted
	entry.ResultingBalance = newBalance
	return entry, nil
}

// RejectTopup cancels a pending topup entry without touching the balance.
func (s *WalletStore) RejectTopup(ctx context.Context, entryID string) error {
	tag, err := s.pool.Exec(ctx, cancelTopupSQL, entryID)
	if err != nil {
		return fmt.Errorf("cancel topup %q: %w", entryID, err)
	}
	if tag.RowsAffected() == 0 {
		// Classify: missing entry vs. already-resolved entry.
		var status string
		err := s.pool.QueryRow(ctx, `SELECT status FROM wallet_transactions WHERE id = $1`, entryID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read topup %q: %w", entryID, err)
		}
		return ledger.ErrNotPending
	}
	return nil
}

// creditInTx applies an unconditional credit plus its ledger append using the
// provided transaction.
func creditInTx(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, entryType ledger.EntryType, orderID string) (*ledger.Entry, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO wallet_accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, fmt.Errorf("ensure wallet %q: %w", userID, err)
	}

	var newBalance decimal.Decimal
	isTopup := entryType == ledger.EntryTopup
	if err := tx.QueryRow(ctx, creditAccountSQL, userID, amount, isTopup).Scan(&newBalance); err != nil {
		return nil, fmt.Errorf("credit wallet %q: %w", userID, err)
	}

	entry := &ledger.Entry{
		ID:               newEntryID(),
		UserID:           userID,
		Type:             entryType,
		Amount:           amount,
		ResultingBalance: newBalance,
		Status:           ledger.StatusCompleted,
		OrderID:          orderID,
	}
	if err := insertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func lockPendingTopup(ctx context.Context, tx pgx.Tx, entryID string) (*ledger.Entry, error) {
	var e ledger.Entry
	err := tx.QueryRow(ctx, lockPendingTopupSQL, entryID).Scan(
		&e.ID, &e.UserID, &e.Type, &e.Amount, &e.Status,
		&e.PaymentMethod, &e.ReceiptURL, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock topup %q: %w", entryID, err)
	}
	if e.Status != ledger.StatusPending {
		return nil, ledger.ErrNotPending
	}
	return &e, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e *ledger.Entry) error {
	err := tx.QueryRow(ctx, insertEntrySQL,
		e.ID, e.UserID, e.Type, e.Amount, e.ResultingBalance, e.Status,
		nullable(e.OrderID), nullable(e.PaymentMethod), nullable(e.ReceiptURL),
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append ledger entry %q: %w", e.ID, err)
	}
	return nil
}

func scanAccount(row pgx.CollectableRow) (wallet.Account, error) {
	var acc wallet.Account
	err := row.Scan(
		&acc.UserID, &acc.Balance, &acc.TotalTopups, &acc.TotalSpent,
		&acc.LastTransactionAt, &acc.CreatedAt,
	)
	return acc, err
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
