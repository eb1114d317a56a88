package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/promocode"
)

const (
	getPromocodeSQL = `SELECT code, discount_percent, max_redemptions, used_count, expires_at, active, created_at
		FROM promocodes WHERE code = $1`

	// The WHERE clause carries the full redemption precondition, so the
	// check and the increment are one atomic statement. Racing for the last
	// slot, exactly one caller gets a row back.
	tryRedeemSQL = `UPDATE promocodes
		SET used_count = used_count + 1
		WHERE code = $1 AND active AND now() < expires_at AND used_count < max_redemptions
		RETURNING discount_percent`

	releasePromocodeSQL = `UPDATE promocodes
		SET used_count = used_count - 1
		WHERE code = $1 AND used_count > 0`

	upsertPromocodeSQL = `INSERT INTO promocodes (code, discount_percent, max_redemptions, expires_at, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			discount_percent = EXCLUDED.discount_percent,
			max_redemptions = EXCLUDED.max_redemptions,
			expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active`
)

var _ promocode.Repository = (*PromocodeRepository)(nil)

// PromocodeRepository implements promocode.Repository backed by PostgreSQL.
type PromocodeRepository struct {
	pool *pgxpool.Pool
}

// NewPromocodeRepository returns a PromocodeRepository that uses the given pool.
func NewPromocodeRepository(pool *pgxpool.Pool) *PromocodeRepository {
	return &PromocodeRepository{pool: pool}
}

// FindByCode looks up a promocode by its canonical code.
func (r *PromocodeRepository) FindByCode(ctx context.Context, code string) (*promocode.Promocode, error) {
	rows, err := r.pool.Query(ctx, getPromocodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promocode %q: %w", code, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromocode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promocode.ErrNotFound
		}
		return nil, fmt.Errorf("finding promocode %q: %w", code, err)
	}
	return &p, nil
}

// TryRedeem atomically consumes one redemption slot. When the conditional
// update matches no row, the promocode is re-read once, only to classify the
// rejection reason; the outcome was already decided by the update.
func (r *PromocodeRepository) TryRedeem(ctx context.Context, code string) (decimal.Decimal, error) {
	var pct decimal.Decimal
	err := r.pool.QueryRow(ctx, tryRedeemSQL, code).Scan(&pct)
	if err == nil {
		return pct, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("redeeming promocode %q: %w", code, err)
	}

	p, err := r.FindByCode(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}

	// Classify against the database clock so the verdict agrees with the
	// update's now() comparison.
	var now time.Time
	if err := r.pool.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return decimal.Zero, fmt.Errorf("reading database clock: %w", err)
	}
	if reason := p.RedeemableAt(now); reason != nil {
		return decimal.Zero, reason
	}
	// Redeemable again on re-read: the update lost a race for the last slot
	// that was since released. Report the race outcome, not the snapshot.
	return decimal.Zero, promocode.ErrLimitReached
}

// Release hands one redemption slot back, never driving the counter negative.
func (r *PromocodeRepository) Release(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, releasePromocodeSQL, code)
	if err != nil {
		return fmt.Errorf("releasing promocode %q: %w", code, err)
	}
	return nil
}

// Upsert creates or updates a promocode definition. Used by ingest tooling.
func (r *PromocodeRepository) Upsert(ctx context.Context, p *promocode.Promocode) error {
	_, err := r.pool.Exec(ctx, upsertPromocodeSQL,
		p.Code, p.DiscountPercent, p.MaxRedemptions, p.ExpiresAt, p.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting promocode %q: %w", p.Code, err)
	}
	return nil
}

func scanPromocode(row pgx.CollectableRow) (promocode.Promocode, error) {
	var p promocode.Promocode
	err := row.Scan(
		&p.Code, &p.DiscountPercent, &p.MaxRedemptions, &p.UsedCount,
		&p.ExpiresAt, &p.Active, &p.CreatedAt,
	)
	return p, err
}
