package promocode

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Rejection reasons for a redemption attempt.
var (
	// ErrNotFound is returned when no promocode exists for the given code.
	ErrNotFound = errors.New("promocode not found")
	// ErrInactive is returned when the promocode has been disabled.
	ErrInactive = errors.New("promocode inactive")
	// ErrExpired is returned when the promocode is past its expiry.
	ErrExpired = errors.New("promocode expired")
	// ErrLimitReached is returned when all redemption slots are used up.
	ErrLimitReached = errors.New("promocode redemption limit reached")
)

// Promocode defines a percentage discount with a bounded number of
// redemptions and an expiry.
type Promocode struct {
	Code            string
	DiscountPercent decimal.Decimal
	MaxRedemptions  int
	UsedCount       int
	ExpiresAt       time.Time
	Active          bool
	CreatedAt       time.Time
}

// RedeemableAt reports why the promocode cannot be redeemed at the given
// moment, or nil when a slot is available. The actual slot reservation must
// happen through Repository.TryRedeem; this check alone is advisory.
func (p *Promocode) RedeemableAt(now time.Time) error {
	switch {
	case !p.Active:
		return ErrInactive
	case !now.Before(p.ExpiresAt):
		return ErrExpired
	case p.UsedCount >= p.MaxRedemptions:
		return ErrLimitReached
	default:
		return nil
	}
}

// Normalize maps user-supplied codes to their canonical stored form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides atomic redemption of promocodes.
//
// TryRedeem consumes one redemption slot and returns the discount percentage.
// Implementations must perform the check-and-increment as a single atomic
// conditional update: two concurrent calls racing for the last slot result in
// exactly one success and one ErrLimitReached.
//
// Release hands a previously consumed slot back (used when the paired wallet
// debit fails after redemption). It never drives the counter below zero.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Promocode, error)
	TryRedeem(ctx context.Context, code string) (decimal.Decimal, error)
	Release(ctx context.Context, code string) error
}
