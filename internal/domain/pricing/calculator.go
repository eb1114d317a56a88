// Package pricing computes order totals. Promocode validation and redemption
// happen as one atomic operation at quote time, so a returned discount always
// corresponds to exactly one consumed redemption slot.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/topup-store/internal/domain/promocode"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidQuantity is returned for quantities below 1.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// PromocodeUnavailableError indicates the supplied code could not be
// redeemed: unknown, inactive, expired, or out of slots (including losing a
// race for the last slot). The cause is kept for logging; user-facing
// messages should stay generic.
type PromocodeUnavailableError struct {
	Code  string
	Cause error
}

func (e *PromocodeUnavailableError) Error() string {
	return "promocode not available: " + e.Cause.Error()
}

func (e *PromocodeUnavailableError) Unwrap() error { return e.Cause }

// Quote is the result of a price computation.
type Quote struct {
	Original decimal.Decimal
	Discount decimal.Decimal
	Final    decimal.Decimal
	// Promocode is the normalized code whose redemption this quote consumed,
	// empty when no code was supplied.
	Promocode string
}

// Redeemer consumes one redemption slot of a promocode atomically and
// returns its discount percentage.
type Redeemer interface {
	TryRedeem(ctx context.Context, code string) (decimal.Decimal, error)
}

// Calculator computes order prices in whole currency units.
type Calculator struct {
	promos Redeemer
}

// NewCalculator creates a Calculator backed by the given promocode redeemer.
func NewCalculator(promos Redeemer) *Calculator {
	return &Calculator{promos: promos}
}

// Quote computes original, discount and final price for unitPrice × quantity.
//
// Without a code the computation is pure and side-effect free. With a code it
// atomically redeems one slot; on *PromocodeUnavailableError nothing was
// consumed and no discount may be applied. The discount is rounded to the
// nearest whole currency unit exactly once; the final price is the exact
// difference, clamped at zero.
func (c *Calculator) Quote(ctx context.Context, unitPrice decimal.Decimal, quantity int, code string) (Quote, error) {
	if quantity < 1 {
		return Quote{}, ErrInvalidQuantity
	}

	original := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	if code == "" {
		return Quote{Original: original, Discount: decimal.Zero, Final: original}, nil
	}

	normalized := promocode.Normalize(code)
	pct, err := c.promos.TryRedeem(ctx, normalized)
	if err != nil {
		switch {
		case errors.Is(err, promocode.ErrNotFound),
			errors.Is(err, promocode.ErrInactive),
			errors.Is(err, promocode.ErrExpired),
			errors.Is(err, promocode.ErrLimitReached):
			return Quote{}, &PromocodeUnavailableError{Code: normalized, Cause: err}
		default:
			return Quote{}, errors.Wrap(err, "redeem promocode")
		}
	}

	discount := original.Mul(pct).Div(hundred).Round(0)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	final := original.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Quote{
		Original:  original,
		Discount:  discount,
		Final:     final,
		Promocode: normalized,
	}, nil
}
