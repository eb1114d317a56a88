package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	// PayWallet debits the customer's internal wallet at creation time.
	PayWallet PaymentMethod = "wallet"
	// PayReceipt attaches an uploaded payment-proof reference for manual review.
	PayReceipt PaymentMethod = "receipt"
)

var (
	// ErrNotFound is returned when no order exists for the given id.
	ErrNotFound = errors.New("order not found")
	// ErrStatusConflict is returned when a conditional status update lost a
	// race with a concurrent change.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Order is one purchase attempt. Prices are denormalized at creation time so
// later catalog or promocode changes never alter past orders.
// FinalPrice = max(0, OriginalPrice - DiscountAmount) and
// OriginalPrice = UnitPrice × Quantity always hold.
type Order struct {
	ID             string
	UserID         string
	ProductID      string
	Platform       string
	ProductType    string
	Quantity       int
	UnitPrice      decimal.Decimal
	OriginalPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
	Promocode      string
	PaymentMethod  PaymentMethod
	ReceiptURL     string
	Status         Status
	CreatedAt      time.Time
}

// Repository defines persistence operations for orders. Delete exists only
// for the coordinator's compensating path during creation; orders are never
// deleted afterwards.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Delete(ctx context.Context, id string) error
	// UpdateStatus flips the status only if the row still holds from,
	// returning ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
