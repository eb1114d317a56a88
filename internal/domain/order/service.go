package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/topup-store/internal/domain/pricing"
	"github.com/xenking/topup-store/internal/domain/product"
	"github.com/xenking/topup-store/internal/domain/promocode"
	"github.com/xenking/topup-store/internal/domain/wallet"
)

// Sentinel errors for checkout validation.
var (
	ErrInvalidQuantity      = errors.New("quantity must be greater than 0")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrMissingReceipt       = errors.New("receipt reference required for receipt payments")
	ErrProductUnavailable   = errors.New("product is not available")
)

// CreateOrderRequest holds the input for a checkout.
type CreateOrderRequest struct {
	UserID        string
	ProductID     string
	Quantity      int
	Promocode     string
	PaymentMethod PaymentMethod
	ReceiptURL    string
}

// Notifier receives best-effort alerts about created orders. Implementations
// must not block; failures never reach the checkout response.
type Notifier interface {
	OrderCreated(o *Order)
}

// Service coordinates order creation: it validates the request, computes the
// price (redeeming the promocode atomically), persists the pending order,
// debits the wallet for wallet payments, and undoes the partial state when a
// later step fails. A returned error guarantees no order row survived.
type Service struct {
	products product.Repository
	pricing  *pricing.Calculator
	promos   promocode.Repository
	wallet   wallet.Store
	orders   Repository
	notifier Notifier
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	calc *pricing.Calculator,
	promos promocode.Repository,
	walletStore wallet.Store,
	orders Repository,
	notifier Notifier,
) *Service {
	return &Service{
		products: products,
		pricing:  calc,
		promos:   promos,
		wallet:   walletStore,
		orders:   orders,
		notifier: notifier,
	}
}

// CreateOrder runs the checkout flow. The promocode redemption and the wallet
// debit are each a single atomic conditional update; the order row is the
// only provisional write and is deleted on any downstream failure.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	switch req.PaymentMethod {
	case PayWallet:
	case PayReceipt:
		if req.ReceiptURL == "" {
			return nil, ErrMissingReceipt
		}
	default:
		return nil, ErrUnknownPaymentMethod
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrProductUnavailable
	}

	// Price computation consumes the promocode slot; from here on a failure
	// must hand the slot back.
	quote, err := s.pricing.Quote(ctx, p.Price, req.Quantity, req.Promocode)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:             newOrderID(),
		UserID:         req.UserID,
		ProductID:      p.ID,
		Platform:       p.Platform,
		ProductType:    p.Type,
		Quantity:       req.Quantity,
		UnitPrice:      p.Price,
		OriginalPrice:  quote.Original,
		DiscountAmount: quote.Discount,
		FinalPrice:     quote.Final,
		Promocode:      quote.Promocode,
		PaymentMethod:  req.PaymentMethod,
		ReceiptURL:     req.ReceiptURL,
		Status:         StatusPending,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		s.releasePromocode(ctx, quote.Promocode)
		return nil, errors.Wrap(err, "create order")
	}

	// Wallet payments reserve funds now; the order still awaits admin review
	// like receipt payments. A final price of zero (100% discount) leaves
	// nothing to debit.
	if req.PaymentMethod == PayWallet && quote.Final.IsPositive() {
		if _, err := s.wallet.Debit(ctx, req.UserID, quote.Final, o.ID); err != nil {
			s.compensateOrder(ctx, o.ID)
			s.releasePromocode(ctx, quote.Promocode)
			return nil, err
		}
	}

	if s.notifier != nil {
		s.notifier.OrderCreated(o)
	}
	return o, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// SetStatus applies an administrative status transition. The underlying
// update is conditional on the status the administrator saw, so two
// concurrent reviews cannot both apply.
func (s *Service) SetStatus(ctx context.Context, id string, to Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidStatus
	}
	if err := s.orders.UpdateStatus(ctx, id, o.Status, to); err != nil {
		return nil, err
	}
	o.Status = to
	return o, nil
}

// compensateOrder removes the provisional order row. An order without a
// confirmed payment must never survive, so a failed delete is retried once
// and then escalated in the log for manual reconciliation.
func (s *Service) compensateOrder(ctx context.Context, id string) {
	err := s.orders.Delete(ctx, id)
	if err == nil {
		return
	}
	if err = s.orders.Delete(ctx, id); err == nil {
		return
	}
	zctx.From(ctx).Error("CRITICAL: compensating order delete failed, manual reconciliation required",
		zap.String("order_id", id),
		zap.Error(err),
	)
}

// releasePromocode hands a consumed redemption slot back after a failed
// checkout. Failures are logged and swallowed: an occasionally lost slot is
// preferable to failing the error path.
func (s *Service) releasePromocode(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := s.promos.Release(ctx, code); err != nil {
		zctx.From(ctx).Error("CRITICAL: promocode slot release failed",
			zap.String("code", code),
			zap.Error(err),
		)
	}
}

// newOrderID returns a time-ordered unique id (UUIDv7: timestamp + random).
func newOrderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
