package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/topup-store/internal/domain/ledger"
	"github.com/xenking/topup-store/internal/domain/pricing"
	"github.com/xenking/topup-store/internal/domain/product"
	"github.com/xenking/topup-store/internal/domain/promocode"
	"github.com/xenking/topup-store/internal/domain/wallet"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type mockPromoRepo struct {
	pct         decimal.Decimal
	redeemErr   error
	releaseErr  error
	redeemCalls int
	released    []string
}

func (m *mockPromoRepo) FindByCode(_ context.Context, _ string) (*promocode.Promocode, error) {
	return nil, promocode.ErrNotFound
}

func (m *mockPromoRepo) TryRedeem(_ context.Context, _ string) (decimal.Decimal, error) {
	m.redeemCalls++
	if m.redeemErr != nil {
		return decimal.Zero, m.redeemErr
	}
	return m.pct, nil
}

func (m *mockPromoRepo) Release(_ context.Context, code string) error {
	m.released = append(m.released, code)
	return m.releaseErr
}

type mockWalletStore struct {
	debitErr    error
	debitCalls  int
	debitAmount decimal.Decimal
	debitOrder  string
}

func (m *mockWalletStore) GetOrCreate(_ context.Context, userID string) (*wallet.Account, error) {
	return &wallet.Account{UserID: userID}, nil
}

func (m *mockWalletStore) Debit(_ context.Context, userID string, amount decimal.Decimal, orderID string) (*ledger.Entry, error) {
	m.debitCalls++
	m.debitAmount = amount
	m.debitOrder = orderID
	if m.debitErr != nil {
		return nil, m.debitErr
	}
	return &ledger.Entry{
		UserID:  userID,
		Type:    ledger.EntryPayment,
		Amount:  amount.Neg(),
		Status:  ledger.StatusCompleted,
		OrderID: orderID,
	}, nil
}

func (m *mockWalletStore) Credit(_ context.Context, _ string, _ decimal.Decimal, _ ledger.EntryType, _ string) (*ledger.Entry, error) {
	return nil, errors.New("not implemented")
}

func (m *mockWalletStore) ApproveTopup(_ context.Context, _ string) (*ledger.Entry, error) {
	return nil, errors.New("not implemented")
}

func (m *mockWalletStore) RejectTopup(_ context.Context, _ string) error {
	return errors.New("not implemented")
}

type mockOrderRepo struct {
	byID      map[string]*Order
	createErr error
	updateErr error
	created   *Order
	deleted   []string
	deleteErr error
	updated   []Status
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.deleteErr
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, _, to Status) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, to)
	return nil
}

type mockNotifier struct {
	orders []*Order
}

func (m *mockNotifier) OrderCreated(o *Order) { m.orders = append(m.orders, o) }

// --- Helpers ---

type fixture struct {
	products *mockProductRepo
	promos   *mockPromoRepo
	wallet   *mockWalletStore
	orders   *mockOrderRepo
	notifier *mockNotifier
	svc      *Service
}

func newFixture(products ...product.Product) *fixture {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	f := &fixture{
		products: &mockProductRepo{byID: byID},
		promos:   &mockPromoRepo{pct: decimal.NewFromInt(10)},
		wallet:   &mockWalletStore{},
		orders:   &mockOrderRepo{byID: map[string]*Order{}},
		notifier: &mockNotifier{},
	}
	f.svc = NewService(
		f.products,
		pricing.NewCalculator(f.promos),
		f.promos,
		f.wallet,
		f.orders,
		f.notifier,
	)
	return f
}

func testProduct(id string, price int64) product.Product {
	return product.Product{
		ID:       id,
		Name:     "Test " + id,
		Platform: "pubg",
		Type:     "game_currency",
		Price:    decimal.NewFromInt(price),
		Active:   true,
	}
}

func walletRequest(productID string, qty int) CreateOrderRequest {
	return CreateOrderRequest{
		UserID:        "u1",
		ProductID:     productID,
		Quantity:      qty,
		PaymentMethod: PayWallet,
	}
}

// --- Tests ---

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	f := newFixture(testProduct("p1", 100))

	_, err := f.svc.CreateOrder(context.Background(), walletRequest("p1", 0))
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCreateOrder_UnknownPaymentMethod(t *testing.T) {
	f := newFixture(testProduct("p1", 100))

	req := walletRequest("p1", 1)
	req.PaymentMethod = "crypto"

	_, err := f.svc.CreateOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrUnknownPaymentMethod)
}

func TestCreateOrder_ReceiptWithoutURL(t *testing.T) {
	f := newFixture(testProduct("p1", 100))

	req := walletRequest("p1", 1)
	req.PaymentMethod = PayReceipt

	_, err := f.svc.CreateOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrMissingReceipt)
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrder(context.Background(), walletRequest("missing", 1))
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	p := testProduct("p1", 100)
	p.Active = false
	f := newFixture(p)

	_, err := f.svc.CreateOrder(context.Background(), walletRequest("p1", 1))
	require.ErrorIs(t, err, ErrProductUnavailable)
	assert.Zero(t, f.wallet.debitCalls)
}

func TestCreateOrder_WalletPayment(t *testing.T) {
	f := newFixture(testProduct("p1", 500))

	o, err := f.svc.CreateOrder(context.Background(), walletRequest("p1", 2))

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(1000).Equal(o.OriginalPrice))
	assert.True(t, decimal.NewFromInt(1000).Equal(o.FinalPrice))
	assert.Equal(t, "pubg", o.Platform)

	require.Equal(t, 1, f.wallet.debitCalls)
	assert.True(t, decimal.NewFromInt(1000).Equal(f.wallet.debitAmount))
	assert.Equal(t, o.ID, f.wallet.debitOrder)

	require.Len(t, f.notifier.orders, 1)
	assert.Equal(t, o.ID, f.notifier.orders[0].ID)
}

func TestCreateOrder_WithPromocode(t *testing.T) {
	f := newFixture(testProduct("p1", 500))
	f.promos.pct = decimal.NewFromInt(20)

	req := walletRequest("p1", 2)
	req.Promocode = "save20"

	o, err := f.svc.CreateOrder(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "SAVE20", o.Promocode)
	assert.True(t, decimal.NewFromInt(1000).Equal(o.OriginalPrice))
	assert.True(t, decimal.NewFromInt(200).Equal(o.DiscountAmount))
	assert.True(t, decimal.NewFromInt(800).Equal(o.FinalPrice))
	assert.True(t, decimal.NewFromInt(800).Equal(f.wallet.debitAmount))
	assert.Empty(t, f.promos.released)
}

func TestCreateOrder_UnavailablePromocode(t *testing.T) {
	f := newFixture(testProduct("p1", 500))
	f.promos.redeemErr = promocode.ErrLimitReached

	req := walletRequest("p1", 1)
	req.Promocode = "DEAD"

	_, err := f.svc.CreateOrder(context.Background(), req)

	var puErr *pricing.PromocodeUnavailableError
	require.ErrorAs(t, err, &puErr)
	assert.Nil(t, f.orders.created)
	assert.Zero(t, f.wallet.debitCalls)
}

func TestCreateOrder_InsufficientBalanceCompensates(t *testing.T) {
	f := newFixture(testProduct("p1", 500))
	f.promos.pct = decimal.NewFromInt(10)
	f.wallet.debitErr = &wallet.InsufficientBalanceError{
		Have: decimal.NewFromInt(100),
		Need: decimal.NewFromInt(450),
	}

	req := walletRequest("p1", 1)
	req.Promocode = "SAVE10"

	_, err := f.svc.CreateOrder(context.Background(), req)

	var ibErr *wallet.InsufficientBalanceError
	require.ErrorAs(t, err, &ibErr)
	assert.True(t, decimal.NewFromInt(350).Equal(ibErr.Shortfall()))

	// The provisional order row is removed and the promocode slot handed back.
	require.NotNil(t, f.orders.created)
	assert.Equal(t, []string{f.orders.created.ID}, f.orders.deleted)
	assert.Equal(t, []string{"SAVE10"}, f.promos.released)
}

func TestCreateOrder_CompensationRetriesDelete(t *testing.T) {
	f := newFixture(testProduct("p1", 500))
	f.wallet.debitErr = &wallet.InsufficientBalanceError{
		Have: decimal.Zero,
		Need: decimal.NewFromInt(500),
	}
	f.orders.deleteErr = errors.New("connection reset")

	_, err := f.svc.CreateOrder(context.Background(), walletRequest("p1", 1))

	require.Error(t, err)
	assert.Len(t, f.orders.deleted, 2, "failed delete is retried once")
}

func TestCreateOrder_CreateFailureReleasesPromocode(t *testing.T) {
	f := newFixture(testProduct("p1", 500))
	f.orders.createErr = errors.New("db write failed")

	req := walletRequest("p1", 1)
	req.Promocode = "SAVE10"

	_, err := f.svc.CreateOrder(context.Background(), req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Equal(t, []string{"SAVE10"}, f.promos.released)
	assert.Zero(t, f.wallet.debitCalls)
}

func TestCreateOrder_ZeroFinalSkipsDebit(t *testing.T) {
	f := newFixture(testProduct("p1", 500))
	f.promos.pct = decimal.NewFromInt(100)

	req := walletRequest("p1", 1)
	req.Promocode = "FREE"

	o, err := f.svc.CreateOrder(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, o.FinalPrice.IsZero())
	assert.Zero(t, f.wallet.debitCalls, "nothing to debit at a zero final price")
}

func TestCreateOrder_ReceiptPaymentSkipsWallet(t *testing.T) {
	f := newFixture(testProduct("p1", 500))

	req := walletRequest("p1", 1)
	req.PaymentMethod = PayReceipt
	req.ReceiptURL = "https://cdn.example.com/r/123.jpg"

	o, err := f.svc.CreateOrder(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, PayReceipt, o.PaymentMethod)
	assert.Equal(t, "https://cdn.example.com/r/123.jpg", o.ReceiptURL)
	assert.Zero(t, f.wallet.debitCalls)
	assert.Len(t, f.notifier.orders, 1)
}

func TestSetStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr error
	}{
		{name: "approve pending", from: StatusPending, to: StatusApproved},
		{name: "reject pending", from: StatusPending, to: StatusRejected},
		{name: "reopen approved", from: StatusApproved, to: StatusPending},
		{name: "reopen rejected", from: StatusRejected, to: StatusPending},
		{name: "approve approved", from: StatusApproved, to: StatusApproved, wantErr: ErrInvalidStatus},
		{name: "flip approved to rejected", from: StatusApproved, to: StatusRejected, wantErr: ErrInvalidStatus},
		{name: "pending to pending", from: StatusPending, to: StatusPending, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.byID["o1"] = &Order{ID: "o1", Status: tt.from}

			o, err := f.svc.SetStatus(context.Background(), "o1", tt.to)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, o.Status)
			assert.Equal(t, []Status{tt.to}, f.orders.updated)
		})
	}
}

func TestSetStatus_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SetStatus(context.Background(), "missing", StatusApproved)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus_ConcurrentConflict(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &Order{ID: "o1", Status: StatusPending}
	f.orders.updateErr = ErrStatusConflict

	_, err := f.svc.SetStatus(context.Background(), "o1", StatusApproved)
	require.ErrorIs(t, err, ErrStatusConflict)
}
