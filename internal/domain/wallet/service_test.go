package wallet

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/topup-store/internal/domain/ledger"
)

// --- Mock implementations ---

type mockStore struct {
	accounts   map[string]*Account
	getErr     error
	approveErr error
	approved   []string
	rejected   []string
}

func (m *mockStore) GetOrCreate(_ context.Context, userID string) (*Account, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if acc, ok := m.accounts[userID]; ok {
		return acc, nil
	}
	return &Account{UserID: userID, Balance: decimal.Zero}, nil
}

func (m *mockStore) Debit(_ context.Context, _ string, _ decimal.Decimal, _ string) (*ledger.Entry, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) Credit(_ context.Context, _ string, _ decimal.Decimal, _ ledger.EntryType, _ string) (*ledger.Entry, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) ApproveTopup(_ context.Context, entryID string) (*ledger.Entry, error) {
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	m.approved = append(m.approved, entryID)
	return &ledger.Entry{ID: entryID, Status: ledger.StatusCompleted}, nil
}

func (m *mockStore) RejectTopup(_ context.Context, entryID string) error {
	m.rejected = append(m.rejected, entryID)
	return nil
}

type mockLedgerRepo struct {
	sum       decimal.Decimal
	entries   []ledger.Entry
	created   *ledger.Entry
	createErr error
}

func (m *mockLedgerRepo) GetByID(_ context.Context, _ string) (*ledger.Entry, error) {
	return nil, ledger.ErrNotFound
}

func (m *mockLedgerRepo) ListForUser(_ context.Context, _ string, _, _ int) ([]ledger.Entry, error) {
	return m.entries, nil
}

func (m *mockLedgerRepo) SumCompletedForUser(_ context.Context, _ string) (decimal.Decimal, error) {
	return m.sum, nil
}

func (m *mockLedgerRepo) CreateTopupRequest(_ context.Context, req ledger.TopupRequest) (*ledger.Entry, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = &ledger.Entry{
		ID:            "t1",
		UserID:        req.UserID,
		Type:          ledger.EntryTopup,
		Amount:        req.Amount,
		Status:        ledger.StatusPending,
		PaymentMethod: req.PaymentMethod,
		ReceiptURL:    req.ReceiptURL,
	}
	return m.created, nil
}

type mockNotifier struct {
	topups []*ledger.Entry
}

func (m *mockNotifier) TopupRequested(e *ledger.Entry) { m.topups = append(m.topups, e) }

// --- Tests ---

func TestRequestTopup_Validation(t *testing.T) {
	svc := NewService(&mockStore{}, &mockLedgerRepo{}, nil)

	tests := []struct {
		name string
		req  ledger.TopupRequest
		want error
	}{
		{
			name: "zero amount",
			req:  ledger.TopupRequest{UserID: "u1", Amount: decimal.Zero, PaymentMethod: "external"},
			want: ErrNonPositiveAmount,
		},
		{
			name: "negative amount",
			req:  ledger.TopupRequest{UserID: "u1", Amount: decimal.NewFromInt(-5), PaymentMethod: "external"},
			want: ErrNonPositiveAmount,
		},
		{
			name: "unknown method",
			req:  ledger.TopupRequest{UserID: "u1", Amount: decimal.NewFromInt(100), PaymentMethod: "cash"},
			want: ErrUnknownTopupMethod,
		},
		{
			name: "receipt without url",
			req:  ledger.TopupRequest{UserID: "u1", Amount: decimal.NewFromInt(100), PaymentMethod: "receipt"},
			want: ErrMissingReceiptForTop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestTopup(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRequestTopup_PendingAndNotified(t *testing.T) {
	repo := &mockLedgerRepo{}
	notifier := &mockNotifier{}
	svc := NewService(&mockStore{}, repo, notifier)

	entry, err := svc.RequestTopup(context.Background(), ledger.TopupRequest{
		UserID:        "u1",
		Amount:        decimal.NewFromInt(500),
		PaymentMethod: "receipt",
		ReceiptURL:    "https://cdn.example.com/r/9.jpg",
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, entry.Status, "balance moves only on approval")
	assert.True(t, decimal.NewFromInt(500).Equal(entry.Amount))

	require.Len(t, notifier.topups, 1)
	assert.Equal(t, entry.ID, notifier.topups[0].ID)
}

func TestRequestTopup_ExternalMethodNeedsNoReceipt(t *testing.T) {
	svc := NewService(&mockStore{}, &mockLedgerRepo{}, nil)

	entry, err := svc.RequestTopup(context.Background(), ledger.TopupRequest{
		UserID:        "u1",
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: "external",
	})

	require.NoError(t, err)
	assert.Equal(t, "external", entry.PaymentMethod)
}

func TestRequestTopup_AccountCreationFails(t *testing.T) {
	store := &mockStore{getErr: errors.New("db down")}
	repo := &mockLedgerRepo{}
	svc := NewService(store, repo, nil)

	_, err := svc.RequestTopup(context.Background(), ledger.TopupRequest{
		UserID:        "u1",
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: "external",
	})

	require.Error(t, err)
	assert.Nil(t, repo.created, "no entry without an account")
}

func TestApproveTopup(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store, &mockLedgerRepo{}, nil)

	entry, err := svc.ApproveTopup(context.Background(), "t1")

	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, entry.Status)
	assert.Equal(t, []string{"t1"}, store.approved)
}

func TestApproveTopup_NotPending(t *testing.T) {
	store := &mockStore{approveErr: ledger.ErrNotPending}
	svc := NewService(store, &mockLedgerRepo{}, nil)

	_, err := svc.ApproveTopup(context.Background(), "t1")
	require.ErrorIs(t, err, ledger.ErrNotPending)
}

func TestReconcile(t *testing.T) {
	store := &mockStore{accounts: map[string]*Account{
		"u1": {UserID: "u1", Balance: decimal.NewFromInt(700)},
	}}

	t.Run("balanced", func(t *testing.T) {
		svc := NewService(store, &mockLedgerRepo{sum: decimal.NewFromInt(700)}, nil)

		rep, err := svc.Reconcile(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, rep.Balanced)
		assert.True(t, rep.Discrepancy.IsZero())
	})

	t.Run("discrepancy", func(t *testing.T) {
		svc := NewService(store, &mockLedgerRepo{sum: decimal.NewFromInt(650)}, nil)

		rep, err := svc.Reconcile(context.Background(), "u1")
		require.NoError(t, err)
		assert.False(t, rep.Balanced)
		assert.True(t, decimal.NewFromInt(50).Equal(rep.Discrepancy))
	})
}

func TestInsufficientBalanceError(t *testing.T) {
	err := &InsufficientBalanceError{
		Have: decimal.NewFromInt(100),
		Need: decimal.NewFromInt(450),
	}

	assert.Equal(t, "insufficient balance: have 100, need 450", err.Error())
	assert.True(t, decimal.NewFromInt(350).Equal(err.Shortfall()))
}
