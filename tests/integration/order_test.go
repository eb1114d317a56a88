//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestCreateOrder_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID: "pubg-uc-60", Quantity: 1, PaymentMethod: "wallet",
	}, "")
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusUnauthorized)
}

func TestCreateOrder_InvalidKey(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID: "pubg-uc-60", Quantity: 1, PaymentMethod: "wallet",
	}, "wrong-key")
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusUnauthorized)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID: "no-such-product", Quantity: 1, PaymentMethod: "wallet",
	}, userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID: "pubg-uc-60", Quantity: 0, PaymentMethod: "wallet",
	}, userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusBadRequest)
}

func TestCreateOrder_ReceiptFlow(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID:     "netflix-1m",
		Quantity:      1,
		PaymentMethod: "receipt",
		ReceiptURL:    "https://cdn.example.com/receipts/1.jpg",
	}, userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)

	if !uuidPattern.MatchString(o.OrderID) {
		t.Errorf("order id %q is not a valid UUID", o.OrderID)
	}
	if o.Status != "pending" {
		t.Errorf("status: got %q, want pending", o.Status)
	}
	if got := number(t, o.FinalPrice); got != 1200 {
		t.Errorf("final price: got %v, want 1200", got)
	}
	if o.Platform != "netflix" || o.ProductType != "subscription" {
		t.Errorf("denormalized product data missing: %+v", o)
	}
}

func TestCreateOrder_ReceiptWithoutURL(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID: "netflix-1m", Quantity: 1, PaymentMethod: "receipt",
	}, userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusBadRequest)
}

func TestCreateOrder_WalletInsufficientBalance(t *testing.T) {
	// The order is far above anything the shared wallet holds at any point in
	// the suite: 9 × 1200 = 10800.
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID: "netflix-1m", Quantity: 9, PaymentMethod: "wallet",
	}, userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusPaymentRequired)
	e := decodeJSON[errorResponse](t, resp)
	if e.Code != "PaymentFailed" {
		t.Errorf("error code: got %q, want PaymentFailed", e.Code)
	}
}

func TestCreateOrder_WalletFlow(t *testing.T) {
	before := walletBalance(t)
	fundWallet(t, 500)

	resp := doPost(t, "/api/orders", orderRequest{
		ProductID: "ig-followers-1k", Quantity: 1, PaymentMethod: "wallet",
	}, userAPIKey)
	requireStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if got := number(t, o.FinalPrice); got != 300 {
		t.Fatalf("final price: got %v, want 300", got)
	}

	after := walletBalance(t)
	if after != before+500-300 {
		t.Errorf("balance: got %v, want %v", after, before+500-300)
	}

	// The debit shows up in the ledger, linked to the order.
	resp = doGet(t, "/api/wallet/transactions?limit=5", userAPIKey)
	defer resp.Body.Close()
	requireStatus(t, resp, http.StatusOK)

	entries := decodeJSON[[]entryResponse](t, resp)
	var found bool
	for _, e := range entries {
		if e.OrderID == o.OrderID {
			found = true
			if e.Type != "payment" || e.Status != "completed" {
				t.Errorf("entry: got type=%s status=%s", e.Type, e.Status)
			}
			if got := number(t, e.Amount); got != -300 {
				t.Errorf("entry amount: got %v, want -300", got)
			}
		}
	}
	if !found {
		t.Errorf("no ledger entry for order %s", o.OrderID)
	}
}

func TestCreateOrder_WithPromocode(t *testing.T) {
	fundWallet(t, 1000)

	// WELCOME10 is seeded with 10% discount: 950 - 95 = 855.
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID:     "pubg-uc-660",
		Quantity:      1,
		Promocode:     "welcome10",
		PaymentMethod: "wallet",
	}, userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)

	if o.Promocode != "WELCOME10" {
		t.Errorf("promocode: got %q, want WELCOME10", o.Promocode)
	}
	if got := number(t, o.DiscountAmount); got != 95 {
		t.Errorf("discount: got %v, want 95", got)
	}
	if got := number(t, o.FinalPrice); got != 855 {
		t.Errorf("final price: got %v, want 855", got)
	}
}

func TestCreateOrder_UnknownPromocode(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID:     "pubg-uc-60",
		Quantity:      1,
		Promocode:     "NOSUCHCODE",
		PaymentMethod: "receipt",
		ReceiptURL:    "https://cdn.example.com/receipts/2.jpg",
	}, userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusUnprocessableEntity)
	e := decodeJSON[errorResponse](t, resp)
	if e.Code != "InvalidPromocode" {
		t.Errorf("error code: got %q, want InvalidPromocode", e.Code)
	}
	// Rejection details stay hidden from clients.
	if e.Message != "promocode not available" {
		t.Errorf("message leaks details: %q", e.Message)
	}
}

func TestGetOrder_Ownership(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID:     "spotify-1m",
		Quantity:      1,
		PaymentMethod: "receipt",
		ReceiptURL:    "https://cdn.example.com/receipts/3.jpg",
	}, userAPIKey)
	requireStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	t.Run("owner", func(t *testing.T) {
		resp := doGet(t, "/api/orders/"+o.OrderID, userAPIKey)
		defer resp.Body.Close()
		requireStatus(t, resp, http.StatusOK)
	})

	t.Run("admin", func(t *testing.T) {
		resp := doGet(t, "/api/orders/"+o.OrderID, adminAPIKey)
		defer resp.Body.Close()
		requireStatus(t, resp, http.StatusOK)
	})
}

func TestOrderStatusTransitions(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		ProductID:     "tt-likes-5k",
		Quantity:      1,
		PaymentMethod: "receipt",
		ReceiptURL:    "https://cdn.example.com/receipts/4.jpg",
	}, userAPIKey)
	requireStatus(t, resp, http.StatusCreated)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	path := "/api/orders/" + o.OrderID + "/status"

	t.Run("user cannot change status", func(t *testing.T) {
		resp := doPatch(t, path, map[string]string{"status": "approved"}, userAPIKey)
		defer resp.Body.Close()
		requireStatus(t, resp, http.StatusForbidden)
	})

	t.Run("approve pending", func(t *testing.T) {
		resp := doPatch(t, path, map[string]string{"status": "approved"}, adminAPIKey)
		defer resp.Body.Close()
		requireStatus(t, resp, http.StatusOK)

		got := decodeJSON[orderResponse](t, resp)
		if got.Status != "approved" {
			t.Errorf("status: got %q, want approved", got.Status)
		}
	})

	t.Run("approved cannot flip to rejected", func(t *testing.T) {
		resp := doPatch(t, path, map[string]string{"status": "rejected"}, adminAPIKey)
		defer resp.Body.Close()
		requireStatus(t, resp, http.StatusUnprocessableEntity)
	})

	t.Run("reopen to pending", func(t *testing.T) {
		resp := doPatch(t, path, map[string]string{"status": "pending"}, adminAPIKey)
		defer resp.Body.Close()
		requireStatus(t, resp, http.StatusOK)
	})

	t.Run("unknown status value", func(t *testing.T) {
		resp := doPatch(t, path, map[string]string{"status": "done"}, adminAPIKey)
		defer resp.Body.Close()
		requireStatus(t, resp, http.StatusUnprocessableEntity)
	})
}

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products", userAPIKey)
	defer resp.Body.Close()

	requireStatus(t, resp, http.StatusOK)
	products := decodeJSON[[]productResponse](t, resp)

	if len(products) != 9 {
		t.Fatalf("expected 9 products, got %d", len(products))
	}
	for _, p := range products {
		if p.ID == "" || p.Name == "" || p.Platform == "" {
			t.Errorf("incomplete product: %+v", p)
		}
		if number(t, p.UnitPrice) <= 0 {
			t.Errorf("product %s: non-positive price %s", p.ID, p.UnitPrice)
		}
	}
}
