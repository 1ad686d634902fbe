package salesapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/apotekpos/backend-pos/internal/common"
)

func testClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, 2*time.Second, 3, zerolog.Nop()), srv
}

func TestCreateSaleDecodesResult(t *testing.T) {
	var gotBody CreateSaleRequest
	var gotAuth string
	cl, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sales" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"saleId":"s-1","receiptNumber":"RC-000123"}}`))
	}))

	ctx := contextWithToken("tok-abc")
	req := CreateSaleRequest{
		Items:         []SaleItem{{ProductID: "P-001", Quantity: 2, UnitPrice: decimal.RequireFromString("52.50")}},
		PaymentMethod: "cash",
		Subtotal:      decimal.RequireFromString("105.00"),
		Discount:      decimal.Zero,
		Total:         decimal.RequireFromString("105.00"),
	}
	res, err := cl.CreateSale(ctx, req)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if res.SaleID != "s-1" || res.ReceiptNumber != "RC-000123" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Fatalf("expected bearer token forwarded, got %q", gotAuth)
	}
	if gotBody.PaymentMethod != "cash" || len(gotBody.Items) != 1 {
		t.Fatalf("unexpected wire body: %+v", gotBody)
	}
}

func TestCreateSaleDeclaredFailure(t *testing.T) {
	cl, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"INSUFFICIENT_STOCK","message":"insufficient stock for Amoxicillin 500mg"}}`))
	}))

	_, err := cl.CreateSale(context.Background(), CreateSaleRequest{PaymentMethod: "cash"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Code != "INSUFFICIENT_STOCK" {
		t.Fatalf("unexpected code %q", apiErr.Code)
	}
	if apiErr.Message != "insufficient stock for Amoxicillin 500mg" {
		t.Fatalf("backend message must surface verbatim, got %q", apiErr.Message)
	}
}

func TestCreateSaleServerErrorIsNotDeclared(t *testing.T) {
	var calls atomic.Int32
	cl, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := cl.CreateSale(context.Background(), CreateSaleRequest{PaymentMethod: "cash"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("a 500 must not be classified as a declared failure: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("sale submission must never retry, saw %d attempts", calls.Load())
	}
}

func TestCreateSaleUndecodableErrorBody(t *testing.T) {
	cl, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<html>nope</html>`))
	}))

	_, err := cl.CreateSale(context.Background(), CreateSaleRequest{PaymentMethod: "cash"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("a 4xx is still a declared refusal, got %v", err)
	}
	if apiErr.Code != "REJECTED" {
		t.Fatalf("unexpected code %q", apiErr.Code)
	}
}

func TestSearchProductsRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	cl, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("search") != "amox" {
			t.Errorf("unexpected search term %q", r.URL.Query().Get("search"))
		}
		_, _ = w.Write([]byte(`{"data":[{"productId":"P-001","name":"Amoxicillin 500mg","unitPrice":"52.50","stockQuantity":40}]}`))
	}))
	cl.Lookup.BaseBackoff = time.Millisecond

	products, err := cl.SearchProducts(context.Background(), "amox")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(products) != 1 || products[0].ID != "P-001" {
		t.Fatalf("unexpected products: %+v", products)
	}
	if !products[0].UnitPrice.Equal(decimal.RequireFromString("52.50")) {
		t.Fatalf("unexpected unit price %s", products[0].UnitPrice)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected a retry, saw %d attempts", calls.Load())
	}
}

func TestGetProductFiltersByID(t *testing.T) {
	mock := NewMockClient()
	p, err := GetProduct(context.Background(), mock, "P-002")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Name != "Paracetamol 500mg" {
		t.Fatalf("unexpected product: %+v", p)
	}

	_, err = GetProduct(context.Background(), mock, "P-404")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func contextWithToken(token string) context.Context {
	return common.WithAuth(context.Background(), common.AuthContext{OperatorID: "op-1", Role: "cashier", Token: token})
}
