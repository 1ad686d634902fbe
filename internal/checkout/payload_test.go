package checkout

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/apotekpos/backend-pos/internal/cart"
	"github.com/apotekpos/backend-pos/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleLines() []cart.Line {
	return []cart.Line{
		{ProductID: "P-001", Name: "Amoxicillin 500mg", UnitPrice: dec("52.50"), Quantity: 2, MaxQuantity: 40},
		{ProductID: "P-002", Name: "Paracetamol 500mg", UnitPrice: dec("12.00"), Quantity: 1, MaxQuantity: 120},
	}
}

func TestBuildCashSale(t *testing.T) {
	p, err := Builder{}.Build(sampleLines(), pricing.Default(decimal.Zero), PaymentCash, "", Customer{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(p.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(p.Items))
	}
	if !p.Subtotal.Equal(dec("117.00")) || !p.Discount.IsZero() || !p.Total.Equal(dec("117.00")) {
		t.Fatalf("unexpected totals: %s %s %s", p.Subtotal, p.Discount, p.Total)
	}
	if !p.Items[0].Subtotal.Equal(dec("105.00")) {
		t.Fatalf("unexpected line subtotal %s", p.Items[0].Subtotal)
	}
}

func TestBuildRequiresReferenceForNonCash(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentCard, PaymentMobile, PaymentBankTransfer} {
		_, err := Builder{}.Build(sampleLines(), pricing.Default(decimal.Zero), m, "  ", Customer{})
		if !errors.Is(err, ErrMissingReference) {
			t.Fatalf("%s: expected ErrMissingReference, got %v", m, err)
		}
	}
	if _, err := (Builder{}).Build(sampleLines(), pricing.Default(decimal.Zero), PaymentCard, "TRX-889", Customer{}); err != nil {
		t.Fatalf("card with reference: %v", err)
	}
}

func TestBuildRejectsUnknownMethod(t *testing.T) {
	_, err := Builder{}.Build(sampleLines(), pricing.Default(decimal.Zero), PaymentMethod("voucher"), "", Customer{})
	if !errors.Is(err, ErrUnknownPaymentMethod) {
		t.Fatalf("expected ErrUnknownPaymentMethod, got %v", err)
	}
}

func TestBuildEmptyCart(t *testing.T) {
	_, err := Builder{}.Build(nil, pricing.Default(decimal.Zero), PaymentCash, "", Customer{})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	zeroed := []cart.Line{{ProductID: "P-001", UnitPrice: dec("10"), Quantity: 0}}
	if _, err := (Builder{}).Build(zeroed, pricing.Default(decimal.Zero), PaymentCash, "", Customer{}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("zero-quantity lines must not produce a payload, got %v", err)
	}
}

func TestBuildSnapshotIsFrozen(t *testing.T) {
	lines := sampleLines()
	p, err := Builder{}.Build(lines, pricing.Default(decimal.Zero), PaymentCash, "", Customer{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	lines[0].Quantity = 99
	lines[0].Name = "mutated"
	if p.Items[0].Quantity != 2 || p.Items[0].Name != "Amoxicillin 500mg" {
		t.Fatalf("payload must not track later cart edits: %+v", p.Items[0])
	}
}

func TestBuildClampsOverCapDiscount(t *testing.T) {
	policy := pricing.Policy{Kind: pricing.KindPercentage, Value: dec("50"), Cap: dec("10")}

	p, err := Builder{}.Build(sampleLines(), policy, PaymentCash, "", Customer{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !p.Discount.Equal(dec("11.70")) {
		t.Fatalf("expected discount clamped to cap, got %s", p.Discount)
	}
	if !p.Total.Equal(dec("105.30")) {
		t.Fatalf("unexpected total %s", p.Total)
	}

	_, err = Builder{RejectOverCap: true}.Build(sampleLines(), policy, PaymentCash, "", Customer{})
	if !errors.Is(err, ErrDiscountCapExceeded) {
		t.Fatalf("expected ErrDiscountCapExceeded, got %v", err)
	}
}

func TestSaleRequestWireShape(t *testing.T) {
	p, err := Builder{}.Build(sampleLines(), pricing.Default(decimal.Zero), PaymentMobile, "QR-123", Customer{Name: "Budi", Phone: "0812"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	req := p.SaleRequest()
	if req.PaymentMethod != "mobile" || req.ReferenceNumber != "QR-123" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(req.Items) != 2 || req.Items[1].ProductID != "P-002" {
		t.Fatalf("unexpected items: %+v", req.Items)
	}
	if req.CustomerName != "Budi" || req.CustomerPhone != "0812" {
		t.Fatalf("customer not forwarded: %+v", req)
	}
	if !req.Total.Equal(p.Total) {
		t.Fatalf("totals must match payload: %s vs %s", req.Total, p.Total)
	}
}
