// Package checkout turns a cart into an immutable sale payload and drives its
// submission to the sales backend.
package checkout

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/apotekpos/backend-pos/internal/cart"
	"github.com/apotekpos/backend-pos/internal/pricing"
	"github.com/apotekpos/backend-pos/internal/salesapi"
)

// PaymentMethod enumerates the tender types accepted at the register.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentMobile       PaymentMethod = "mobile"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

var (
	ErrEmptyCart            = errors.New("checkout: cart is empty")
	ErrUnknownPaymentMethod = errors.New("checkout: unknown payment method")
	ErrMissingReference     = errors.New("checkout: reference number required for non-cash payment")
	ErrDiscountCapExceeded  = errors.New("checkout: discount exceeds operator cap")
	ErrCheckoutInProgress   = errors.New("checkout: already in progress")
)

// ParsePaymentMethod validates a wire value.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case PaymentCash:
		return PaymentCash, nil
	case PaymentCard:
		return PaymentCard, nil
	case PaymentMobile:
		return PaymentMobile, nil
	case PaymentBankTransfer:
		return PaymentBankTransfer, nil
	default:
		return "", ErrUnknownPaymentMethod
	}
}

// RequiresReference reports whether the tender type needs an external
// reference number.
func (m PaymentMethod) RequiresReference() bool {
	return m != PaymentCash
}

// Customer is optional walk-in customer information attached to a sale.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PayloadItem is one frozen cart line inside a payload.
type PayloadItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Payload is the finished checkout snapshot. Once built it never changes:
// later cart edits have no effect on an in-flight submission. Totals are
// display-rounded because they exist for the backend's audit trail, not for
// further arithmetic.
type Payload struct {
	Items           []PayloadItem   `json:"items"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	Customer        Customer        `json:"customer,omitempty"`
}

// Builder assembles payloads. The zero value clamps over-cap discounts the
// same way the pricing engine does; RejectOverCap turns that into a hard
// validation failure instead.
type Builder struct {
	RejectOverCap bool
}

// Build validates the checkout request and freezes the cart into a payload.
// The cart itself is left untouched.
func (b Builder) Build(lines []cart.Line, policy pricing.Policy, method PaymentMethod, reference string, customer Customer) (Payload, error) {
	if _, err := ParsePaymentMethod(string(method)); err != nil {
		return Payload{}, err
	}
	reference = strings.TrimSpace(reference)
	if method.RequiresReference() && reference == "" {
		return Payload{}, ErrMissingReference
	}
	if err := policy.Validate(); err != nil {
		return Payload{}, err
	}

	items := make([]PayloadItem, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		items = append(items, PayloadItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		})
	}
	if len(items) == 0 {
		return Payload{}, ErrEmptyCart
	}

	totals := pricing.Compute(lines, policy)
	if b.RejectOverCap && policy.ExceedsCap(totals.Subtotal) {
		return Payload{}, ErrDiscountCapExceeded
	}
	display := totals.Display()

	return Payload{
		Items:           items,
		PaymentMethod:   method,
		ReferenceNumber: reference,
		Subtotal:        display.Subtotal,
		Discount:        display.Discount,
		Total:           display.Total,
		Customer:        customer,
	}, nil
}

// SaleRequest converts the payload into the sales backend wire format.
func (p Payload) SaleRequest() salesapi.CreateSaleRequest {
	items := make([]salesapi.SaleItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, salesapi.SaleItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return salesapi.CreateSaleRequest{
		Items:           items,
		PaymentMethod:   string(p.PaymentMethod),
		ReferenceNumber: p.ReferenceNumber,
		Subtotal:        p.Subtotal,
		Discount:        p.Discount,
		Total:           p.Total,
		CustomerName:    p.Customer.Name,
		CustomerPhone:   p.Customer.Phone,
	}
}
