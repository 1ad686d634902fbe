package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/apotekpos/backend-pos/internal/cart"
)

// Kind discriminates how a discount value is interpreted.
type Kind string

const (
	// KindPercentage discounts value percent of the subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed discounts a flat amount, never below a zero total.
	KindFixed Kind = "fixed"
)

// ErrInvalidPolicy is returned for unknown kinds or negative values.
var ErrInvalidPolicy = errors.New("pricing: invalid discount policy")

var hundred = decimal.NewFromInt(100)

// Policy is the discount applied to a cart at checkout time.
type Policy struct {
	Kind  Kind
	Value decimal.Decimal
	// Cap is the role-based ceiling expressed as a percentage of the
	// subtotal. Zero means uncapped. Requests over the cap are clamped,
	// not rejected.
	Cap decimal.Decimal
}

// ParseKind normalises a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPercentage:
		return KindPercentage, nil
	case KindFixed:
		return KindFixed, nil
	default:
		return "", ErrInvalidPolicy
	}
}

// Default returns the no-discount policy, retaining the given role cap.
func Default(cap decimal.Decimal) Policy {
	return Policy{Kind: KindPercentage, Value: decimal.Zero, Cap: cap}
}

// Validate rejects policies that cannot be evaluated at all. Values over the
// cap are fine (they clamp); negative values and unknown kinds are not.
func (p Policy) Validate() error {
	if p.Kind != KindPercentage && p.Kind != KindFixed {
		return ErrInvalidPolicy
	}
	if p.Value.IsNegative() {
		return ErrInvalidPolicy
	}
	if p.Kind == KindPercentage && p.Value.GreaterThan(hundred) {
		return ErrInvalidPolicy
	}
	return nil
}

// ExceedsCap reports whether the requested discount is above the role cap.
// Callers that are configured to reject rather than clamp use this.
func (p Policy) ExceedsCap(subtotal decimal.Decimal) bool {
	if !p.Cap.IsPositive() {
		return false
	}
	switch p.Kind {
	case KindPercentage:
		return p.Value.GreaterThan(p.Cap)
	case KindFixed:
		return subtotal.IsPositive() && p.Value.GreaterThan(capAmount(subtotal, p.Cap))
	}
	return false
}

// Totals aggregates the computed pricing components. All values are
// unrounded; Display rounds for presentation.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Display rounds each component to two decimal places. Rounding happens only
// here, at the presentation boundary, so per-line rounding error cannot
// accumulate across a large cart.
func (t Totals) Display() Totals {
	return Totals{
		Subtotal: t.Subtotal.Round(2),
		Discount: t.Discount.Round(2),
		Total:    t.Total.Round(2),
	}
}

// Compute derives subtotal, discount and total from a cart snapshot and a
// discount policy. It is pure: calling it twice on the same inputs yields
// identical totals, and an empty snapshot yields all zeros.
func Compute(lines []cart.Line, p Policy) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal = subtotal.Add(l.Subtotal())
	}

	discount := rawDiscount(subtotal, p)
	if p.Cap.IsPositive() {
		if ceiling := capAmount(subtotal, p.Cap); discount.GreaterThan(ceiling) {
			discount = ceiling
		}
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

func rawDiscount(subtotal decimal.Decimal, p Policy) decimal.Decimal {
	if p.Value.IsNegative() {
		return decimal.Zero
	}
	switch p.Kind {
	case KindPercentage:
		value := p.Value
		if value.GreaterThan(hundred) {
			value = hundred
		}
		return subtotal.Mul(value).Div(hundred)
	case KindFixed:
		return p.Value
	default:
		return decimal.Zero
	}
}

func capAmount(subtotal, cap decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(cap).Div(hundred)
}
