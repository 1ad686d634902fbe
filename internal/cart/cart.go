package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested line is not in the cart.
var ErrNotFound = errors.New("cart: line not found")

// ErrInvalidProduct is returned when a product snapshot cannot become a line.
var ErrInvalidProduct = errors.New("cart: invalid product")

// ErrOutOfStock is returned when adding a product whose known stock is zero.
var ErrOutOfStock = errors.New("cart: product out of stock")

// Product is the snapshot taken from a product lookup result at add time.
// Unit price and stock are frozen here; later server-side changes do not
// retroactively affect an open cart.
type Product struct {
	ID            string
	Name          string
	UnitPrice     decimal.Decimal
	StockQuantity int
}

// Line is one product's presence in the cart.
type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	// MaxQuantity is the last known available stock. It is advisory and may
	// be stale; cross-register consistency is the sales backend's problem.
	// A value below 1 means the ceiling is unknown and no clamp applies.
	MaxQuantity int
}

// Subtotal returns unit price times quantity, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the ordered working set of lines for one in-progress sale.
// It holds at most one line per product; re-adding increments instead.
// A cart is owned by exactly one register session and is not safe for
// concurrent use.
type Cart struct {
	lines []Line
	index map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

// Add appends a new line with quantity 1, or increments the existing line by
// one when the product is already present. The returned line reflects the
// state after the mutation.
func (c *Cart) Add(p Product) (Line, error) {
	if p.ID == "" {
		return Line{}, fmt.Errorf("product id required: %w", ErrInvalidProduct)
	}
	if p.UnitPrice.IsNegative() {
		return Line{}, fmt.Errorf("negative unit price: %w", ErrInvalidProduct)
	}
	if idx, ok := c.index[p.ID]; ok {
		line, _ := c.applyDelta(idx, 1)
		return line, nil
	}
	if p.StockQuantity == 0 {
		return Line{}, fmt.Errorf("%s: %w", p.ID, ErrOutOfStock)
	}
	line := Line{
		ProductID:   p.ID,
		Name:        p.Name,
		UnitPrice:   p.UnitPrice,
		Quantity:    1,
		MaxQuantity: p.StockQuantity,
	}
	c.lines = append(c.lines, line)
	c.index[p.ID] = len(c.lines) - 1
	return line, nil
}

// Increment adjusts a line's quantity by delta. When the raw result drops to
// zero or below the line is removed entirely; otherwise the result is clamped
// to the known stock ceiling. The clamp is silent so the UI can disable the
// increment control once the returned quantity equals MaxQuantity.
func (c *Cart) Increment(productID string, delta int) (Line, bool, error) {
	idx, ok := c.index[productID]
	if !ok {
		return Line{}, false, ErrNotFound
	}
	line, removed := c.applyDelta(idx, delta)
	return line, removed, nil
}

// SetQuantity replaces a line's quantity from direct numeric input.
// Sub-1 values normalise to 1; values above the ceiling clamp to it.
func (c *Cart) SetQuantity(productID string, quantity int) (Line, error) {
	idx, ok := c.index[productID]
	if !ok {
		return Line{}, ErrNotFound
	}
	if quantity < 1 {
		quantity = 1
	}
	line := &c.lines[idx]
	line.Quantity = clampCeiling(quantity, line.MaxQuantity)
	return *line, nil
}

// Remove deletes the line if present. Removing an absent product is a no-op.
func (c *Cart) Remove(productID string) {
	if idx, ok := c.index[productID]; ok {
		c.removeAt(idx)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[string]int)
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Lines returns a copy of the cart contents in insertion order. Mutating the
// returned slice never touches the cart, which is what keeps an already-built
// checkout payload stable while the operator keeps editing.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Line returns the line for the given product.
func (c *Cart) Line(productID string) (Line, bool) {
	idx, ok := c.index[productID]
	if !ok {
		return Line{}, false
	}
	return c.lines[idx], true
}

// Subtotal recomputes the sum of line subtotals. It is never cached, so it
// cannot drift from the lines it is derived from.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) applyDelta(idx, delta int) (Line, bool) {
	line := &c.lines[idx]
	raw := line.Quantity + delta
	if raw <= 0 {
		// the only path by which a line disappears through quantity math
		c.removeAt(idx)
		return Line{}, true
	}
	line.Quantity = clampCeiling(raw, line.MaxQuantity)
	return *line, false
}

func (c *Cart) removeAt(idx int) {
	delete(c.index, c.lines[idx].ProductID)
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	for i := idx; i < len(c.lines); i++ {
		c.index[c.lines[i].ProductID] = i
	}
}

func clampCeiling(q, max int) int {
	if max >= 1 && q > max {
		return max
	}
	return q
}
