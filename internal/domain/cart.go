package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidQuantity indicates a cart mutation would produce a negative
// quantity.
var ErrInvalidQuantity = errors.New("cart: invalid quantity")

// LineItem is one product position inside a Cart. It is owned exclusively by
// the cart holding it and mutated only through cart operations.
type LineItem struct {
	ProductID string
	Barcode   string
	Name      string
	UnitPrice Money
	Quantity  int
	// StockSnapshot is the stock level observed when the line was added. It
	// is display data only and may be stale; availability is re-read from
	// the store before checkout.
	StockSnapshot int
}

// Subtotal derives the line amount, rounded half-up at the line level so
// rounding error never compounds across lines.
func (li LineItem) Subtotal() Money {
	return li.UnitPrice.MulInt(li.Quantity)
}

// HasStock reports whether the snapshot covers the requested quantity. Purely
// advisory.
func (li LineItem) HasStock() bool {
	return li.StockSnapshot >= li.Quantity
}

// Cart accumulates the line items of one in-progress sale. It keeps insertion
// order for display and at most one line per product identity. A cart belongs
// to a single register session and is not safe for concurrent use.
type Cart struct {
	order []string
	lines map[string]*LineItem
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{lines: make(map[string]*LineItem)}
}

// AddOrIncrement merges the item into the cart: an existing line for the same
// product grows by item.Quantity, otherwise the item is appended preserving
// insertion order. Insufficient stock is not an error here; the snapshot is
// refreshed so the display can warn.
func (c *Cart) AddOrIncrement(item LineItem) error {
	if item.ProductID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidQuantity)
	}
	if line, ok := c.lines[item.ProductID]; ok {
		next := line.Quantity + item.Quantity
		if next < 0 {
			return fmt.Errorf("%w: %d for %s", ErrInvalidQuantity, next, item.ProductID)
		}
		line.Quantity = next
		line.StockSnapshot = item.StockSnapshot
		return nil
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: %d for %s", ErrInvalidQuantity, item.Quantity, item.ProductID)
	}
	copied := item
	c.lines[item.ProductID] = &copied
	c.order = append(c.order, item.ProductID)
	return nil
}

// SetQuantity replaces the quantity of the product's line. Zero removes the
// line; negative values fail with ErrInvalidQuantity.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: %d for %s", ErrInvalidQuantity, quantity, productID)
	}
	line, ok := c.lines[productID]
	if !ok {
		return nil
	}
	if quantity == 0 {
		c.Remove(productID)
		return nil
	}
	line.Quantity = quantity
	return nil
}

// Remove drops the product's line. Removing an absent product is a no-op.
func (c *Cart) Remove(productID string) {
	if _, ok := c.lines[productID]; !ok {
		return
	}
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.order = nil
	c.lines = make(map[string]*LineItem)
}

// Total sums the rounded line subtotals. An empty cart totals zero.
func (c *Cart) Total() Money {
	var total Money
	for _, id := range c.order {
		total = total.Add(c.lines[id].Subtotal())
	}
	return total
}

// ItemCount sums the quantities across all lines, for display.
func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.lines {
		count += line.Quantity
	}
	return count
}

// Len returns the number of distinct product lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart holds no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Items returns the lines in insertion order as value copies.
func (c *Cart) Items() []LineItem {
	items := make([]LineItem, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, *c.lines[id])
	}
	return items
}

// Line returns a copy of the line for the product, if present.
func (c *Cart) Line(productID string) (LineItem, bool) {
	line, ok := c.lines[productID]
	if !ok {
		return LineItem{}, false
	}
	return *line, true
}
