package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Ledger tracks line items, freebie allocations and named discounts of a single
// cart and reconciles them into a total.
//
// Ledger is not safe for concurrent use; callers sharing a Ledger between
// goroutines must serialize access.
type Ledger struct {
	items     map[ProductID]*LineItem
	order     []ProductID
	discounts map[string]decimal.Decimal
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		items:     make(map[ProductID]*LineItem),
		discounts: make(map[string]decimal.Decimal),
	}
}

// RestoreLedger rebuilds a Ledger from lines and resolved discount values
// captured earlier with Lines and Discounts. Lines keep their given order;
// a repeated product id keeps its first line.
func RestoreLedger(lines []LineItem, discounts map[string]decimal.Decimal) *Ledger {
	l := NewLedger()
	for _, line := range lines {
		if _, ok := l.items[line.ProductID]; ok {
			continue
		}
		item := line
		l.items[line.ProductID] = &item
		l.order = append(l.order, line.ProductID)
	}
	for name, v := range discounts {
		l.discounts[name] = v
	}
	return l
}

// Add puts quantity units of the product into the cart. For a product already
// in the cart only the quantity grows; its price and freebies stay as they are.
// Inputs are not validated.
func (l *Ledger) Add(id ProductID, quantity int, price decimal.Decimal) {
	if item, ok := l.items[id]; ok {
		item.Quantity += quantity
		return
	}
	l.items[id] = &LineItem{
		ProductID: id,
		Quantity:  quantity,
		Price:     price,
	}
	l.order = append(l.order, id)
}

// Update replaces quantity and price of an existing line, keeping its freebies.
func (l *Ledger) Update(id ProductID, quantity int, price decimal.Decimal) error {
	item, ok := l.items[id]
	if !ok {
		return &NotFoundError{ProductID: id}
	}
	item.Quantity = quantity
	item.Price = price
	return nil
}

// Remove deletes the product line.
func (l *Ledger) Remove(id ProductID) error {
	if _, ok := l.items[id]; !ok {
		return &NotFoundError{ProductID: id}
	}
	delete(l.items, id)
	l.order = slices.DeleteFunc(l.order, func(v ProductID) bool { return v == id })
	return nil
}

// Destroy empties the cart: all items and all discounts.
func (l *Ledger) Destroy() {
	clear(l.items)
	clear(l.discounts)
	l.order = l.order[:0]
}

// Exists reports whether the product is in the cart.
func (l *Ledger) Exists(id ProductID) bool {
	_, ok := l.items[id]
	return ok
}

// IsEmpty reports whether the cart has no items.
func (l *Ledger) IsEmpty() bool {
	return len(l.items) == 0
}

// Items returns a copy of the current lines keyed by product.
func (l *Ledger) Items() map[ProductID]LineItem {
	out := make(map[ProductID]LineItem, len(l.items))
	for id, item := range l.items {
		out[id] = *item
	}
	return out
}

// Lines returns a copy of the current lines in insertion order.
func (l *Ledger) Lines() []LineItem {
	out := make([]LineItem, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.items[id])
	}
	return out
}

// UniqueItems returns the number of distinct products.
func (l *Ledger) UniqueItems() int {
	return len(l.items)
}

// TotalQuantity returns the number of units across all lines, freebies included.
func (l *Ledger) TotalQuantity() int {
	total := 0
	for _, item := range l.items {
		total += item.Quantity
	}
	return total
}

// Subtotal returns the billed amount before discounts. Freebie units are not billed.
func (l *Ledger) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range l.items {
		sum = sum.Add(item.Amount())
	}
	return sum
}

// DiscountOption customizes ApplyDiscount.
type DiscountOption func(*discountOptions)

type discountOptions struct {
	maxAmount decimal.NullDecimal
}

// WithMaxAmount caps a percentage discount at v.
func WithMaxAmount(v decimal.Decimal) DiscountOption {
	return func(o *discountOptions) {
		o.maxAmount = decimal.NewNullDecimal(v)
	}
}

// ApplyDiscount resolves a discount against the current subtotal and stores it
// under name, replacing any discount already stored under that name. The
// percentage base is always the raw subtotal, never net of other discounts.
// An unknown kind resolves to zero. The stored value is returned.
func (l *Ledger) ApplyDiscount(name string, kind DiscountKind, amount decimal.Decimal, opts ...DiscountOption) decimal.Decimal {
	var o discountOptions
	for _, opt := range opts {
		opt(&o)
	}

	total := l.Subtotal()
	value := decimal.Zero

	switch kind {
	case DiscountFixed:
		value = amount
	case DiscountPercentage:
		value = total.Mul(amount).Div(hundred).Round(2)
		if o.maxAmount.Valid {
			value = decimal.Min(value, o.maxAmount.Decimal)
		}
	}
	value = decimal.Min(value, total)

	l.discounts[name] = value
	return value
}

// RemoveDiscount deletes the named discount. Removing an absent name is a no-op.
func (l *Ledger) RemoveDiscount(name string) {
	delete(l.discounts, name)
}

// Discount returns the stored value of the named discount.
func (l *Ledger) Discount(name string) (decimal.Decimal, bool) {
	v, ok := l.discounts[name]
	return v, ok
}

// Discounts returns a copy of the stored discounts keyed by name.
func (l *Ledger) Discounts() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.discounts))
	for name, v := range l.discounts {
		out[name] = v
	}
	return out
}

// DiscountTotal returns the sum of all stored discounts.
func (l *Ledger) DiscountTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range l.discounts {
		sum = sum.Add(v)
	}
	return sum
}

// Total returns the subtotal minus all discounts, floored at zero.
func (l *Ledger) Total() decimal.Decimal {
	total := l.Subtotal().Sub(l.DiscountTotal())
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// ApplyFreebie grants free units of target when both condition and target are
// in the cart. The optional amount defaults to 1. Grants accumulate. When either
// product is missing nothing changes.
func (l *Ledger) ApplyFreebie(condition, target ProductID, amount ...int) {
	n := 1
	if len(amount) > 0 {
		n = amount[0]
	}
	if !l.Exists(condition) {
		return
	}
	item, ok := l.items[target]
	if !ok {
		return
	}
	item.FreebieCount += n
}
