package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ProductID identifies a product line within a cart.
type ProductID string

// DiscountKind enumerates the supported discount strategies.
type DiscountKind string

const (
	// DiscountFixed deducts a flat amount, capped at the subtotal.
	DiscountFixed DiscountKind = "fixed"
	// DiscountPercentage deducts a percentage of the subtotal, optionally capped.
	DiscountPercentage DiscountKind = "percentage"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("product not found in cart")
	// ErrCartNotFound is returned by session stores for an unknown cart id.
	ErrCartNotFound = errors.New("cart not found")
)

// NotFoundError indicates an operation referenced a product that is not in the cart.
type NotFoundError struct {
	ProductID ProductID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found in cart", e.ProductID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// LineItem is one product line in a cart.
type LineItem struct {
	ProductID    ProductID
	Quantity     int
	Price        decimal.Decimal
	FreebieCount int
}

// BilledQuantity returns the number of units that are charged for.
func (i LineItem) BilledQuantity() int {
	return max(i.Quantity-i.FreebieCount, 0)
}

// Amount returns the billed amount of the line.
func (i LineItem) Amount() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.BilledQuantity())))
}
