package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Limits enforced by Validate.
const (
	MaxItems    = 100
	MaxQuantity = 1000
)

var (
	// MaxPrice is the highest accepted unit price.
	MaxPrice = decimal.NewFromInt(1_000_000)
	// MaxTotal is the highest accepted cart total.
	MaxTotal = decimal.NewFromInt(10_000_000)
)

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid cart")

// ValidationError describes the first rule a cart violated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid cart: " + e.Reason
}

// Is makes errors.Is(err, ErrInvalid) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the structure and business limits of a cart. It reports
// the first violation found; a cart that fails is never partially processed.
func Validate(c *Cart) error {
	if c == nil {
		return invalid("cart is required")
	}
	if len(c.Items) == 0 {
		return invalid("cart cannot be empty")
	}
	if len(c.Items) > MaxItems {
		return invalid("cart cannot contain more than %d items", MaxItems)
	}

	seen := make(map[int64]struct{}, len(c.Items))
	for _, item := range c.Items {
		if _, dup := seen[item.ProductID]; dup {
			return invalid("duplicate product in cart: %d", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}

	for _, item := range c.Items {
		if err := validateItem(item); err != nil {
			return err
		}
	}

	total := c.Total()
	if total.IsNegative() {
		return invalid("cart total cannot be negative")
	}
	if total.GreaterThan(MaxTotal) {
		return invalid("cart total exceeds maximum allowed value")
	}
	return nil
}

func validateItem(item Item) error {
	switch {
	case item.ProductID <= 0:
		return invalid("invalid product id %d", item.ProductID)
	case item.Quantity <= 0:
		return invalid("invalid quantity for product %d", item.ProductID)
	case item.Quantity > MaxQuantity:
		return invalid("quantity exceeds limit for product %d", item.ProductID)
	case item.Price.IsNegative():
		return invalid("price cannot be negative for product %d", item.ProductID)
	case item.Price.GreaterThan(MaxPrice):
		return invalid("price exceeds limit for product %d", item.ProductID)
	case item.Price.Exponent() < -2:
		return invalid("price can have at most 2 decimal places for product %d", item.ProductID)
	}
	return nil
}
