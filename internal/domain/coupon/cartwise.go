package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
)

type cartWiseStrategy struct{}

// eligibleTotal sums the lines the coupon may discount.
func eligibleTotal(c *Coupon, crt *cart.Cart) decimal.Decimal {
	sum := zero
	for _, item := range crt.Items {
		if c.IsProductExcluded(item.ProductID) {
			continue
		}
		sum = sum.Add(item.Total())
	}
	return sum
}

func (cartWiseStrategy) IsApplicable(c *Coupon, crt *cart.Cart) bool {
	if c.Variant != VariantCartWise || c.Validate() != nil {
		return false
	}
	if c.CartHasExcludedProduct(crt) {
		return false
	}
	return eligibleTotal(c, crt).GreaterThanOrEqual(c.CartWise.Threshold)
}

func (s cartWiseStrategy) CalculateDiscount(c *Coupon, crt *cart.Cart) (decimal.Decimal, error) {
	if c.Variant != VariantCartWise {
		return zero, newError(ErrInvalidCoupon, "invalid coupon type %q for cart-wise strategy", c.Variant)
	}
	if err := c.Validate(); err != nil {
		return zero, err
	}
	if !s.IsApplicable(c, crt) {
		return zero, newError(ErrNotApplicable, "cart total does not meet the threshold amount")
	}

	d := c.CartWise
	discount := PercentageDiscount(eligibleTotal(c, crt), d.Percentage)
	return CapDiscount(discount, d.MaxDiscount), nil
}

func (s cartWiseStrategy) Apply(c *Coupon, crt *cart.Cart) (*UpdatedCart, error) {
	discount, err := s.CalculateDiscount(c, crt)
	if err != nil {
		return nil, err
	}
	return newUpdatedCart(crt, nil, discount), nil
}
