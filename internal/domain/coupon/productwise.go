package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
)

type productWiseStrategy struct{}

func (productWiseStrategy) IsApplicable(c *Coupon, crt *cart.Cart) bool {
	if c.Variant != VariantProductWise || c.Validate() != nil {
		return false
	}
	if c.CartHasExcludedProduct(crt) || c.IsProductExcluded(c.ProductWise.ProductID) {
		return false
	}
	_, ok := crt.Find(c.ProductWise.ProductID)
	return ok
}

func (s productWiseStrategy) CalculateDiscount(c *Coupon, crt *cart.Cart) (decimal.Decimal, error) {
	if c.Variant != VariantProductWise {
		return zero, newError(ErrInvalidCoupon, "invalid coupon type %q for product-wise strategy", c.Variant)
	}
	if err := c.Validate(); err != nil {
		return zero, err
	}
	if !s.IsApplicable(c, crt) {
		return zero, newError(ErrNotApplicable, "required product not found in cart")
	}

	d := c.ProductWise
	item, _ := crt.Find(d.ProductID)
	discount := PercentageDiscount(item.Total(), d.Percentage)
	if d.MaxDiscountPerUnit != nil {
		limit := LineTotal(*d.MaxDiscountPerUnit, item.Quantity)
		discount = CapDiscount(discount, &limit)
	}
	return discount, nil
}

func (s productWiseStrategy) Apply(c *Coupon, crt *cart.Cart) (*UpdatedCart, error) {
	discount, err := s.CalculateDiscount(c, crt)
	if err != nil {
		return nil, err
	}
	lines := map[int64]decimal.Decimal{c.ProductWise.ProductID: discount}
	return newUpdatedCart(crt, lines, discount), nil
}
