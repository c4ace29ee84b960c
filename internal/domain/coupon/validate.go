package coupon

import (
	"github.com/shopspring/decimal"
)

// Validate checks that the variant tag matches the payload and that the
// payload values are within range. Failures match ErrInvalidCoupon.
func (c *Coupon) Validate() error {
	switch c.Variant {
	case VariantCartWise:
		if c.CartWise == nil {
			return newError(ErrInvalidCoupon, "cart-wise coupon %s has no details", c.ID)
		}
		return c.CartWise.validate()
	case VariantProductWise:
		if c.ProductWise == nil {
			return newError(ErrInvalidCoupon, "product-wise coupon %s has no details", c.ID)
		}
		return c.ProductWise.validate()
	case VariantBxGy:
		if c.BxGy == nil {
			return newError(ErrInvalidCoupon, "bxgy coupon %s has no details", c.ID)
		}
		return c.BxGy.validate()
	default:
		return newError(ErrInvalidCoupon, "unsupported coupon type: %q", c.Variant)
	}
}

func (d *CartWiseDetails) validate() error {
	if d.Threshold.IsNegative() {
		return newError(ErrInvalidCoupon, "threshold amount cannot be negative")
	}
	if err := validatePercentage(d.Percentage); err != nil {
		return err
	}
	if d.MaxDiscount != nil && d.MaxDiscount.IsNegative() {
		return newError(ErrInvalidCoupon, "max discount amount cannot be negative")
	}
	return nil
}

func (d *ProductWiseDetails) validate() error {
	if d.ProductID <= 0 {
		return newError(ErrInvalidCoupon, "invalid target product id %d", d.ProductID)
	}
	if err := validatePercentage(d.Percentage); err != nil {
		return err
	}
	if d.MaxDiscountPerUnit != nil && d.MaxDiscountPerUnit.IsNegative() {
		return newError(ErrInvalidCoupon, "max discount per product cannot be negative")
	}
	return nil
}

func (d *BxGyDetails) validate() error {
	if len(d.Buy) == 0 {
		return newError(ErrInvalidCoupon, "bxgy coupon requires buy products")
	}
	if len(d.Get) == 0 {
		return newError(ErrInvalidCoupon, "bxgy coupon requires get products")
	}
	if d.RepetitionLimit < 1 {
		return newError(ErrInvalidCoupon, "repetition limit must be at least 1")
	}

	buyTiers := make(map[int]struct{}, len(d.Buy))
	for _, p := range d.Buy {
		if err := p.validate(); err != nil {
			return err
		}
		buyTiers[p.Tier] = struct{}{}
	}
	for _, p := range d.Get {
		if err := p.validate(); err != nil {
			return err
		}
		if _, ok := buyTiers[p.Tier]; !ok && d.IsTiered() {
			return newError(ErrInvalidCoupon, "tier %d has get products but no buy products", p.Tier)
		}
	}
	return nil
}

func (p BxGyProduct) validate() error {
	switch {
	case p.ProductID <= 0:
		return newError(ErrInvalidCoupon, "invalid product id %d", p.ProductID)
	case p.Quantity < 1:
		return newError(ErrInvalidCoupon, "quantity must be positive for product %d", p.ProductID)
	case p.Tier < 1:
		return newError(ErrInvalidCoupon, "tier level must be at least 1 for product %d", p.ProductID)
	}
	return nil
}

func validatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return newError(ErrInvalidCoupon, "discount percentage must be between 0 and 100")
	}
	return nil
}
