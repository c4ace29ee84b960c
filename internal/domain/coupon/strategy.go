package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
)

// Strategy evaluates one coupon variant against a cart.
type Strategy interface {
	// IsApplicable reports whether the cart satisfies the coupon. A coupon
	// with a malformed payload is never applicable.
	IsApplicable(c *Coupon, crt *cart.Cart) bool
	// CalculateDiscount returns the total discount. It fails with
	// ErrNotApplicable when IsApplicable is false and with ErrInvalidCoupon
	// for a malformed payload.
	CalculateDiscount(c *Coupon, crt *cart.Cart) (decimal.Decimal, error)
	// Apply returns the cart with per-line discounts and totals.
	Apply(c *Coupon, crt *cart.Cart) (*UpdatedCart, error)
}

// LineDiscount is a cart line after a coupon was applied.
type LineDiscount struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
	Discount  decimal.Decimal
}

// UpdatedCart is the result of applying a coupon. All amounts are rounded
// to 2 decimal places.
type UpdatedCart struct {
	Items         []LineDiscount
	TotalPrice    decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalPrice    decimal.Decimal
}

var (
	cartWise    Strategy = cartWiseStrategy{}
	productWise Strategy = productWiseStrategy{}
	bxgy        Strategy = bxgyStrategy{}
)

// StrategyFor returns the strategy handling the variant. Unknown variants
// fail with ErrInvalidCoupon.
func StrategyFor(v Variant) (Strategy, error) {
	switch v {
	case VariantCartWise:
		return cartWise, nil
	case VariantProductWise:
		return productWise, nil
	case VariantBxGy:
		return bxgy, nil
	default:
		return nil, newError(ErrInvalidCoupon, "unsupported coupon type: %q", v)
	}
}

// newUpdatedCart builds the result from per-line discounts. totalDiscount
// is reported at cart level and may differ from the sum of line discounts
// (cart-wise coupons leave every line at zero).
func newUpdatedCart(crt *cart.Cart, lines map[int64]decimal.Decimal, totalDiscount decimal.Decimal) *UpdatedCart {
	items := make([]LineDiscount, len(crt.Items))
	for i, item := range crt.Items {
		discount, ok := lines[item.ProductID]
		if !ok {
			discount = zero
		}
		items[i] = LineDiscount{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Discount:  discount.Round(2),
		}
	}

	total := crt.Total()
	return &UpdatedCart{
		Items:         items,
		TotalPrice:    total.Round(2),
		TotalDiscount: totalDiscount.Round(2),
		FinalPrice:    FinalPrice(total, totalDiscount).Round(2),
	}
}
