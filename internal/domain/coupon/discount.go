package coupon

import (
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// PercentageDiscount returns amount * pct / 100 rounded half-up to 2 places.
func PercentageDiscount(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).DivRound(hundred, 2)
}

// CapDiscount limits discount to limit. A nil limit leaves it unchanged.
func CapDiscount(discount decimal.Decimal, limit *decimal.Decimal) decimal.Decimal {
	if limit == nil {
		return discount
	}
	return decimal.Min(discount, *limit)
}

// FinalPrice returns total - discount, clamped at zero.
func FinalPrice(total, discount decimal.Decimal) decimal.Decimal {
	return floorAtZero(total.Sub(discount))
}

// LineTotal returns price * quantity.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
