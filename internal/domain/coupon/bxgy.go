package coupon

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
)

type bxgyStrategy struct{}

// Evaluation is the outcome of matching a BxGy coupon against a cart.
type Evaluation struct {
	// Tier is the tier level that qualified; 0 for a non-tiered coupon.
	Tier int
	// Applications is how many times the offer applies, bounded by the
	// repetition limit.
	Applications int
	// Free maps product id to the quantity given away. It never exceeds the
	// quantity of that product in the cart.
	Free map[int64]int
}

// EvaluateBxGy matches a BxGy coupon against a cart. It returns false when
// the coupon is not a well-formed BxGy coupon, the cart holds an excluded
// product, or no tier qualifies.
//
// A non-tiered coupon uses all its entries. A tiered coupon is tried tier
// by tier from the highest level down; the first tier whose buy requirement
// is met and whose get-products appear in the cart is the only one used.
func EvaluateBxGy(c *Coupon, crt *cart.Cart) (Evaluation, bool) {
	if c.Variant != VariantBxGy || c.Validate() != nil {
		return Evaluation{}, false
	}
	if c.CartHasExcludedProduct(crt) {
		return Evaluation{}, false
	}

	d := c.BxGy
	quantities := crt.Quantities()

	if !d.IsTiered() {
		return evaluateTier(d.Buy, d.Get, d.RepetitionLimit, quantities, 0)
	}

	for _, tier := range tierLevels(d) {
		buy := entriesAt(d.Buy, tier)
		get := entriesAt(d.Get, tier)
		if ev, ok := evaluateTier(buy, get, d.RepetitionLimit, quantities, tier); ok {
			return ev, true
		}
	}
	return Evaluation{}, false
}

func evaluateTier(buy, get []BxGyProduct, limit int, quantities map[int64]int, tier int) (Evaluation, bool) {
	required, inCart := 0, 0
	for _, p := range buy {
		required += p.Quantity
		inCart += quantities[p.ProductID]
	}
	if required == 0 || inCart < required {
		return Evaluation{}, false
	}

	hasGet := slices.ContainsFunc(get, func(p BxGyProduct) bool {
		return quantities[p.ProductID] > 0
	})
	if !hasGet {
		return Evaluation{}, false
	}

	applications := min(inCart/required, limit)
	free := make(map[int64]int, len(get))
	for _, p := range get {
		available := quantities[p.ProductID]
		if available == 0 {
			continue
		}
		free[p.ProductID] = min(free[p.ProductID]+p.Quantity*applications, available)
	}

	return Evaluation{Tier: tier, Applications: applications, Free: free}, true
}

// tierLevels returns the distinct tier levels of a coupon, highest first.
func tierLevels(d *BxGyDetails) []int {
	var levels []int
	for _, p := range slices.Concat(d.Buy, d.Get) {
		if !slices.Contains(levels, p.Tier) {
			levels = append(levels, p.Tier)
		}
	}
	slices.Sort(levels)
	slices.Reverse(levels)
	return levels
}

func entriesAt(entries []BxGyProduct, tier int) []BxGyProduct {
	var out []BxGyProduct
	for _, p := range entries {
		if p.Tier == tier {
			out = append(out, p)
		}
	}
	return out
}

// freeLineDiscounts prices the free quantities of an evaluation.
func freeLineDiscounts(ev Evaluation, crt *cart.Cart) (map[int64]decimal.Decimal, decimal.Decimal) {
	prices := crt.Prices()
	lines := make(map[int64]decimal.Decimal, len(ev.Free))
	total := zero
	for productID, qty := range ev.Free {
		discount := LineTotal(prices[productID], qty)
		lines[productID] = discount
		total = total.Add(discount)
	}
	return lines, total
}

func (bxgyStrategy) IsApplicable(c *Coupon, crt *cart.Cart) bool {
	_, ok := EvaluateBxGy(c, crt)
	return ok
}

func (s bxgyStrategy) CalculateDiscount(c *Coupon, crt *cart.Cart) (decimal.Decimal, error) {
	ev, err := s.evaluate(c, crt)
	if err != nil {
		return zero, err
	}
	_, total := freeLineDiscounts(ev, crt)
	return total, nil
}

func (s bxgyStrategy) Apply(c *Coupon, crt *cart.Cart) (*UpdatedCart, error) {
	ev, err := s.evaluate(c, crt)
	if err != nil {
		return nil, err
	}
	lines, total := freeLineDiscounts(ev, crt)
	return newUpdatedCart(crt, lines, total), nil
}

func (bxgyStrategy) evaluate(c *Coupon, crt *cart.Cart) (Evaluation, error) {
	if c.Variant != VariantBxGy {
		return Evaluation{}, newError(ErrInvalidCoupon, "invalid coupon type %q for bxgy strategy", c.Variant)
	}
	if err := c.Validate(); err != nil {
		return Evaluation{}, err
	}
	ev, ok := EvaluateBxGy(c, crt)
	if !ok {
		return Evaluation{}, newError(ErrNotApplicable, "bxgy coupon conditions not met")
	}
	return ev, nil
}
