// Package cart holds the shopping cart model evaluated by the coupon engine.
package cart

import (
	"github.com/shopspring/decimal"
)

// Item is a single cart line.
type Item struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// Total returns Price * Quantity for the line.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the set of lines a customer intends to buy. UserID is optional and
// only used for per-user usage limits.
type Cart struct {
	Items  []Item
	UserID string
}

// HasUser reports whether the cart carries a user identity.
func (c *Cart) HasUser() bool {
	return c.UserID != ""
}

// Total returns the sum of all line totals.
func (c *Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// Quantities returns the quantity per product id. Quantities of repeated
// product ids are summed, although a validated cart never repeats one.
func (c *Cart) Quantities() map[int64]int {
	m := make(map[int64]int, len(c.Items))
	for _, item := range c.Items {
		m[item.ProductID] += item.Quantity
	}
	return m
}

// Prices returns the unit price per product id. The first line wins when a
// product id repeats.
func (c *Cart) Prices() map[int64]decimal.Decimal {
	m := make(map[int64]decimal.Decimal, len(c.Items))
	for _, item := range c.Items {
		if _, ok := m[item.ProductID]; !ok {
			m[item.ProductID] = item.Price
		}
	}
	return m
}

// Find returns the line for the given product id.
func (c *Cart) Find(productID int64) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}
