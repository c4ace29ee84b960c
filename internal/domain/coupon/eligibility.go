package coupon

import (
	"slices"
	"time"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
)

// IsExpired reports whether the expiration date is set and before now.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// IsUsable reports whether the coupon is active and not expired.
func (c *Coupon) IsUsable(now time.Time) bool {
	return c.Active && !c.IsExpired(now)
}

// HasReachedGlobalUsage reports whether the global usage cap is exhausted.
func (c *Coupon) HasReachedGlobalUsage() bool {
	return c.MaxUsage != nil && c.UsageCount >= *c.MaxUsage
}

// HasUserReachedLimit reports whether a user who already applied the coupon
// used times may not apply it again.
func (c *Coupon) HasUserReachedLimit(used int) bool {
	return c.MaxUsagePerUser != nil && used >= *c.MaxUsagePerUser
}

// IsProductExcluded reports whether the coupon never discounts productID.
func (c *Coupon) IsProductExcluded(productID int64) bool {
	return slices.Contains(c.ExcludedProducts, productID)
}

// CartHasExcludedProduct reports whether any cart line is excluded. Such a
// cart makes the coupon inapplicable for every variant.
func (c *Coupon) CartHasExcludedProduct(crt *cart.Cart) bool {
	if len(c.ExcludedProducts) == 0 {
		return false
	}
	for _, item := range crt.Items {
		if c.IsProductExcluded(item.ProductID) {
			return true
		}
	}
	return false
}

// GlobalUsageRemaining returns how many more times the coupon may be applied
// across all users, or nil when there is no global cap.
func (c *Coupon) GlobalUsageRemaining() *int64 {
	if c.MaxUsage == nil {
		return nil
	}
	remaining := max(0, *c.MaxUsage-c.UsageCount)
	return &remaining
}

// UserUsageRemaining returns how many more times a user with used
// applications may apply the coupon, or nil when there is no per-user cap.
func (c *Coupon) UserUsageRemaining(used int) *int {
	if c.MaxUsagePerUser == nil {
		return nil
	}
	remaining := max(0, *c.MaxUsagePerUser-used)
	return &remaining
}

// CheckUsable returns an ErrCouponInvalid error describing why the coupon
// cannot be applied at all, or nil.
func (c *Coupon) CheckUsable(now time.Time) error {
	switch {
	case !c.Active:
		return newError(ErrCouponInvalid, "coupon is not active")
	case c.IsExpired(now):
		return newError(ErrCouponInvalid, "coupon has expired")
	case c.HasReachedGlobalUsage():
		return newError(ErrCouponInvalid, "coupon has reached maximum usage limit")
	}
	return nil
}
