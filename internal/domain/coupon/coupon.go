// Package coupon implements coupon definitions, eligibility checks and the
// per-variant discount strategies.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Variant is the discriminant selecting which payload a coupon carries.
type Variant string

const (
	// VariantCartWise discounts the whole cart once it reaches a threshold.
	VariantCartWise Variant = "cart-wise"
	// VariantProductWise discounts a single product line.
	VariantProductWise Variant = "product-wise"
	// VariantBxGy gives get-products for free when buy-products are present.
	VariantBxGy Variant = "bxgy"
)

// Coupon is a coupon definition: shared fields plus exactly one variant
// payload, selected by Variant.
type Coupon struct {
	ID          uuid.UUID
	Code        string
	Description string
	Variant     Variant

	Active          bool
	ExpiresAt       *time.Time
	UsageCount      int64
	MaxUsage        *int64
	MaxUsagePerUser *int
	// AllowStacking and Priority are reported to callers but not enforced.
	AllowStacking    bool
	Priority         int
	ExcludedProducts []int64

	CartWise    *CartWiseDetails
	ProductWise *ProductWiseDetails
	BxGy        *BxGyDetails

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartWiseDetails is the payload of a cart-wise coupon.
type CartWiseDetails struct {
	Threshold   decimal.Decimal
	Percentage  decimal.Decimal
	MaxDiscount *decimal.Decimal
}

// ProductWiseDetails is the payload of a product-wise coupon.
// MaxDiscountPerUnit caps the discount per unit of the target product.
type ProductWiseDetails struct {
	ProductID          int64
	Percentage         decimal.Decimal
	MaxDiscountPerUnit *decimal.Decimal
}

// BxGyProduct is one buy or get entry of a BxGy coupon.
type BxGyProduct struct {
	ProductID int64
	Quantity  int
	Tier      int
}

// BxGyDetails is the payload of a buy-X-get-Y coupon.
type BxGyDetails struct {
	Buy             []BxGyProduct
	Get             []BxGyProduct
	RepetitionLimit int
}

// IsTiered reports whether any buy or get entry sits above tier 1.
// It is always derived from the entries and never stored.
func (d *BxGyDetails) IsTiered() bool {
	for _, p := range d.Buy {
		if p.Tier > 1 {
			return true
		}
	}
	for _, p := range d.Get {
		if p.Tier > 1 {
			return true
		}
	}
	return false
}

// MaxTier returns the highest tier level used by any entry, at least 1.
func (d *BxGyDetails) MaxTier() int {
	highest := 1
	for _, p := range d.Buy {
		highest = max(highest, p.Tier)
	}
	for _, p := range d.Get {
		highest = max(highest, p.Tier)
	}
	return highest
}

// UsageRecord aggregates how often a user applied a coupon.
type UsageRecord struct {
	CouponID   uuid.UUID
	UserID     string
	Count      int
	LastUsedAt time.Time
}

// UsageEvent describes one successful application to be committed.
// UserID is empty for anonymous carts.
type UsageEvent struct {
	CouponID uuid.UUID
	UserID   string
	At       time.Time
}

// Repository provides read access to coupon definitions and usage facts.
type Repository interface {
	// FindByID returns ErrCouponNotFound when no coupon has the given id.
	FindByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
	// ListValid returns active, unexpired coupons under their global cap.
	ListValid(ctx context.Context, now time.Time) ([]Coupon, error)
	// SumUserUsage returns how many times userID applied the coupon.
	SumUserUsage(ctx context.Context, couponID uuid.UUID, userID string) (int, error)
}

// UsageRecorder commits usage of an applied coupon.
type UsageRecorder interface {
	// RecordUsage increments the global counter and upserts the per-user
	// record as one atomic unit. It returns ErrUsageLimitReached when the
	// global cap was exhausted concurrently. The record is nil when the
	// event carries no user.
	RecordUsage(ctx context.Context, ev UsageEvent) (*UsageRecord, error)
}

// GenerateCode returns a random human-readable coupon code like CPN-1A2B3C4D.
func GenerateCode() string {
	return "CPN-" + strings.ToUpper(uuid.NewString()[:8])
}
