package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/coupon"
)

const (
	selectCouponSQL = `SELECT c.id, c.code, c.type, c.description, c.is_active, c.expiration_date,
		c.usage_count, c.max_usage_limit, c.usage_limit_per_user, c.allow_stacking, c.priority,
		c.created_at, c.updated_at,
		cw.threshold_amount, cw.discount_percentage, cw.max_discount_amount,
		pw.product_id, pw.discount_percentage, pw.max_discount_per_product,
		bx.repetition_limit
		FROM coupons c
		LEFT JOIN cart_wise_coupons cw ON cw.id = c.id
		LEFT JOIN product_wise_coupons pw ON pw.id = c.id
		LEFT JOIN bxgy_coupons bx ON bx.id = c.id`

	getCouponByIDSQL = selectCouponSQL + ` WHERE c.id = $1`

	listValidCouponsSQL = selectCouponSQL + ` WHERE c.is_active
		AND (c.expiration_date IS NULL OR c.expiration_date > $1)
		AND (c.max_usage_limit IS NULL OR c.usage_count < c.max_usage_limit)
		ORDER BY c.priority DESC, c.created_at DESC`

	listBxGyProductsSQL = `SELECT bxgy_coupon_id, kind, product_id, quantity, tier_level
		FROM bxgy_products WHERE bxgy_coupon_id = ANY($1::uuid[]) ORDER BY id`

	listExcludedProductsSQL = `SELECT coupon_id, product_id
		FROM excluded_products WHERE coupon_id = ANY($1::uuid[]) ORDER BY product_id`

	sumUserUsageSQL = `SELECT COALESCE(SUM(usage_count), 0)
		FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByID loads a coupon with its variant payload and exclusions.
// Returns coupon.ErrCouponNotFound when no coupon has the id.
func (r *CouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByIDSQL, id.String())
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %s", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %s", id)
	}

	coupons := []coupon.Coupon{c}
	if err := r.loadDetails(ctx, coupons); err != nil {
		return nil, err
	}
	return &coupons[0], nil
}

// ListValid returns active, unexpired coupons under their global cap,
// highest priority first and newest first within a priority.
func (r *CouponRepository) ListValid(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listValidCouponsSQL, now)
	if err != nil {
		return nil, errors.Wrap(err, "list valid coupons")
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "list valid coupons")
	}
	if err := r.loadDetails(ctx, coupons); err != nil {
		return nil, err
	}
	return coupons, nil
}

// SumUserUsage returns how many times userID applied the coupon.
func (r *CouponRepository) SumUserUsage(ctx context.Context, couponID uuid.UUID, userID string) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, sumUserUsageSQL, couponID.String(), userID).Scan(&total); err != nil {
		return 0, errors.Wrapf(err, "sum usage of coupon %s", couponID)
	}
	return total, nil
}

// loadDetails fills BxGy entries and excluded products for coupons in two
// batched queries.
func (r *CouponRepository) loadDetails(ctx context.Context, coupons []coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	ids := make([]string, len(coupons))
	byID := make(map[uuid.UUID]*coupon.Coupon, len(coupons))
	for i := range coupons {
		ids[i] = coupons[i].ID.String()
		byID[coupons[i].ID] = &coupons[i]
	}

	rows, err := r.pool.Query(ctx, listBxGyProductsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list bxgy products")
	}
	entries, err := pgx.CollectRows(rows, scanBxGyEntry)
	if err != nil {
		return errors.Wrap(err, "list bxgy products")
	}
	for _, e := range entries {
		c, ok := byID[e.couponID]
		if !ok || c.BxGy == nil {
			continue
		}
		switch e.kind {
		case "buy":
			c.BxGy.Buy = append(c.BxGy.Buy, e.product)
		case "get":
			c.BxGy.Get = append(c.BxGy.Get, e.product)
		}
	}

	rows, err = r.pool.Query(ctx, listExcludedProductsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "list excluded products")
	}
	exclusions, err := pgx.CollectRows(rows, scanExclusion)
	if err != nil {
		return errors.Wrap(err, "list excluded products")
	}
	for _, e := range exclusions {
		if c, ok := byID[e.couponID]; ok {
			c.ExcludedProducts = append(c.ExcludedProducts, e.productID)
		}
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c               coupon.Coupon
		id              string
		variant         string
		maxUsagePerUser *int32
		priority        int32
		threshold       decimal.NullDecimal
		cartPercentage  decimal.NullDecimal
		maxDiscount     decimal.NullDecimal
		targetProduct   *int64
		productPct      decimal.NullDecimal
		maxPerUnit      decimal.NullDecimal
		repetitionLimit *int32
	)
	err := row.Scan(
		&id, &c.Code, &variant, &c.Description, &c.Active, &c.ExpiresAt,
		&c.UsageCount, &c.MaxUsage, &maxUsagePerUser, &c.AllowStacking, &priority,
		&c.CreatedAt, &c.UpdatedAt,
		&threshold, &cartPercentage, &maxDiscount,
		&targetProduct, &productPct, &maxPerUnit,
		&repetitionLimit,
	)
	if err != nil {
		return c, err
	}

	if c.ID, err = uuid.Parse(id); err != nil {
		return c, errors.Wrapf(err, "parse coupon id %q", id)
	}
	c.Variant = coupon.Variant(variant)
	c.Priority = int(priority)
	if maxUsagePerUser != nil {
		limit := int(*maxUsagePerUser)
		c.MaxUsagePerUser = &limit
	}

	// A missing detail row leaves the payload nil; Coupon.Validate reports it.
	switch c.Variant {
	case coupon.VariantCartWise:
		if threshold.Valid && cartPercentage.Valid {
			c.CartWise = &coupon.CartWiseDetails{
				Threshold:   threshold.Decimal,
				Percentage:  cartPercentage.Decimal,
				MaxDiscount: nullDecimal(maxDiscount),
			}
		}
	case coupon.VariantProductWise:
		if targetProduct != nil && productPct.Valid {
			c.ProductWise = &coupon.ProductWiseDetails{
				ProductID:          *targetProduct,
				Percentage:         productPct.Decimal,
				MaxDiscountPerUnit: nullDecimal(maxPerUnit),
			}
		}
	case coupon.VariantBxGy:
		if repetitionLimit != nil {
			c.BxGy = &coupon.BxGyDetails{RepetitionLimit: int(*repetitionLimit)}
		}
	}
	return c, nil
}

func nullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

type bxgyEntry struct {
	couponID uuid.UUID
	kind     string
	product  coupon.BxGyProduct
}

func scanBxGyEntry(row pgx.CollectableRow) (bxgyEntry, error) {
	var (
		e        bxgyEntry
		couponID string
		quantity int32
		tier     int32
	)
	if err := row.Scan(&couponID, &e.kind, &e.product.ProductID, &quantity, &tier); err != nil {
		return e, err
	}
	id, err := uuid.Parse(couponID)
	if err != nil {
		return e, errors.Wrapf(err, "parse coupon id %q", couponID)
	}
	e.couponID = id
	e.product.Quantity = int(quantity)
	e.product.Tier = int(tier)
	return e, nil
}

type exclusion struct {
	couponID  uuid.UUID
	productID int64
}

func scanExclusion(row pgx.CollectableRow) (exclusion, error) {
	var (
		e        exclusion
		couponID string
	)
	if err := row.Scan(&couponID, &e.productID); err != nil {
		return e, err
	}
	id, err := uuid.Parse(couponID)
	if err != nil {
		return e, errors.Wrapf(err, "parse coupon id %q", couponID)
	}
	e.couponID = id
	return e, nil
}
