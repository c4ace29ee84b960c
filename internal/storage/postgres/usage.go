package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/coupon"
)

const (
	// The usage cap is re-checked by the UPDATE itself so that concurrent
	// applications cannot push usage_count past max_usage_limit.
	incrementUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1, updated_at = $2
		WHERE id = $1 AND (max_usage_limit IS NULL OR usage_count < max_usage_limit)`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`

	upsertUserUsageSQL = `INSERT INTO coupon_usage (id, coupon_id, user_id, usage_count, last_used_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (coupon_id, user_id) DO UPDATE
		SET usage_count = coupon_usage.usage_count + 1, last_used_at = EXCLUDED.last_used_at
		RETURNING usage_count, last_used_at`
)

var _ coupon.UsageRecorder = (*UsageRepository)(nil)

// UsageRepository implements coupon.UsageRecorder backed by PostgreSQL.
type UsageRepository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool, maxRetries: defaultTxRetries}
}

// RecordUsage increments the coupon's global counter and upserts the user's
// usage record in one transaction. It returns coupon.ErrUsageLimitReached
// when the global cap is already exhausted and coupon.ErrCouponNotFound when
// the coupon no longer exists.
func (r *UsageRepository) RecordUsage(ctx context.Context, ev coupon.UsageEvent) (*coupon.UsageRecord, error) {
	return runInTxWithRetry(ctx, r.pool, r.maxRetries, func(tx pgx.Tx) (*coupon.UsageRecord, error) {
		tag, err := tx.Exec(ctx, incrementUsageSQL, ev.CouponID.String(), ev.At)
		if err != nil {
			return nil, errors.Wrapf(err, "increment usage of coupon %s", ev.CouponID)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, couponExistsSQL, ev.CouponID.String()).Scan(&exists); err != nil {
				return nil, errors.Wrapf(err, "check coupon %s", ev.CouponID)
			}
			if !exists {
				return nil, coupon.ErrCouponNotFound
			}
			return nil, coupon.ErrUsageLimitReached
		}

		if ev.UserID == "" {
			return nil, nil
		}

		rec := &coupon.UsageRecord{CouponID: ev.CouponID, UserID: ev.UserID}
		var count int32
		err = tx.QueryRow(ctx, upsertUserUsageSQL, uuid.NewString(), ev.CouponID.String(), ev.UserID, ev.At).
			Scan(&count, &rec.LastUsedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "upsert usage of coupon %s for user %q", ev.CouponID, ev.UserID)
		}
		rec.Count = int(count)
		return rec, nil
	})
}
