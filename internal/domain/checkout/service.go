// Package checkout answers which coupons apply to a cart and applies one of
// them, committing its usage.
package checkout

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
	"github.com/gautamkr538/monk-commerce-task/internal/domain/coupon"
)

const instrumentationName = "github.com/gautamkr538/monk-commerce-task/internal/domain/checkout"

// ApplicableCoupon is one entry of the applicable-coupons answer.
type ApplicableCoupon struct {
	CouponID  uuid.UUID
	Code      string
	Variant   coupon.Variant
	Discount  decimal.Decimal
	Stackable bool
	Priority  int
	// UserUsageRemaining is nil when the coupon has no per-user limit or
	// the cart carries no user.
	UserUsageRemaining *int
	// GlobalUsageRemaining is nil when the coupon has no global limit.
	GlobalUsageRemaining *int64
}

// Service evaluates carts against stored coupons.
type Service struct {
	coupons coupon.Repository
	usage   coupon.UsageRecorder
	now     func() time.Time

	tracer   trace.Tracer
	applied  metric.Int64Counter
	rejected metric.Int64Counter
}

// Option configures a Service.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the provider used for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the provider used for applied/rejected counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// NewService creates a checkout Service. Telemetry defaults to no-op
// providers.
func NewService(coupons coupon.Repository, usage coupon.UsageRecorder, opts ...Option) (*Service, error) {
	o := options{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	applied, err := meter.Int64Counter("coupon.applied",
		metric.WithDescription("Coupons successfully applied to a cart"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applied counter")
	}
	rejected, err := meter.Int64Counter("coupon.rejected",
		metric.WithDescription("Apply requests rejected by the engine"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rejected counter")
	}

	return &Service{
		coupons:  coupons,
		usage:    usage,
		now:      time.Now,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		applied:  applied,
		rejected: rejected,
	}, nil
}

// ListApplicable returns every coupon that applies to the cart with the
// discount it would give, best first: discount desc, then priority desc,
// then coupon id asc. A coupon whose evaluation fails is skipped.
func (s *Service) ListApplicable(ctx context.Context, crt *cart.Cart) ([]ApplicableCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.ListApplicable")
	defer span.End()

	if err := cart.Validate(crt); err != nil {
		return nil, err
	}

	now := s.now()
	candidates, err := s.coupons.ListValid(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list valid coupons")
		return nil, errors.Wrap(err, "list valid coupons")
	}

	lg := zctx.From(ctx)
	result := make([]ApplicableCoupon, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if !c.IsUsable(now) || c.HasReachedGlobalUsage() {
			continue
		}

		used, err := s.userUsage(ctx, c, crt)
		if err != nil {
			lg.Warn("Skipping coupon: user usage lookup failed",
				zap.Stringer("coupon_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		if crt.HasUser() && c.HasUserReachedLimit(used) {
			continue
		}

		strategy, err := coupon.StrategyFor(c.Variant)
		if err != nil {
			lg.Warn("Skipping coupon", zap.Stringer("coupon_id", c.ID), zap.Error(err))
			continue
		}
		if !strategy.IsApplicable(c, crt) {
			continue
		}
		discount, err := strategy.CalculateDiscount(c, crt)
		if err != nil {
			lg.Warn("Skipping coupon: discount calculation failed",
				zap.Stringer("coupon_id", c.ID),
				zap.Error(err),
			)
			continue
		}

		entry := ApplicableCoupon{
			CouponID:             c.ID,
			Code:                 c.Code,
			Variant:              c.Variant,
			Discount:             discount.Round(2),
			Stackable:            c.AllowStacking,
			Priority:             c.Priority,
			GlobalUsageRemaining: c.GlobalUsageRemaining(),
		}
		if crt.HasUser() {
			entry.UserUsageRemaining = c.UserUsageRemaining(used)
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, compareApplicable)
	span.SetAttributes(
		attribute.Int("coupon.candidates", len(candidates)),
		attribute.Int("coupon.applicable", len(result)),
	)
	return result, nil
}

func compareApplicable(a, b ApplicableCoupon) int {
	if c := b.Discount.Cmp(a.Discount); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.CouponID.String(), b.CouponID.String())
}

// Apply applies the coupon to the cart and commits its usage. The updated
// cart is returned only after usage was recorded.
func (s *Service) Apply(ctx context.Context, id uuid.UUID, crt *cart.Cart) (*coupon.UpdatedCart, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Apply",
		trace.WithAttributes(attribute.String("coupon.id", id.String())),
	)
	defer span.End()

	updated, err := s.apply(ctx, id, crt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply coupon")
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
		return nil, err
	}

	s.applied.Add(ctx, 1)
	return updated, nil
}

func (s *Service) apply(ctx context.Context, id uuid.UUID, crt *cart.Cart) (*coupon.UpdatedCart, error) {
	if id == uuid.Nil {
		return nil, &coupon.Error{Kind: coupon.ErrInvalidCoupon, Reason: "coupon id is required"}
	}
	if err := cart.Validate(crt); err != nil {
		return nil, err
	}

	c, err := s.coupons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, coupon.ErrCouponNotFound) {
			return nil, &coupon.Error{Kind: coupon.ErrCouponNotFound, Reason: "coupon not found with id: " + id.String()}
		}
		return nil, errors.Wrapf(err, "find coupon %s", id)
	}

	now := s.now()
	if err := c.CheckUsable(now); err != nil {
		return nil, err
	}

	if crt.HasUser() {
		used, err := s.userUsage(ctx, c, crt)
		if err != nil {
			return nil, errors.Wrap(err, "user usage")
		}
		if c.HasUserReachedLimit(used) {
			return nil, &coupon.Error{Kind: coupon.ErrNotApplicable, Reason: "user has reached usage limit for this coupon"}
		}
	}

	strategy, err := coupon.StrategyFor(c.Variant)
	if err != nil {
		return nil, err
	}
	// Apply fails with ErrNotApplicable or ErrInvalidCoupon on its own.
	updated, err := strategy.Apply(c, crt)
	if err != nil {
		return nil, err
	}

	rec, err := s.usage.RecordUsage(ctx, coupon.UsageEvent{
		CouponID: c.ID,
		UserID:   crt.UserID,
		At:       now,
	})
	if err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) {
			return nil, &coupon.Error{Kind: coupon.ErrCouponInvalid, Reason: "coupon has reached maximum usage limit"}
		}
		if errors.Is(err, coupon.ErrCouponNotFound) {
			return nil, &coupon.Error{Kind: coupon.ErrCouponNotFound, Reason: "coupon not found with id: " + c.ID.String()}
		}
		return nil, errors.Wrap(err, "record usage")
	}

	fields := []zap.Field{
		zap.Stringer("coupon_id", c.ID),
		zap.String("variant", string(c.Variant)),
		zap.String("discount", updated.TotalDiscount.StringFixed(2)),
	}
	if rec != nil {
		fields = append(fields, zap.String("user_id", rec.UserID), zap.Int("user_usage", rec.Count))
	}
	zctx.From(ctx).Info("Coupon applied", fields...)

	return updated, nil
}

// userUsage returns how often the cart's user applied the coupon. It is 0
// for anonymous carts and for coupons without a per-user limit.
func (s *Service) userUsage(ctx context.Context, c *coupon.Coupon, crt *cart.Cart) (int, error) {
	if !crt.HasUser() || c.MaxUsagePerUser == nil {
		return 0, nil
	}
	used, err := s.coupons.SumUserUsage(ctx, c.ID, crt.UserID)
	if err != nil {
		return 0, errors.Wrapf(err, "sum usage of coupon %s", c.ID)
	}
	return used, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, coupon.ErrInvalidCart):
		return "invalid_cart"
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return "invalid_coupon"
	case errors.Is(err, coupon.ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, coupon.ErrCouponInvalid):
		return "coupon_invalid"
	case errors.Is(err, coupon.ErrNotApplicable):
		return "not_applicable"
	default:
		return "internal"
	}
}
