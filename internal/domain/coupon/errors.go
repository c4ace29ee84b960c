package coupon

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
)

// Error kinds. Every error returned by the engine for a caller mistake or an
// unmet condition matches exactly one of them via errors.Is.
var (
	// ErrInvalidCart is returned for a structurally invalid cart.
	ErrInvalidCart = cart.ErrInvalid
	// ErrCouponNotFound is returned when no coupon has the requested id.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponInvalid is returned for inactive, expired or exhausted coupons.
	ErrCouponInvalid = errors.New("coupon is not valid")
	// ErrNotApplicable is returned when the cart does not satisfy the coupon.
	ErrNotApplicable = errors.New("coupon is not applicable to this cart")
	// ErrInvalidCoupon is returned for unknown variants or malformed payloads.
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrUsageLimitReached is returned by a UsageRecorder when the global
	// usage cap was hit at commit time.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// Error carries a human-readable reason for one of the error kinds.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Reason returns the human-readable message of a coupon or cart error, or
// an empty string when err is neither.
func Reason(err error) string {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Reason
	}
	var vErr *cart.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Reason
	}
	return ""
}
