package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/coupon"
)

// statusFor maps engine error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coupon.ErrInvalidCart), errors.Is(err, coupon.ErrInvalidCoupon):
		return http.StatusBadRequest
	case errors.Is(err, coupon.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, coupon.ErrCouponInvalid), errors.Is(err, coupon.ErrNotApplicable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the engine error. Internal failures are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	lg := zctx.From(r.Context())

	if status == http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err))
		writeJSON(w, status, encodeError(status, "internal server error"))
		return
	}

	message := coupon.Reason(err)
	if message == "" {
		message = err.Error()
	}
	lg.Info("Request rejected", zap.Int("status", status), zap.String("reason", message))
	writeJSON(w, status, encodeError(status, message))
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, encodeError(http.StatusRequestEntityTooLarge, "request body too large"))
		return
	}
	zctx.From(r.Context()).Debug("Malformed request", zap.Error(err))
	writeJSON(w, http.StatusBadRequest, encodeError(http.StatusBadRequest, err.Error()))
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
