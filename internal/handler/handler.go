// Package handler exposes the checkout service over HTTP with a JSON body
// format. Money is read as JSON numbers or strings and written as numbers
// with exactly two fraction digits.
package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
	"github.com/gautamkr538/monk-commerce-task/internal/domain/checkout"
	"github.com/gautamkr538/monk-commerce-task/internal/domain/coupon"
	"github.com/gautamkr538/monk-commerce-task/pkg/httpmiddleware"
)

// maxBodyBytes bounds request bodies. A full cart of MaxItems lines fits
// comfortably.
const maxBodyBytes = 1 << 20

// CheckoutService is the engine surface used by the handler.
type CheckoutService interface {
	ListApplicable(ctx context.Context, crt *cart.Cart) ([]checkout.ApplicableCoupon, error)
	Apply(ctx context.Context, id uuid.UUID, crt *cart.Cart) (*coupon.UpdatedCart, error)
}

var _ CheckoutService = (*checkout.Service)(nil)

// Handler serves the cart coupon endpoints.
type Handler struct {
	checkout CheckoutService
}

// NewHandler constructs a Handler.
func NewHandler(svc CheckoutService) *Handler {
	return &Handler{checkout: svc}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		fn      http.HandlerFunc
	}{
		{"POST /api/v1/cart/applicable-coupons", h.ApplicableCoupons},
		{"POST /api/v1/cart/apply-coupon/{id}", h.ApplyCoupon},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, httpmiddleware.Route(rt.pattern, rt.fn))
	}
}

// ApplicableCoupons handles POST /api/v1/cart/applicable-coupons.
func (h *Handler) ApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	crt, err := decodeCartRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}

	list, err := h.checkout.ListApplicable(r.Context(), crt)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, encodeApplicableCoupons(list))
}

// ApplyCoupon handles POST /api/v1/cart/apply-coupon/{id}.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, &coupon.Error{Kind: coupon.ErrInvalidCoupon, Reason: "invalid coupon id: " + r.PathValue("id")})
		return
	}

	crt, err := decodeCartRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}

	updated, err := h.checkout.Apply(r.Context(), id, crt)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, encodeUpdatedCart(updated))
}
