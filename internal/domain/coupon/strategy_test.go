package coupon

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
)

func newCart(items ...cart.Item) *cart.Cart {
	return &cart.Cart{Items: items}
}

func line(productID int64, qty int, price string) cart.Item {
	return cart.Item{ProductID: productID, Quantity: qty, Price: d(price)}
}

func cartWiseCoupon(threshold, pct string, maxDiscount *decimal.Decimal) *Coupon {
	return &Coupon{
		ID:      uuid.New(),
		Variant: VariantCartWise,
		Active:  true,
		CartWise: &CartWiseDetails{
			Threshold:   d(threshold),
			Percentage:  d(pct),
			MaxDiscount: maxDiscount,
		},
	}
}

func productWiseCoupon(productID int64, pct string, maxPerUnit *decimal.Decimal) *Coupon {
	return &Coupon{
		ID:      uuid.New(),
		Variant: VariantProductWise,
		Active:  true,
		ProductWise: &ProductWiseDetails{
			ProductID:          productID,
			Percentage:         d(pct),
			MaxDiscountPerUnit: maxPerUnit,
		},
	}
}

func TestStrategyFor(t *testing.T) {
	for _, v := range []Variant{VariantCartWise, VariantProductWise, VariantBxGy} {
		s, err := StrategyFor(v)
		require.NoError(t, err)
		assert.NotNil(t, s)
	}

	_, err := StrategyFor(Variant("free-shipping"))
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Contains(t, err.Error(), "unsupported coupon type")
}

func TestCartWise(t *testing.T) {
	tests := []struct {
		name         string
		coupon       *Coupon
		cart         *cart.Cart
		wantDiscount string
		wantErr      error
	}{
		{
			name:         "threshold met",
			coupon:       cartWiseCoupon("100", "10", nil),
			cart:         newCart(line(1, 1, "80"), line(2, 1, "30")),
			wantDiscount: "11.00",
		},
		{
			name:         "discount capped",
			coupon:       cartWiseCoupon("100", "20", dp("50")),
			cart:         newCart(line(1, 3, "100")),
			wantDiscount: "50.00",
		},
		{
			name:         "threshold met exactly",
			coupon:       cartWiseCoupon("100", "10", nil),
			cart:         newCart(line(1, 1, "100")),
			wantDiscount: "10.00",
		},
		{
			name:    "threshold not met",
			coupon:  cartWiseCoupon("100", "10", nil),
			cart:    newCart(line(1, 1, "99.99")),
			wantErr: ErrNotApplicable,
		},
		{
			name: "excluded product blocks coupon",
			coupon: func() *Coupon {
				c := cartWiseCoupon("10", "10", nil)
				c.ExcludedProducts = []int64{2}
				return c
			}(),
			cart:    newCart(line(1, 1, "500"), line(2, 1, "5")),
			wantErr: ErrNotApplicable,
		},
		{
			name: "malformed percentage",
			coupon: func() *Coupon {
				c := cartWiseCoupon("10", "120", nil)
				return c
			}(),
			cart:    newCart(line(1, 1, "500")),
			wantErr: ErrInvalidCoupon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := StrategyFor(VariantCartWise)
			require.NoError(t, err)

			got, err := s.CalculateDiscount(tt.coupon, tt.cart)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, s.IsApplicable(tt.coupon, tt.cart))
				return
			}

			require.NoError(t, err)
			assert.True(t, s.IsApplicable(tt.coupon, tt.cart))
			assert.True(t, d(tt.wantDiscount).Equal(got), "expected %s, got %s", tt.wantDiscount, got)
		})
	}
}

func TestCartWise_Apply(t *testing.T) {
	s, err := StrategyFor(VariantCartWise)
	require.NoError(t, err)

	updated, err := s.Apply(cartWiseCoupon("100", "10", nil), newCart(line(1, 1, "80"), line(2, 1, "30")))
	require.NoError(t, err)

	require.Len(t, updated.Items, 2)
	for _, item := range updated.Items {
		assert.True(t, item.Discount.IsZero(), "cart-wise coupons report the discount at cart level only")
	}
	assert.True(t, d("110").Equal(updated.TotalPrice))
	assert.True(t, d("11").Equal(updated.TotalDiscount))
	assert.True(t, d("99").Equal(updated.FinalPrice))
	assert.Equal(t, "99.00", updated.FinalPrice.StringFixed(2))
}

func TestProductWise(t *testing.T) {
	tests := []struct {
		name         string
		coupon       *Coupon
		cart         *cart.Cart
		wantDiscount string
		wantErr      error
	}{
		{
			name:         "per-unit cap applies",
			coupon:       productWiseCoupon(1, "50", dp("30")),
			cart:         newCart(line(1, 2, "100")),
			wantDiscount: "60.00",
		},
		{
			name:         "uncapped",
			coupon:       productWiseCoupon(1, "25", nil),
			cart:         newCart(line(1, 3, "9.99"), line(2, 1, "50")),
			wantDiscount: "7.49",
		},
		{
			name:         "cap above raw discount",
			coupon:       productWiseCoupon(1, "10", dp("30")),
			cart:         newCart(line(1, 2, "100")),
			wantDiscount: "20.00",
		},
		{
			name:    "target missing",
			coupon:  productWiseCoupon(3, "10", nil),
			cart:    newCart(line(1, 2, "100")),
			wantErr: ErrNotApplicable,
		},
		{
			name: "target excluded",
			coupon: func() *Coupon {
				c := productWiseCoupon(1, "10", nil)
				c.ExcludedProducts = []int64{1}
				return c
			}(),
			cart:    newCart(line(1, 2, "100")),
			wantErr: ErrNotApplicable,
		},
		{
			name: "other excluded product in cart",
			coupon: func() *Coupon {
				c := productWiseCoupon(1, "10", nil)
				c.ExcludedProducts = []int64{9}
				return c
			}(),
			cart:    newCart(line(1, 2, "100"), line(9, 1, "1")),
			wantErr: ErrNotApplicable,
		},
		{
			name: "missing payload",
			coupon: &Coupon{
				ID:      uuid.New(),
				Variant: VariantProductWise,
				Active:  true,
			},
			cart:    newCart(line(1, 2, "100")),
			wantErr: ErrInvalidCoupon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := StrategyFor(VariantProductWise)
			require.NoError(t, err)

			got, err := s.CalculateDiscount(tt.coupon, tt.cart)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, s.IsApplicable(tt.coupon, tt.cart))
				return
			}

			require.NoError(t, err)
			assert.True(t, s.IsApplicable(tt.coupon, tt.cart))
			assert.True(t, d(tt.wantDiscount).Equal(got), "expected %s, got %s", tt.wantDiscount, got)
		})
	}
}

func TestProductWise_Apply(t *testing.T) {
	s, err := StrategyFor(VariantProductWise)
	require.NoError(t, err)

	updated, err := s.Apply(productWiseCoupon(1, "50", dp("30")), newCart(line(2, 1, "10"), line(1, 2, "100")))
	require.NoError(t, err)

	require.Len(t, updated.Items, 2)
	assert.Equal(t, int64(2), updated.Items[0].ProductID)
	assert.True(t, updated.Items[0].Discount.IsZero())
	assert.Equal(t, int64(1), updated.Items[1].ProductID)
	assert.True(t, d("60").Equal(updated.Items[1].Discount))
	assert.True(t, d("210").Equal(updated.TotalPrice))
	assert.True(t, d("60").Equal(updated.TotalDiscount))
	assert.True(t, d("150").Equal(updated.FinalPrice))
}

func TestStrategy_WrongVariant(t *testing.T) {
	s, err := StrategyFor(VariantCartWise)
	require.NoError(t, err)

	c := productWiseCoupon(1, "10", nil)
	crt := newCart(line(1, 1, "100"))
	assert.False(t, s.IsApplicable(c, crt))

	_, err = s.CalculateDiscount(c, crt)
	require.ErrorIs(t, err, ErrInvalidCoupon)

	_, err = s.Apply(c, crt)
	require.ErrorIs(t, err, ErrInvalidCoupon)
}
