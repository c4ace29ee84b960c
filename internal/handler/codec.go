package handler

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/gautamkr538/monk-commerce-task/internal/domain/cart"
	"github.com/gautamkr538/monk-commerce-task/internal/domain/checkout"
	"github.com/gautamkr538/monk-commerce-task/internal/domain/coupon"
)

// decodeError marks a request body that is not valid JSON or has fields of
// the wrong type.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return "malformed request body: " + e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}

// decodeCartRequest reads {"cart": {"items": [...], "user_id": "..."}}.
// A missing cart yields a nil *cart.Cart, which the service rejects.
func decodeCartRequest(r io.Reader) (*cart.Cart, error) {
	var crt *cart.Cart
	d := jx.Decode(r, 4096)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "cart":
			if d.Next() == jx.Null {
				return d.Null()
			}
			c, err := decodeCart(d)
			if err != nil {
				return errors.Wrap(err, "cart")
			}
			crt = c
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, &decodeError{err: err}
	}
	return crt, nil
}

func decodeCart(d *jx.Decoder) (*cart.Cart, error) {
	var c cart.Cart
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return errors.Wrapf(err, "items[%d]", len(c.Items))
				}
				c.Items = append(c.Items, item)
				return nil
			})
		case "user_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "user_id")
			}
			c.UserID = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeItem(d *jx.Decoder) (cart.Item, error) {
	var item cart.Item
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "product_id":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "product_id")
			}
			item.ProductID = v
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			item.Quantity = v
		case "price":
			v, err := decodeMoney(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			item.Price = v
		default:
			return d.Skip()
		}
		return nil
	})
	return item, err
}

// decodeMoney accepts a JSON number or a numeric string and keeps its exact
// decimal value.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s", d.Next())
	}
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeApplicableCoupons(list []checkout.ApplicableCoupon) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("applicable_coupons", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range list {
					encodeApplicableCoupon(e, c)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeApplicableCoupon(e *jx.Encoder, c checkout.ApplicableCoupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("coupon_id", func(e *jx.Encoder) { e.Str(c.CouponID.String()) })
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Variant)) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, c.Discount) })
		e.Field("is_stackable", func(e *jx.Encoder) { e.Bool(c.Stackable) })
		e.Field("priority", func(e *jx.Encoder) { e.Int(c.Priority) })
		if c.UserUsageRemaining != nil {
			e.Field("user_usage_remaining", func(e *jx.Encoder) { e.Int(*c.UserUsageRemaining) })
		}
		if c.GlobalUsageRemaining != nil {
			e.Field("global_usage_remaining", func(e *jx.Encoder) { e.Int64(*c.GlobalUsageRemaining) })
		}
	})
}

func encodeUpdatedCart(u *coupon.UpdatedCart) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("updated_cart", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("items", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, item := range u.Items {
							e.Obj(func(e *jx.Encoder) {
								e.Field("product_id", func(e *jx.Encoder) { e.Int64(item.ProductID) })
								e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
								e.Field("price", func(e *jx.Encoder) { encodeMoney(e, item.Price) })
								e.Field("total_discount", func(e *jx.Encoder) { encodeMoney(e, item.Discount) })
							})
						}
					})
				})
				e.Field("total_price", func(e *jx.Encoder) { encodeMoney(e, u.TotalPrice) })
				e.Field("total_discount", func(e *jx.Encoder) { encodeMoney(e, u.TotalDiscount) })
				e.Field("final_price", func(e *jx.Encoder) { encodeMoney(e, u.FinalPrice) })
			})
		})
	})
	return e.Bytes()
}

func encodeError(code int, message string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	return e.Bytes()
}
