package api

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/gearbox-checkout/internal/domain/order"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), r.PathValue("id"), UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("addressId", func(e *jx.Encoder) { e.Str(o.AddressID) })
		if o.CouponID != "" {
			e.Field("couponId", func(e *jx.Encoder) { e.Str(o.CouponID) })
		}
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		e.Field("discount", func(e *jx.Encoder) { money(e, o.Discount) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("paymentStatus", func(e *jx.Encoder) { e.Str(o.PaymentStatus) })
		e.Field("captureId", func(e *jx.Encoder) { e.Str(o.CaptureID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		if len(o.Lines) > 0 {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range o.Lines {
						l := &o.Lines[i]
						e.Obj(func(e *jx.Encoder) {
							e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
							e.Field("productName", func(e *jx.Encoder) { e.Str(l.ProductName) })
							e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
							e.Field("unitPrice", func(e *jx.Encoder) { money(e, l.UnitPrice) })
						})
					}
				})
			})
		}
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
	})
}
