package api

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/gearbox-checkout/internal/domain/checkout"
)

func (h *Handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var couponCode string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "couponCode" {
			v, err := d.Str()
			couponCode = v
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.checkout.CreateIntent(r.Context(), UserID(r.Context()), couponCode)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("intentId", func(e *jx.Encoder) { e.Str(result.IntentID) })
			e.Field("subtotal", func(e *jx.Encoder) { money(e, result.Review.Subtotal) })
			e.Field("discount", func(e *jx.Encoder) { money(e, result.Review.Discount) })
			e.Field("total", func(e *jx.Encoder) { money(e, result.Review.Total) })
			if len(result.Review.Dropped) > 0 {
				e.Field("dropped", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, id := range result.Review.Dropped {
							e.Str(id)
						}
					})
				})
			}
		})
	})
}

func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	var intentID string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "intentId" {
			v, err := d.Str()
			intentID = v
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if intentID == "" {
		writeError(w, r, http.StatusBadRequest, "intentId is required")
		return
	}

	captured, err := h.checkout.Capture(r.Context(), intentID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("captureId", func(e *jx.Encoder) { e.Str(captured.ID) })
			e.Field("status", func(e *jx.Encoder) { e.Str(captured.Status) })
		})
	})
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	req := checkout.FinalizeRequest{UserID: UserID(r.Context())}
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "addressId":
			v, err := d.Str()
			req.AddressID = v
			return err
		case "couponCode":
			v, err := d.Str()
			req.CouponCode = v
			return err
		case "captureId":
			v, err := d.Str()
			req.CaptureID = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.checkout.Finalize(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}
