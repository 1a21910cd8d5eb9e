package api

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/gearbox-checkout/internal/domain/cart"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Get(r.Context(), UserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeCartView(e, view)
	})
}

func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		quantity  int
		variant   cart.Variant
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			productID = v
			return err
		case "quantity":
			v, err := d.Int()
			quantity = v
			return err
		case "color":
			v, err := d.Str()
			variant.Color = v
			return err
		case "size":
			v, err := d.Str()
			variant.Size = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	line, err := h.carts.AddLine(r.Context(), UserID(r.Context()), productID, quantity, variant)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, func(e *jx.Encoder) {
		encodeCartLine(e, line)
	})
}

func (h *Handler) updateCartLine(w http.ResponseWriter, r *http.Request) {
	var quantity int
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "quantity" {
			v, err := d.Int()
			quantity = v
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	line, err := h.carts.UpdateLineQty(r.Context(), UserID(r.Context()), r.PathValue("id"), quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, func(e *jx.Encoder) {
		encodeCartLine(e, line)
	})
}

func (h *Handler) deleteCartLine(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveLine(r.Context(), UserID(r.Context()), r.PathValue("id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), UserID(r.Context())); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeCartView(e *jx.Encoder, view *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range view.Lines {
					l := &view.Lines[i]
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
						e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, l.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						if l.Variant.Color != "" {
							e.Field("color", func(e *jx.Encoder) { e.Str(l.Variant.Color) })
						}
						if l.Variant.Size != "" {
							e.Field("size", func(e *jx.Encoder) { e.Str(l.Variant.Size) })
						}
						if l.ImageURL != "" {
							e.Field("imageUrl", func(e *jx.Encoder) { e.Str(l.ImageURL) })
						}
					})
				}
			})
		})
		if len(view.Dropped) > 0 {
			e.Field("dropped", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, id := range view.Dropped {
						e.Str(id)
					}
				})
			})
		}
		e.Field("subtotal", func(e *jx.Encoder) { money(e, view.Subtotal) })
	})
}

func encodeCartLine(e *jx.Encoder, l *cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
		e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		if l.Variant.Color != "" {
			e.Field("color", func(e *jx.Encoder) { e.Str(l.Variant.Color) })
		}
		if l.Variant.Size != "" {
			e.Field("size", func(e *jx.Encoder) { e.Str(l.Variant.Size) })
		}
	})
}
