package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/gearbox-checkout/internal/domain/address"
	"github.com/xenking/gearbox-checkout/internal/domain/cart"
	"github.com/xenking/gearbox-checkout/internal/domain/checkout"
	"github.com/xenking/gearbox-checkout/internal/domain/coupon"
	"github.com/xenking/gearbox-checkout/internal/domain/order"
	"github.com/xenking/gearbox-checkout/internal/domain/product"
	"github.com/xenking/gearbox-checkout/internal/payment"
)

// writeError emits the uniform {code, message} error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respond(w, r, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// handleError maps domain errors to HTTP status codes. Unknown errors are
// logged and reported as an opaque 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrMissingAddress),
		errors.Is(err, checkout.ErrMissingCapture):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return

	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return

	case errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, address.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
		return

	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrNotYetActive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrLimitReached):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return

	case errors.Is(err, checkout.ErrNothingToCommit),
		errors.Is(err, checkout.ErrCouponNoLongerValid):
		writeError(w, r, http.StatusConflict, err.Error())
		return

	case errors.Is(err, payment.ErrGatewayUnreachable):
		writeError(w, r, http.StatusBadGateway, "payment gateway unavailable")
		return
	}

	var rejected *payment.RejectedError
	if errors.As(err, &rejected) {
		writeError(w, r, http.StatusUnprocessableEntity, rejected.Error())
		return
	}

	var notCaptured *payment.NotCapturedError
	if errors.As(err, &notCaptured) {
		writeError(w, r, http.StatusPaymentRequired, notCaptured.Error())
		return
	}

	var stock *checkout.InsufficientStockError
	if errors.As(err, &stock) {
		writeError(w, r, http.StatusConflict, stock.Error())
		return
	}

	var commitFailed *checkout.CommitFailedError
	if errors.As(err, &commitFailed) {
		// Already logged with the capture id by the checkout service.
		writeError(w, r, http.StatusInternalServerError, commitFailed.Error())
		return
	}

	zctx.From(r.Context()).Error("unhandled error", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, "internal error")
}
