// Package api exposes the storefront checkout flow over HTTP. Handlers decode
// requests, delegate to the domain services, and map domain errors to
// status codes; no business logic lives here.
package api

import (
	"net/http"

	"github.com/xenking/gearbox-checkout/internal/domain/auth"
	"github.com/xenking/gearbox-checkout/internal/domain/cart"
	"github.com/xenking/gearbox-checkout/internal/domain/checkout"
	"github.com/xenking/gearbox-checkout/internal/domain/order"
)

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	carts    *cart.Service
	checkout *checkout.Service
	orders   order.Store
	apikeys  auth.Repository
	pepper   string
}

// NewHandler constructs a Handler with the required domain dependencies.
// The pepper is the HMAC secret API keys are hashed with.
func NewHandler(
	carts *cart.Service,
	checkoutSvc *checkout.Service,
	orders order.Store,
	apikeys auth.Repository,
	pepper string,
) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkoutSvc,
		orders:   orders,
		apikeys:  apikeys,
		pepper:   pepper,
	}
}

// Routes returns the authenticated API router. Health probes are mounted
// separately and do not pass through authentication.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart", h.addCartLine)
	mux.HandleFunc("PUT /api/cart/{id}", h.updateCartLine)
	mux.HandleFunc("DELETE /api/cart/{id}", h.deleteCartLine)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)

	mux.HandleFunc("POST /api/checkout/create-intent", h.createIntent)
	mux.HandleFunc("POST /api/checkout/capture", h.capture)
	mux.HandleFunc("POST /api/checkout/finalize", h.finalize)

	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)

	return h.authenticate(mux)
}
