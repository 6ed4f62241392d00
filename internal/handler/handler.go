package handler

import (
	"net/http"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
	"github.com/xenking/kart-group-discount/internal/domain/order"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

// Handler serves the cart and order API, delegating business logic to the
// cart and order services.
type Handler struct {
	carts  *cart.Service
	orders *order.Service
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(carts *cart.Service, orders *order.Service) *Handler {
	return &Handler{
		carts:  carts,
		orders: orders,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/carts", h.CreateCart)
	mux.HandleFunc("GET /api/carts/{token}", h.GetCart)
	mux.HandleFunc("POST /api/carts/{token}/items", h.AddItem)
	mux.HandleFunc("DELETE /api/carts/{token}/items/{itemId}", h.RemoveItem)
	mux.HandleFunc("POST /api/carts/{token}/recalculate", h.RecalculateCart)
	mux.HandleFunc("POST /api/carts/{token}/order", h.PlaceOrder)
	mux.HandleFunc("POST /api/orders/{orderId}/edit", h.EditOrder)
}
