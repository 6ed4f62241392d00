package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// PlaceOrder places an order from the cart addressed by the token path value.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.PlaceOrder(r.Context(), r.PathValue("token"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

// EditOrder opens a recalculated cart for a placed order.
func (h *Handler) EditOrder(w http.ResponseWriter, r *http.Request) {
	c, err := h.orders.EditOrder(r.Context(), r.PathValue("orderId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}
