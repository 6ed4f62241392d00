package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
)

type createCartRequest struct {
	CustomerID string
}

type addItemRequest struct {
	ProductID string
	Quantity  int
}

// CreateCart opens a cart for the optional customer in the request body.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req createCartRequest
	if err := readBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "customerId":
			v, err := d.Str()
			req.CustomerID = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.carts.Create(r.Context(), req.CustomerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCart(w, http.StatusCreated, c)
}

// GetCart returns the cart addressed by the token path value.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("token"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

// AddItem adds a product to the cart and returns the recalculated cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := readBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			req.ProductID = v
			return err
		case "quantity":
			v, err := d.Int()
			req.Quantity = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	c, err := h.carts.AddItem(r.Context(), r.PathValue("token"), req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

// RemoveItem removes a line item and returns the recalculated cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("token"), r.PathValue("itemId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

// RecalculateCart recalculates the cart without changing its items.
func (h *Handler) RecalculateCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.carts.Get(ctx, r.PathValue("token"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err = h.carts.Recalculate(ctx, *c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c)
}

func writeCart(w http.ResponseWriter, status int, c *cart.Cart) {
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeCart(e, c)
	})
}
