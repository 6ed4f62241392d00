package handler

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
	"github.com/xenking/kart-group-discount/internal/domain/discount"
	"github.com/xenking/kart-group-discount/internal/domain/order"
	"github.com/xenking/kart-group-discount/internal/domain/product"
)

// readBody decodes a JSON object body field by field. An empty body is
// accepted as an empty object, anything after the object is rejected.
func readBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	data = bytes.Trim(data, " \t\r\n")
	if len(data) == 0 {
		return nil
	}
	raw, err := jx.DecodeBytes(data).Raw()
	if err != nil {
		return errors.Wrap(err, "decode body")
	}
	if len(raw) != len(data) {
		return errors.New("unexpected data after JSON object")
	}
	if err := jx.DecodeBytes(raw).Obj(field); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// writeDomainError converts domain errors to API error responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrLineItemNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, rootMessage(err))
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrNotRemovable),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, discount.ErrIdentifierTaken):
		writeError(w, http.StatusUnprocessableEntity, rootMessage(err))
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// rootMessage returns the message of the innermost wrapped error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Float64(v.InexactFloat64())
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("token")
	e.Str(c.Token)
	if c.CustomerID != "" {
		e.FieldStart("customerId")
		e.Str(c.CustomerID)
	}
	if c.OriginalOrderID != "" {
		e.FieldStart("originalOrderId")
		e.Str(c.OriginalOrderID)
	}
	e.FieldStart("lineItems")
	e.ArrStart()
	for _, li := range c.LineItems {
		encodeLineItem(e, li)
	}
	e.ArrEnd()
	e.FieldStart("total")
	money(e, c.Total())
	e.FieldStart("updatedAt")
	e.Str(c.UpdatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeLineItem(e *jx.Encoder, li cart.LineItem) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(li.ID)
	e.FieldStart("type")
	e.Str(li.Type)
	e.FieldStart("label")
	e.Str(li.Label)
	e.FieldStart("quantity")
	e.Int(li.Quantity)
	e.FieldStart("good")
	e.Bool(li.Good)
	e.FieldStart("stackable")
	e.Bool(li.Stackable)
	e.FieldStart("removable")
	e.Bool(li.Removable)
	e.FieldStart("unitPrice")
	money(e, li.Price.UnitPrice)
	e.FieldStart("totalPrice")
	money(e, li.Price.TotalPrice)
	if def := li.PriceDefinition; def != nil {
		e.FieldStart("priceDefinition")
		e.ObjStart()
		e.FieldStart("percentage")
		money(e, def.Percentage)
		e.FieldStart("rule")
		e.ObjStart()
		e.FieldStart("operator")
		e.Str(string(def.Rule.Operator))
		e.FieldStart("ids")
		e.ArrStart()
		for _, id := range def.Rule.IDs {
			e.Str(id)
		}
		e.ArrEnd()
		e.ObjEnd()
		e.ObjEnd()
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	if o.CustomerID != "" {
		e.FieldStart("customerId")
		e.Str(o.CustomerID)
	}
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(l.ID)
		e.FieldStart("identifier")
		e.Str(l.Identifier)
		e.FieldStart("type")
		e.Str(l.Type)
		e.FieldStart("label")
		e.Str(l.Label)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		money(e, l.UnitPrice)
		e.FieldStart("totalPrice")
		money(e, l.TotalPrice)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	money(e, o.Total)
	e.ObjEnd()
}
