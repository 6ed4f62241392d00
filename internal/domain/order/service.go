package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
)

// ErrEmptyCart is returned when placing an order from a cart without items.
var ErrEmptyCart = errors.New("cart is empty")

// Recalculator recalculates and persists a cart.
type Recalculator interface {
	Recalculate(ctx context.Context, c cart.Cart) (*cart.Cart, error)
}

// Service places orders from carts and reopens orders for editing.
type Service struct {
	carts  cart.Repository
	calc   Recalculator
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(carts cart.Repository, calc Recalculator, orders Repository) *Service {
	return &Service{
		carts:  carts,
		calc:   calc,
		orders: orders,
		now:    time.Now,
	}
}

// PlaceOrder turns the cart into an order and deletes the cart. A cart opened
// by EditOrder updates its original order instead of creating a new one.
func (s *Service) PlaceOrder(ctx context.Context, token string) (*Order, error) {
	c, err := s.carts.Get(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.Len() == 0 {
		return nil, ErrEmptyCart
	}

	// Total is floored at zero and rounded to 2 decimal places.
	total := c.Total()
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	now := s.now()
	o := &Order{
		ID:         c.OriginalOrderID,
		CustomerID: c.CustomerID,
		Total:      total,
		UpdatedAt:  now,
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
		o.CreatedAt = now
	}
	o.Lines = linesFromCart(o.ID, c)

	if c.OriginalOrderID == "" {
		err = s.orders.Create(ctx, o)
	} else {
		err = s.orders.Update(ctx, o)
	}
	if err != nil {
		return nil, errors.Wrap(err, "save order")
	}

	if err := s.carts.Delete(ctx, c.Token); err != nil {
		return nil, errors.Wrap(err, "delete cart")
	}
	return o, nil
}

// EditOrder opens a cart holding the product lines of a placed order and
// recalculates it. Recalculation reconciles the order's persisted discount
// lines.
func (s *Service) EditOrder(ctx context.Context, orderID string) (*cart.Cart, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}

	c := cart.Cart{
		Token:           uuid.New().String(),
		CustomerID:      o.CustomerID,
		OriginalOrderID: o.ID,
	}
	for _, l := range o.Lines {
		if l.Type != cart.TypeProduct {
			continue
		}
		c = c.Add(cart.NewProductLineItem(l.Identifier, l.Label, l.UnitPrice, l.Quantity))
	}

	out, err := s.calc.Recalculate(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "recalculate cart")
	}
	return out, nil
}

func linesFromCart(orderID string, c *cart.Cart) []LineItem {
	lines := make([]LineItem, len(c.LineItems))
	for i, li := range c.LineItems {
		lines[i] = LineItem{
			ID:         uuid.New().String(),
			OrderID:    orderID,
			Identifier: li.ID,
			Type:       li.Type,
			Label:      li.Label,
			Quantity:   li.Quantity,
			UnitPrice:  li.Price.UnitPrice,
			TotalPrice: li.Price.TotalPrice,
			Position:   i,
		}
	}
	return lines
}
