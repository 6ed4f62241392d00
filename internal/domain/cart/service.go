package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/kart-group-discount/internal/domain/customer"
	"github.com/xenking/kart-group-discount/internal/domain/product"
)

// Processor recalculates a cart for the given customer. A nil customer means
// the cart has no known customer.
type Processor interface {
	Process(ctx context.Context, c Cart, cust *customer.Customer) (Cart, error)
}

// Service encapsulates cart mutations. Every mutation is followed by a
// recalculation through the Processor.
type Service struct {
	carts     Repository
	products  product.Repository
	customers customer.Repository
	processor Processor
	now       func() time.Time
}

// NewService creates a cart Service.
func NewService(
	carts Repository,
	products product.Repository,
	customers customer.Repository,
	processor Processor,
) *Service {
	return &Service{
		carts:     carts,
		products:  products,
		customers: customers,
		processor: processor,
		now:       time.Now,
	}
}

// Create opens an empty cart for customerID, which may be empty for guests.
func (s *Service) Create(ctx context.Context, customerID string) (*Cart, error) {
	c := &Cart{
		Token:      uuid.New().String(),
		CustomerID: customerID,
		UpdatedAt:  s.now(),
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Get returns the cart stored under token.
func (s *Service) Get(ctx context.Context, token string) (*Cart, error) {
	c, err := s.carts.Get(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem puts quantity units of a product into the cart. Quantities of a
// stackable line already in the cart are summed.
func (s *Service) AddItem(ctx context.Context, token, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 || quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	c, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	if existing, ok := c.Get(p.ID); ok && existing.Stackable {
		quantity += existing.Quantity
	}
	if quantity > MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	return s.Recalculate(ctx, c.Add(NewProductLineItem(p.ID, p.Name, p.Price, quantity)))
}

// RemoveItem removes a removable line item from the cart.
func (s *Service) RemoveItem(ctx context.Context, token, itemID string) (*Cart, error) {
	c, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	li, ok := c.Get(itemID)
	if !ok {
		return nil, ErrLineItemNotFound
	}
	if !li.Removable {
		return nil, ErrNotRemovable
	}

	return s.Recalculate(ctx, c.Remove(itemID))
}

// Recalculate runs the processor over c and persists the result. A customer
// id that does not resolve is treated as an absent customer.
func (s *Service) Recalculate(ctx context.Context, c Cart) (*Cart, error) {
	var cust *customer.Customer
	if c.CustomerID != "" {
		found, err := s.customers.FindByID(ctx, c.CustomerID)
		switch {
		case errors.Is(err, customer.ErrNotFound):
		case err != nil:
			return nil, errors.Wrap(err, "get customer")
		default:
			cust = found
		}
	}

	out, err := s.processor.Process(ctx, c, cust)
	if err != nil {
		return nil, errors.Wrap(err, "process cart")
	}
	out.UpdatedAt = s.now()

	if err := s.carts.Save(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return &out, nil
}
