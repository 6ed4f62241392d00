package cart

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-group-discount/internal/domain/pricing"
)

const (
	// TypeProduct is the line item type of catalog products.
	TypeProduct = "product"
	// MaxQuantity is the largest quantity a single line item may carry.
	MaxQuantity = 10000
)

var (
	// ErrNotFound is returned when a cart does not exist.
	ErrNotFound = errors.New("cart not found")
	// ErrInvalidQuantity is returned for quantities outside [1, MaxQuantity].
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 10000")
	// ErrLineItemNotFound is returned when a line item id is not in the cart.
	ErrLineItemNotFound = errors.New("line item not found")
	// ErrNotRemovable is returned when removing a line item flagged non-removable.
	ErrNotRemovable = errors.New("line item is not removable")
)

// LineItem is a single priced position of a cart.
type LineItem struct {
	ID           string
	Type         string
	ReferencedID string
	Label        string
	Quantity     int
	Good         bool
	Stackable    bool
	Removable    bool
	UnitPrice    decimal.Decimal
	Price        pricing.CalculatedPrice

	// PriceDefinition is set on line items priced relative to other items.
	PriceDefinition *pricing.PercentagePriceDefinition
}

// Cart is an ordered collection of line items. Line item ids are unique.
//
// Cart is treated as a value: methods never modify the receiver's line items
// and return a new Cart instead.
type Cart struct {
	Token      string
	CustomerID string
	// OriginalOrderID is set when the cart was opened to edit a placed order.
	OriginalOrderID string
	LineItems       []LineItem
	UpdatedAt       time.Time
}

// Len returns the number of line items.
func (c Cart) Len() int {
	return len(c.LineItems)
}

// Get returns the line item with the given id.
func (c Cart) Get(id string) (LineItem, bool) {
	i := c.index(id)
	if i < 0 {
		return LineItem{}, false
	}
	return c.LineItems[i], true
}

// FindByLabel returns the first line item with the given label.
func (c Cart) FindByLabel(label string) (LineItem, bool) {
	for _, li := range c.LineItems {
		if li.Label == label {
			return li, true
		}
	}
	return LineItem{}, false
}

// Add returns a cart with item appended, or replacing the line item with the
// same id in place.
func (c Cart) Add(item LineItem) Cart {
	items := slices.Clone(c.LineItems)
	if i := c.index(item.ID); i >= 0 {
		items[i] = item
	} else {
		items = append(items, item)
	}
	c.LineItems = items
	return c
}

// Remove returns a cart without the line item with the given id.
func (c Cart) Remove(id string) Cart {
	return c.Filter(func(li LineItem) bool { return li.ID != id })
}

// Without returns a cart without line items of the given type.
func (c Cart) Without(typ string) Cart {
	return c.Filter(func(li LineItem) bool { return li.Type != typ })
}

// Filter returns a cart with the line items for which keep returns true.
func (c Cart) Filter(keep func(LineItem) bool) Cart {
	items := make([]LineItem, 0, len(c.LineItems))
	for _, li := range c.LineItems {
		if keep(li) {
			items = append(items, li)
		}
	}
	c.LineItems = items
	return c
}

// Keys returns the line item ids in cart order.
func (c Cart) Keys() []string {
	keys := make([]string, len(c.LineItems))
	for i, li := range c.LineItems {
		keys[i] = li.ID
	}
	return keys
}

// Prices returns the calculated prices in cart order.
func (c Cart) Prices() []pricing.CalculatedPrice {
	prices := make([]pricing.CalculatedPrice, len(c.LineItems))
	for i, li := range c.LineItems {
		prices[i] = li.Price
	}
	return prices
}

// Total returns the sum of all line item total prices.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c.LineItems {
		total = total.Add(li.Price.TotalPrice)
	}
	return total
}

func (c Cart) index(id string) int {
	return slices.IndexFunc(c.LineItems, func(li LineItem) bool { return li.ID == id })
}

// NewProductLineItem builds the line item for quantity units of a product.
func NewProductLineItem(productID, label string, unitPrice decimal.Decimal, quantity int) LineItem {
	return LineItem{
		ID:           productID,
		Type:         TypeProduct,
		ReferencedID: productID,
		Label:        label,
		Quantity:     quantity,
		Good:         true,
		Stackable:    true,
		Removable:    true,
		UnitPrice:    unitPrice,
		Price:        pricing.NewQuantityPrice(unitPrice, quantity),
	}
}

// Repository persists carts.
type Repository interface {
	Get(ctx context.Context, token string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, token string) error
}
