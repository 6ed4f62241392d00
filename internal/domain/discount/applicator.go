// Package discount implements the internal customer-group discount: carts of
// customers in a configured set of groups receive one synthetic line item
// that takes 100% off the other line items.
package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
	"github.com/xenking/kart-group-discount/internal/domain/customer"
	"github.com/xenking/kart-group-discount/internal/domain/pricing"
)

const (
	// LineItemType is the type of the discount line item.
	LineItemType = "internal_discount"
	// Label is the label of the discount line item.
	Label = "Internal customer discount"
	// Identifier is the id of a new discount line item and the identifier of
	// its persisted order line.
	Identifier = "INTERNAL_DISCOUNT"
)

// percentage is applied to the targeted line items.
const percentage = -100

// ErrIdentifierTaken is returned when a line item that is not a discount
// already uses Identifier as its id.
var ErrIdentifierTaken = errors.New("line item id " + Identifier + " is reserved for the internal discount")

// Percentage returns the discount percentage.
func Percentage() decimal.Decimal {
	return decimal.NewFromInt(percentage)
}

// Config holds the discount settings.
type Config struct {
	// Active toggles the discount.
	Active bool
	// DiscountedCustomerGroup lists the eligible customer group ids.
	DiscountedCustomerGroup []string
}

// Applicator attaches the discount line item to carts of eligible customers.
type Applicator struct {
	cfg        Config
	calculator pricing.Calculator
}

// NewApplicator creates an Applicator.
func NewApplicator(cfg Config, calculator pricing.Calculator) *Applicator {
	return &Applicator{cfg: cfg, calculator: calculator}
}

// Apply returns c with the discount line item added or replaced. The cart is
// returned unchanged when it has nothing to discount, the discount is
// inactive, or cust is nil or not in an eligible group.
//
// Existing discount line items are not discount targets, so applying twice
// yields the same cart as applying once.
func (a *Applicator) Apply(ctx context.Context, c cart.Cart, cust *customer.Customer) (cart.Cart, error) {
	targets := c.Without(LineItemType)
	if targets.Len() == 0 {
		return c, nil
	}
	if !a.cfg.Active {
		return c, nil
	}
	if !cust.InGroup(a.cfg.DiscountedCustomerGroup) {
		return c, nil
	}
	if li, ok := c.Get(Identifier); ok && !isDiscount(li) {
		return c, ErrIdentifierTaken
	}

	li, ok := c.Filter(isDiscount).FindByLabel(Label)
	if !ok {
		li = NewLineItem()
	}

	def := pricing.PercentagePriceDefinition{
		Percentage: Percentage(),
		Rule:       pricing.NewLineItemRule(pricing.OperatorEq, targets.Keys()),
	}
	price, err := a.calculator.Calculate(ctx, def.Percentage, targets.Prices())
	if err != nil {
		return c, errors.Wrap(err, "calculate discount price")
	}

	li.PriceDefinition = &def
	li.Price = price
	li.UnitPrice = price.UnitPrice
	return c.Add(li), nil
}

func isDiscount(li cart.LineItem) bool {
	return li.Type == LineItemType
}

// NewLineItem returns a fresh, unpriced discount line item.
func NewLineItem() cart.LineItem {
	return cart.LineItem{
		ID:        Identifier,
		Type:      LineItemType,
		Label:     Label,
		Quantity:  1,
		Good:      false,
		Stackable: false,
		Removable: false,
	}
}
