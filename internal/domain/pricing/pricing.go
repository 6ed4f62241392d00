package pricing

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
)

// CalculatedPrice is the result of pricing a line item.
type CalculatedPrice struct {
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Quantity   int
}

// NewQuantityPrice prices quantity units of unitPrice.
func NewQuantityPrice(unitPrice decimal.Decimal, quantity int) CalculatedPrice {
	return CalculatedPrice{
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Quantity:   quantity,
	}
}

// Operator is a line item rule comparison operator.
type Operator string

const (
	// OperatorEq matches line items whose id is in the rule set.
	OperatorEq Operator = "="
	// OperatorNeq matches line items whose id is not in the rule set.
	OperatorNeq Operator = "!="
)

// LineItemRule selects the line items a price definition applies to.
type LineItemRule struct {
	Operator Operator
	IDs      []string
}

// NewLineItemRule returns a rule over a copy of ids.
func NewLineItemRule(op Operator, ids []string) LineItemRule {
	return LineItemRule{Operator: op, IDs: slices.Clone(ids)}
}

// Match reports whether the line item id satisfies the rule.
func (r LineItemRule) Match(id string) bool {
	in := slices.Contains(r.IDs, id)
	if r.Operator == OperatorNeq {
		return !in
	}
	return in
}

// PercentagePriceDefinition describes a price computed as a percentage of
// the line items selected by Rule.
type PercentagePriceDefinition struct {
	Percentage decimal.Decimal
	Rule       LineItemRule
}

// Calculator computes percentage prices.
type Calculator interface {
	Calculate(ctx context.Context, percentage decimal.Decimal, prices []CalculatedPrice) (CalculatedPrice, error)
}
