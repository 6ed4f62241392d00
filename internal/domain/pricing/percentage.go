package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal places prices are rounded to.
const DefaultPrecision = 2

// ErrPercentageOutOfRange is returned for percentages outside [-100, 100].
var ErrPercentageOutOfRange = errors.New("percentage out of range")

var hundred = decimal.NewFromInt(100)

var _ Calculator = (*PercentageCalculator)(nil)

// PercentageCalculator prices a percentage of the summed totals.
type PercentageCalculator struct {
	precision int32
}

// NewPercentageCalculator returns a calculator rounding to precision decimal
// places. A negative precision falls back to DefaultPrecision.
func NewPercentageCalculator(precision int32) *PercentageCalculator {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &PercentageCalculator{precision: precision}
}

// Calculate returns percentage% of the sum of the given total prices as a
// single-quantity price. Negative percentages yield negative prices.
func (c *PercentageCalculator) Calculate(_ context.Context, percentage decimal.Decimal, prices []CalculatedPrice) (CalculatedPrice, error) {
	if percentage.GreaterThan(hundred) || percentage.LessThan(hundred.Neg()) {
		return CalculatedPrice{}, errors.Wrapf(ErrPercentageOutOfRange, "percentage %s", percentage)
	}

	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p.TotalPrice)
	}

	amount := sum.Mul(percentage).Div(hundred).Round(c.precision)
	return CalculatedPrice{
		UnitPrice:  amount,
		TotalPrice: amount,
		Quantity:   1,
	}, nil
}
