package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestPercentageCalculator_Calculate(t *testing.T) {
	tests := []struct {
		name       string
		percentage decimal.Decimal
		prices     []CalculatedPrice
		want       decimal.Decimal
		wantErr    error
	}{
		{
			name:       "full discount offsets subtotal",
			percentage: d("-100"),
			prices: []CalculatedPrice{
				NewQuantityPrice(d("40"), 1),
				NewQuantityPrice(d("60"), 1),
			},
			want: d("-100"),
		},
		{
			name:       "quantities are taken from totals",
			percentage: d("-100"),
			prices: []CalculatedPrice{
				NewQuantityPrice(d("9.99"), 3),
			},
			want: d("-29.97"),
		},
		{
			name:       "partial percentage rounds to 2 dp",
			percentage: d("-15"),
			prices: []CalculatedPrice{
				NewQuantityPrice(d("9.99"), 3),
			},
			// 29.97 * 15% = 4.4955 -> 4.50
			want: d("-4.50"),
		},
		{
			name:       "surcharge",
			percentage: d("10"),
			prices: []CalculatedPrice{
				NewQuantityPrice(d("50"), 2),
			},
			want: d("10"),
		},
		{
			name:       "no prices",
			percentage: d("-100"),
			want:       decimal.Zero,
		},
		{
			name:       "below -100 rejected",
			percentage: d("-100.01"),
			prices:     []CalculatedPrice{NewQuantityPrice(d("1"), 1)},
			wantErr:    ErrPercentageOutOfRange,
		},
		{
			name:       "above 100 rejected",
			percentage: d("101"),
			prices:     []CalculatedPrice{NewQuantityPrice(d("1"), 1)},
			wantErr:    ErrPercentageOutOfRange,
		},
	}

	c := NewPercentageCalculator(DefaultPrecision)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Calculate(context.Background(), tt.percentage, tt.prices)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.TotalPrice), "expected %s, got %s", tt.want, got.TotalPrice)
			assert.True(t, got.UnitPrice.Equal(got.TotalPrice))
			assert.Equal(t, 1, got.Quantity)
		})
	}
}

func TestNewPercentageCalculator_NegativePrecision(t *testing.T) {
	c := NewPercentageCalculator(-1)
	got, err := c.Calculate(context.Background(), d("-33.33"), []CalculatedPrice{
		NewQuantityPrice(d("10.01"), 1),
	})
	require.NoError(t, err)
	// 10.01 * 33.33% = 3.336333 -> 3.34
	assert.True(t, d("-3.34").Equal(got.TotalPrice), "got %s", got.TotalPrice)
}

func TestLineItemRule_Match(t *testing.T) {
	ids := []string{"a", "b"}
	eq := NewLineItemRule(OperatorEq, ids)
	neq := NewLineItemRule(OperatorNeq, ids)

	ids[0] = "mutated"

	assert.True(t, eq.Match("a"))
	assert.True(t, eq.Match("b"))
	assert.False(t, eq.Match("c"))
	assert.False(t, neq.Match("a"))
	assert.True(t, neq.Match("c"))
}
