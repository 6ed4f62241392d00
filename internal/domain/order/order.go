package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a placed order.
type Order struct {
	ID         string
	CustomerID string
	Lines      []LineItem
	Total      decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LineItem is a persisted order line. Identifier is the id the line had in
// the cart the order was placed from.
type LineItem struct {
	ID         string
	OrderID    string
	Identifier string
	Type       string
	Label      string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Position   int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Update stores the order total and makes the persisted lines match
	// o.Lines by identifier.
	Update(ctx context.Context, o *Order) error
}

// LineRepository gives direct access to persisted order lines.
type LineRepository interface {
	FindByOrder(ctx context.Context, orderID string) ([]LineItem, error)
	DeleteByID(ctx context.Context, id string) error
}
