package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item that can be put into a cart.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Repository defines catalog lookups and seeding.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	Upsert(ctx context.Context, p Product) error
}
