package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-group-discount/internal/domain/customer"
)

const (
	getCustomerSQL = `SELECT id, group_id FROM customers WHERE id = $1`

	upsertCustomerSQL = `INSERT INTO customers (id, group_id, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET group_id = EXCLUDED.group_id, updated_at = now()`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// FindByID returns customer.ErrNotFound when no customer has the given id.
func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[customer.Customer])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("finding customer %q: %w", id, err)
	}
	return &c, nil
}

// Upsert assigns the customer to its group, creating the customer if needed.
func (r *CustomerRepository) Upsert(ctx context.Context, c customer.Customer) error {
	if _, err := r.pool.Exec(ctx, upsertCustomerSQL, c.ID, c.GroupID); err != nil {
		return fmt.Errorf("upserting customer %q: %w", c.ID, err)
	}
	return nil
}
