package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-group-discount/internal/domain/cart"
	"github.com/xenking/kart-group-discount/internal/domain/pricing"
)

const (
	getCartSQL = `SELECT token, customer_id, original_order_id, updated_at
		FROM carts WHERE token = $1`

	getCartLinesSQL = `SELECT id, type, referenced_id, label, quantity, good, stackable, removable,
		unit_price, total_price, percentage, rule_operator, rule_ids
		FROM cart_line_items WHERE cart_token = $1 ORDER BY position`

	upsertCartSQL = `INSERT INTO carts (token, customer_id, original_order_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET customer_id = EXCLUDED.customer_id,
			original_order_id = EXCLUDED.original_order_id, updated_at = EXCLUDED.updated_at`

	deleteCartLinesSQL = `DELETE FROM cart_line_items WHERE cart_token = $1`

	insertCartLineSQL = `INSERT INTO cart_line_items (cart_token, id, position, type, referenced_id, label,
		quantity, good, stackable, removable, unit_price, total_price, percentage, rule_operator, rule_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	deleteCartSQL = `DELETE FROM carts WHERE token = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Line items
// are stored in cart_line_items ordered by position.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get loads a cart with its line items. Returns cart.ErrNotFound when no cart
// has the given token.
func (r *CartRepository) Get(ctx context.Context, token string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartSQL, token)
	if err != nil {
		return nil, fmt.Errorf("getting cart %q: %w", token, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", token, err)
	}

	rows, err = r.pool.Query(ctx, getCartLinesSQL, token)
	if err != nil {
		return nil, fmt.Errorf("getting line items of cart %q: %w", token, err)
	}
	c.LineItems, err = pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("getting line items of cart %q: %w", token, err)
	}

	return &c, nil
}

// Save stores the cart and replaces its line items in one transaction.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertCartSQL, c.Token, c.CustomerID, c.OriginalOrderID, c.UpdatedAt); err != nil {
			return errors.Wrap(err, "upsert cart")
		}
		if _, err := tx.Exec(ctx, deleteCartLinesSQL, c.Token); err != nil {
			return errors.Wrap(err, "delete line items")
		}

		batch := &pgx.Batch{}
		for i, li := range c.LineItems {
			var (
				pct  decimal.NullDecimal
				op   *string
				rule []string
			)
			if def := li.PriceDefinition; def != nil {
				pct = decimal.NewNullDecimal(def.Percentage)
				o := string(def.Rule.Operator)
				op = &o
				rule = def.Rule.IDs
			}
			batch.Queue(insertCartLineSQL,
				c.Token, li.ID, i, li.Type, li.ReferencedID, li.Label,
				li.Quantity, li.Good, li.Stackable, li.Removable,
				li.UnitPrice, li.Price.TotalPrice, pct, op, rule,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert line items")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.Token, err)
	}
	return nil
}

// Delete removes the cart and its line items.
func (r *CartRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, token); err != nil {
		return fmt.Errorf("deleting cart %q: %w", token, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c         cart.Cart
		updatedAt time.Time
	)
	err := row.Scan(&c.Token, &c.CustomerID, &c.OriginalOrderID, &updatedAt)
	c.UpdatedAt = updatedAt.UTC()
	return c, err
}

func scanCartLine(row pgx.CollectableRow) (cart.LineItem, error) {
	var (
		li       cart.LineItem
		quantity int32
		total    decimal.Decimal
		pct      decimal.NullDecimal
		op       *string
		rule     []string
	)
	err := row.Scan(
		&li.ID, &li.Type, &li.ReferencedID, &li.Label, &quantity,
		&li.Good, &li.Stackable, &li.Removable,
		&li.UnitPrice, &total, &pct, &op, &rule,
	)
	if err != nil {
		return li, err
	}

	li.Quantity = int(quantity)
	li.Price = pricing.CalculatedPrice{
		UnitPrice:  li.UnitPrice,
		TotalPrice: total,
		Quantity:   li.Quantity,
	}
	if pct.Valid && op != nil {
		li.PriceDefinition = &pricing.PercentagePriceDefinition{
			Percentage: pct.Decimal,
			Rule:       pricing.NewLineItemRule(pricing.Operator(*op), rule),
		}
	}
	return li, nil
}
