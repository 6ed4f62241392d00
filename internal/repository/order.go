package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-group-discount/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, customer_id, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL = `SELECT id, customer_id, total, created_at, updated_at FROM orders WHERE id = $1`

	updateOrderSQL = `UPDATE orders SET total = $2, updated_at = $3 WHERE id = $1`

	insertOrderLineSQL = `INSERT INTO order_line_items (id, order_id, identifier, position, type, label,
		quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateOrderLineSQL = `UPDATE order_line_items SET position = $3, type = $4, label = $5,
		quantity = $6, unit_price = $7, total_price = $8
		WHERE order_id = $1 AND identifier = $2`

	deleteStaleOrderLinesSQL = `DELETE FROM order_line_items
		WHERE order_id = $1 AND NOT (identifier = ANY($2))`

	findOrderLinesSQL = `SELECT id, order_id, identifier, type, label, quantity, unit_price, total_price, position
		FROM order_line_items WHERE order_id = $1 ORDER BY position`

	deleteOrderLineSQL = `DELETE FROM order_line_items WHERE id = $1`
)

var (
	_ order.Repository     = (*OrderRepository)(nil)
	_ order.LineRepository = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository and order.LineRepository
// backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its lines.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createOrderSQL, o.ID, o.CustomerID, o.Total, o.CreatedAt, o.UpdatedAt); err != nil {
			return errors.Wrap(err, "insert order")
		}

		batch := &pgx.Batch{}
		for _, l := range o.Lines {
			queueInsertLine(batch, o.ID, l)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert order lines")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get loads an order with its lines. Returns order.ErrNotFound when no order
// has the given id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Order, error) {
		var o order.Order
		err := row.Scan(&o.ID, &o.CustomerID, &o.Total, &o.CreatedAt, &o.UpdatedAt)
		return o, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o.Lines, err = r.FindByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Update stores the order total and matches the persisted lines to o.Lines
// by identifier: lines missing from o.Lines are deleted, existing lines are
// updated and new ones inserted.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	identifiers := make([]string, len(o.Lines))
	for i, l := range o.Lines {
		identifiers[i] = l.Identifier
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateOrderSQL, o.ID, o.Total, o.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "update order")
		}
		if tag.RowsAffected() == 0 {
			return order.ErrNotFound
		}

		if _, err := tx.Exec(ctx, deleteStaleOrderLinesSQL, o.ID, identifiers); err != nil {
			return errors.Wrap(err, "delete stale order lines")
		}

		for _, l := range o.Lines {
			tag, err := tx.Exec(ctx, updateOrderLineSQL,
				o.ID, l.Identifier, l.Position, l.Type, l.Label, l.Quantity, l.UnitPrice, l.TotalPrice,
			)
			if err != nil {
				return errors.Wrapf(err, "update order line %s", l.Identifier)
			}
			if tag.RowsAffected() > 0 {
				continue
			}

			if _, err := tx.Exec(ctx, insertOrderLineSQL,
				l.ID, o.ID, l.Identifier, l.Position, l.Type, l.Label, l.Quantity, l.UnitPrice, l.TotalPrice,
			); err != nil {
				return errors.Wrapf(err, "insert order line %s", l.Identifier)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	return nil
}

// FindByOrder returns the persisted lines of an order ordered by position.
func (r *OrderRepository) FindByOrder(ctx context.Context, orderID string) ([]order.LineItem, error) {
	rows, err := r.pool.Query(ctx, findOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("finding lines of order %q: %w", orderID, err)
	}

	lines, err := pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("finding lines of order %q: %w", orderID, err)
	}
	return lines, nil
}

// DeleteByID deletes a single order line.
func (r *OrderRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteOrderLineSQL, id); err != nil {
		return fmt.Errorf("deleting order line %q: %w", id, err)
	}
	return nil
}

func queueInsertLine(batch *pgx.Batch, orderID string, l order.LineItem) {
	batch.Queue(insertOrderLineSQL,
		l.ID, orderID, l.Identifier, l.Position, l.Type, l.Label, l.Quantity, l.UnitPrice, l.TotalPrice,
	)
}

func scanOrderLine(row pgx.CollectableRow) (order.LineItem, error) {
	var (
		l        order.LineItem
		quantity int32
		position int32
	)
	err := row.Scan(
		&l.ID, &l.OrderID, &l.Identifier, &l.Type, &l.Label,
		&quantity, &l.UnitPrice, &l.TotalPrice, &position,
	)
	l.Quantity = int(quantity)
	l.Position = int(position)
	return l, err
}
