package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmart/grocery-api/internal/domain/order"
)

const (
	orderColumns = `id, checkout_session_id, customer_id, total, payment_status, created_at,
		shipping_name, shipping_line1, shipping_line2, shipping_city, shipping_state,
		shipping_postal_code, shipping_country`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	insertOrderLineSQL = `INSERT INTO order_lines
		(order_id, product_id, product_name, quantity, unit_price, weight, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderBySessionSQL = `SELECT ` + orderColumns + ` FROM orders WHERE checkout_session_id = $1`

	getOrderByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 AND id = $2`

	listOrdersByCustomerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = $1 ORDER BY created_at DESC`

	getOrderLinesSQL = `SELECT product_id, product_name, quantity, unit_price, weight, image_url
		FROM order_lines WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool, tx *TxRunner) *OrderRepository {
	return &OrderRepository{pool: pool, tx: tx}
}

// Create persists a new order with its lines. The unique index on
// checkout_session_id rejects a duplicate settlement racing past the
// idempotency pre-check.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		q := queryTarget(ctx, r.pool)

		_, err := q.Exec(ctx, insertOrderSQL,
			o.ID, o.CheckoutSessionID, o.CustomerID, o.Total, o.PaymentStatus, o.CreatedAt,
			o.Shipping.Name, o.Shipping.Line1, o.Shipping.Line2, o.Shipping.City,
			o.Shipping.State, o.Shipping.PostalCode, o.Shipping.Country,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}

		for _, l := range o.Lines {
			_, err := q.Exec(ctx, insertOrderLineSQL,
				o.ID, l.ProductID, l.Name, l.Quantity, l.UnitPrice, l.Weight, l.ImageURL)
			if err != nil {
				return fmt.Errorf("creating order line: %w", err)
			}
		}
		return nil
	})
}

// GetBySessionID returns the order materialized for a checkout session.
func (r *OrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	return r.one(ctx, getOrderBySessionSQL, sessionID)
}

// GetByCustomerAndID returns the customer's order with the given id. Scoping
// by customer keeps one shopper's orders invisible to another.
func (r *OrderRepository) GetByCustomerAndID(ctx context.Context, customerID int64, id string) (*order.Order, error) {
	return r.one(ctx, getOrderByCustomerSQL, customerID, id)
}

// ListByCustomer returns the customer's orders, newest first, with lines.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]order.Order, error) {
	rows, err := queryTarget(ctx, r.pool).Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	for i := range orders {
		if orders[i].Lines, err = r.lines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepository) one(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := queryTarget(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	if o.Lines, err = r.lines(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) lines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := queryTarget(ctx, r.pool).Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading order lines: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice, &l.Weight, &l.ImageURL)
		return l, err
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.CheckoutSessionID, &o.CustomerID, &o.Total, &o.PaymentStatus, &o.CreatedAt,
		&o.Shipping.Name, &o.Shipping.Line1, &o.Shipping.Line2, &o.Shipping.City,
		&o.Shipping.State, &o.Shipping.PostalCode, &o.Shipping.Country,
	)
	return o, err
}
