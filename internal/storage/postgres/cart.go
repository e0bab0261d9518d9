package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmart/grocery-api/internal/domain/cart"
)

const (
	getCartSQL = `SELECT id, customer_id, subtotal, weight, fee_applied
		FROM carts WHERE customer_id = $1`

	insertCartSQL = `INSERT INTO carts (customer_id) VALUES ($1)
		RETURNING id, customer_id, subtotal, weight, fee_applied`

	getCartLinesSQL = `SELECT l.id, l.product_id, p.name, p.cost, l.weight, p.image_url, l.quantity
		FROM cart_lines l JOIN products p ON p.id = l.product_id
		WHERE l.cart_id = $1 ORDER BY l.id`

	updateCartSQL = `UPDATE carts SET subtotal = $2, weight = $3, fee_applied = $4 WHERE id = $1`

	deleteCartLinesSQL = `DELETE FROM cart_lines WHERE cart_id = $1`

	insertCartLineSQL = `INSERT INTO cart_lines (cart_id, product_id, quantity, weight)
		VALUES ($1, $2, $3, $4)`

	cartQuantitySQL = `SELECT COALESCE(SUM(l.quantity), 0)
		FROM cart_lines l JOIN carts c ON c.id = l.cart_id
		WHERE c.customer_id = $1 AND l.product_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. It also
// serves the inventory guard's held-quantity lookups.
type CartRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool, tx *TxRunner) *CartRepository {
	return &CartRepository{pool: pool, tx: tx}
}

// GetOrCreate loads the customer's cart with its lines, creating an empty
// cart on first access.
func (r *CartRepository) GetOrCreate(ctx context.Context, customerID int64) (*cart.Cart, error) {
	q := queryTarget(ctx, r.pool)

	var c cart.Cart
	err := q.QueryRow(ctx, getCartSQL, customerID).
		Scan(&c.ID, &c.CustomerID, &c.Subtotal, &c.Weight, &c.FeeApplied)
	if errors.Is(err, pgx.ErrNoRows) {
		err = q.QueryRow(ctx, insertCartSQL, customerID).
			Scan(&c.ID, &c.CustomerID, &c.Subtotal, &c.Weight, &c.FeeApplied)
	}
	if err != nil {
		return nil, fmt.Errorf("loading cart for customer %d: %w", customerID, err)
	}

	rows, err := q.Query(ctx, getCartLinesSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("loading cart lines: %w", err)
	}
	c.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ID, &l.ProductID, &l.Name, &l.Cost, &l.Weight, &l.ImageURL, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("loading cart lines: %w", err)
	}
	return &c, nil
}

// Save persists the cart header and replaces its lines in one transaction,
// so a reader never observes derived fields inconsistent with the lines.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	return r.tx.InTx(ctx, func(ctx context.Context) error {
		q := queryTarget(ctx, r.pool)

		if _, err := q.Exec(ctx, updateCartSQL, c.ID, c.Subtotal, c.Weight, c.FeeApplied); err != nil {
			return fmt.Errorf("updating cart %d: %w", c.ID, err)
		}
		if _, err := q.Exec(ctx, deleteCartLinesSQL, c.ID); err != nil {
			return fmt.Errorf("clearing cart lines: %w", err)
		}
		for _, l := range c.Lines {
			if _, err := q.Exec(ctx, insertCartLineSQL, c.ID, l.ProductID, l.Quantity, l.Weight); err != nil {
				return fmt.Errorf("inserting cart line: %w", err)
			}
		}
		return nil
	})
}

// QuantityInCart returns how many units of the product the customer holds
// across their cart lines. Implements inventory.HeldCounter.
func (r *CartRepository) QuantityInCart(ctx context.Context, customerID, productID int64) (int, error) {
	var n int
	err := queryTarget(ctx, r.pool).QueryRow(ctx, cartQuantitySQL, customerID, productID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting cart quantity: %w", err)
	}
	return n, nil
}
