package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmart/grocery-api/internal/domain/product"
)

const (
	productColumns = `id, name, cost, weight, stock, active, image_url`

	listActiveProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE active AND id <> $1 ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1`

	getProductByNameSQL = `SELECT ` + productColumns + `
		FROM products WHERE name = $1`

	getProductForUpdateSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1 FOR UPDATE`

	updateProductStockSQL = `UPDATE products SET stock = $2 WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// ListActive returns active products, excluding the given id (the fee line
// item is hidden from the catalog this way), ordered by id.
func (r *ProductRepository) ListActive(ctx context.Context, excludeID int64) ([]product.Product, error) {
	rows, err := queryTarget(ctx, r.pool).Query(ctx, listActiveProductsSQL, excludeID)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return r.one(ctx, getProductByIDSQL, id)
}

// GetByName returns a single product by its exact name.
func (r *ProductRepository) GetByName(ctx context.Context, name string) (*product.Product, error) {
	return r.one(ctx, getProductByNameSQL, name)
}

// GetByIDForUpdate locks the product row exclusively and returns its current
// state. Only valid inside a transaction; outside of one the lock would be
// released immediately, so the call is rejected.
func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, id int64) (*product.Product, error) {
	if !inTx(ctx) {
		return nil, errors.New("GetByIDForUpdate requires a transaction")
	}
	return r.one(ctx, getProductForUpdateSQL, id)
}

// UpdateStock sets the product's stock count. Callers hold the row lock.
func (r *ProductRepository) UpdateStock(ctx context.Context, id int64, stock int) error {
	tag, err := queryTarget(ctx, r.pool).Exec(ctx, updateProductStockSQL, id, stock)
	if err != nil {
		return fmt.Errorf("updating stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) one(ctx context.Context, sql string, arg any) (*product.Product, error) {
	rows, err := queryTarget(ctx, r.pool).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Cost, &p.Weight, &p.Stock, &p.Active, &p.ImageURL)
	return p, err
}
