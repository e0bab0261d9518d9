package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freshmart/grocery-api/internal/domain/customer"
)

const (
	findCustomerByUsernameSQL = `SELECT id, username, email FROM customers WHERE username = $1`
	findCustomerByIDSQL       = `SELECT id, username, email FROM customers WHERE id = $1`
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

// FindByUsername returns the customer with the given username.
func (r *CustomerRepository) FindByUsername(ctx context.Context, username string) (*customer.Customer, error) {
	return r.one(ctx, findCustomerByUsernameSQL, username)
}

// FindByID returns the customer with the given id.
func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (*customer.Customer, error) {
	return r.one(ctx, findCustomerByIDSQL, id)
}

func (r *CustomerRepository) one(ctx context.Context, sql string, arg any) (*customer.Customer, error) {
	var c customer.Customer
	err := queryTarget(ctx, r.pool).QueryRow(ctx, sql, arg).Scan(&c.ID, &c.Username, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer: %w", err)
	}
	return &c, nil
}
