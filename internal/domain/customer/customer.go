package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is a registered shopper. Authentication happens upstream; the core
// only needs identity for cart ownership and payment-session correlation.
type Customer struct {
	ID       int64
	Username string
	Email    string
}

// Repository defines lookup operations for customers.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Customer, error)
	FindByID(ctx context.Context, id int64) (*Customer, error)
}
