package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
//
// One distinguished product id (configured, never hardcoded) is the
// delivery-fee line item: a synthetic product charged when a cart crosses the
// weight threshold. Customers cannot add it themselves.
type Product struct {
	ID       int64
	Name     string
	Cost     decimal.Decimal
	Weight   decimal.Decimal
	Stock    int
	Active   bool
	ImageURL string
}

// Repository defines persistence operations for the product catalog.
//
// GetByIDForUpdate acquires an exclusive row lock on the product and must run
// inside a transaction (see storage TxRunner); it serializes concurrent stock
// deductions against the same product. UpdateStock is only valid on a row
// locked this way.
type Repository interface {
	ListActive(ctx context.Context, excludeID int64) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Product, error)
	UpdateStock(ctx context.Context, id int64, stock int) error
}
