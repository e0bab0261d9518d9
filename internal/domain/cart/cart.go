package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrLineNotFound is returned when a quantity change targets a product that is
// not in the cart.
var ErrLineNotFound = errors.New("cart line not found")

// Cart holds a customer's in-progress selection. Subtotal, Weight and
// FeeApplied are derived fields: the pricing engine recomputes them after
// every structural mutation and nothing else may write them.
type Cart struct {
	ID         int64
	CustomerID int64
	Subtotal   decimal.Decimal
	Weight     decimal.Decimal
	FeeApplied bool
	Lines      []Line
}

// Line is a single product entry in a cart. Weight is snapshotted at add time;
// Name, Cost and ImageURL are joined from the live product on load.
type Line struct {
	ID        int64
	ProductID int64
	Name      string
	Cost      decimal.Decimal
	Weight    decimal.Decimal
	ImageURL  string
	Quantity  int
}

// FindLine returns the line for the given product, or nil.
func (c *Cart) FindLine(productID int64) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// RemoveLine deletes the line for the given product, preserving order of the
// remaining lines. It reports whether a line was removed.
func (c *Cart) RemoveLine(productID int64) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Repository defines persistence operations for carts. GetOrCreate loads the
// customer's cart, creating an empty one on first access. Save persists the
// cart header and replaces its lines atomically.
type Repository interface {
	GetOrCreate(ctx context.Context, customerID int64) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}
