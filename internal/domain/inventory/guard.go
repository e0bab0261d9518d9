// Package inventory answers stock-availability questions at two very
// different levels of rigor.
//
// The advisory checks (CanAdd, CanSetTotal, CheckAll) are cheap, non-locking
// reads used for immediate customer feedback; their answers may be stale by
// the time payment settles, and that is accepted. Deduct is the authoritative
// path: it locks each product row exclusively, re-reads the count, and is the
// only code allowed to decrement stock. It is the sole guarantee against
// overselling under concurrent checkouts.
package inventory

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/freshmart/grocery-api/internal/domain/product"
)

// InsufficientStockError reports that a requested quantity exceeds the
// product's available stock. Available carries the actual count so clients
// can offer to adjust the quantity down.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: %d available", e.Name, e.Available)
}

// HeldCounter reports how many units of a product a customer already holds
// across their cart lines.
type HeldCounter interface {
	QuantityInCart(ctx context.Context, customerID, productID int64) (int, error)
}

// Deduction is one line of an authoritative stock decrement. Products are
// addressed by name because settlement line items arrive from the payment
// provider, which only carries the display name.
type Deduction struct {
	ProductName string
	Quantity    int
}

// Guard performs advisory and authoritative stock checks.
type Guard struct {
	products product.Repository
	held     HeldCounter
}

// NewGuard returns a Guard over the given catalog and cart-quantity source.
func NewGuard(products product.Repository, held HeldCounter) *Guard {
	return &Guard{products: products, held: held}
}

// CanAdd checks whether the customer can add delta more units of the product
// on top of what their cart already holds. Non-locking; stale answers are
// tolerated because Deduct is the true gate.
func (g *Guard) CanAdd(ctx context.Context, customerID, productID int64, delta int) error {
	p, err := g.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	held, err := g.held.QuantityInCart(ctx, customerID, productID)
	if err != nil {
		return errors.Wrap(err, "quantity in cart")
	}

	if held+delta > p.Stock {
		return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
	}
	return nil
}

// CanSetTotal checks whether desired units of the product are available,
// ignoring the customer's current cart contents: the desired total is the
// cart's future quantity, not an increment.
func (g *Guard) CanSetTotal(ctx context.Context, productID int64, desired int) error {
	p, err := g.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if desired > p.Stock {
		return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
	}
	return nil
}

// CheckAll runs the advisory check for every deduction, comparing each
// requested quantity against current stock. Used before initiating checkout.
func (g *Guard) CheckAll(ctx context.Context, deductions []Deduction) error {
	for _, d := range deductions {
		p, err := g.products.GetByName(ctx, d.ProductName)
		if err != nil {
			return err
		}
		if d.Quantity > p.Stock {
			return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
		}
	}
	return nil
}

// Deduct decrements stock for every deduction, locking each product row
// exclusively before re-reading its count. It must run inside a transaction:
// a failure on any line returns an error and the caller's rollback undoes the
// decrements already applied, so the unit is all-or-nothing.
func (g *Guard) Deduct(ctx context.Context, deductions []Deduction) error {
	for _, d := range deductions {
		p, err := g.products.GetByName(ctx, d.ProductName)
		if err != nil {
			return err
		}

		// Re-read under the row lock; the advisory answer may be stale.
		locked, err := g.products.GetByIDForUpdate(ctx, p.ID)
		if err != nil {
			return errors.Wrapf(err, "lock product %d", p.ID)
		}

		if locked.Stock < d.Quantity {
			return &InsufficientStockError{ProductID: locked.ID, Name: locked.Name, Available: locked.Stock}
		}

		if err := g.products.UpdateStock(ctx, locked.ID, locked.Stock-d.Quantity); err != nil {
			return errors.Wrapf(err, "update stock %d", locked.ID)
		}
	}
	return nil
}
