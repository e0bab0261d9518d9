package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/freshmart/grocery-api/internal/domain/customer"
	"github.com/freshmart/grocery-api/internal/domain/inventory"
	"github.com/freshmart/grocery-api/internal/domain/product"
)

// TooHeavyError rejects a mutation whose projected total weight would exceed
// the hard cap. This is a boundary check, distinct from the lower fee
// threshold, and runs before the cart is touched.
type TooHeavyError struct {
	Projected decimal.Decimal
	Max       decimal.Decimal
}

func (e *TooHeavyError) Error() string {
	return fmt.Sprintf("cart weight %s exceeds maximum %s", e.Projected, e.Max)
}

// Config holds the pricing parameters, injected so thresholds are testable
// and environment-specific.
type Config struct {
	// FeeProductID is the catalog id of the synthetic delivery-fee product.
	FeeProductID int64
	// FeeThreshold is the non-fee cart weight at or above which the delivery
	// fee applies.
	FeeThreshold decimal.Decimal
	// MaxWeight is the hard cap on projected total cart weight.
	MaxWeight decimal.Decimal
}

// Service owns every cart mutation and the derived pricing fields. All
// mutations follow the same sequence: advisory stock check, projected-weight
// cap, structural change, recompute, persist.
type Service struct {
	customers customer.Repository
	products  product.Repository
	carts     Repository
	guard     *inventory.Guard
	cfg       Config
}

// NewService creates a cart Service with the required dependencies.
func NewService(
	customers customer.Repository,
	products product.Repository,
	carts Repository,
	guard *inventory.Guard,
	cfg Config,
) *Service {
	return &Service{
		customers: customers,
		products:  products,
		carts:     carts,
		guard:     guard,
		cfg:       cfg,
	}
}

// Get returns the customer's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, username string) (*Cart, error) {
	cust, err := s.customers.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.carts.GetOrCreate(ctx, cust.ID)
}

// AddLine adds quantity units of the product to the customer's cart, creating
// a line or incrementing an existing one. The advisory stock check counts
// what the cart already holds.
func (s *Service) AddLine(ctx context.Context, username string, productID int64, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, errors.New("quantity must be greater than 0")
	}

	cust, err := s.customers.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active || p.ID == s.cfg.FeeProductID {
		// The fee line item is derived, never customer-added.
		return nil, product.ErrNotFound
	}

	if err := s.guard.CanAdd(ctx, cust.ID, productID, quantity); err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	line := c.FindLine(productID)
	newQty := quantity
	if line != nil {
		newQty += line.Quantity
	}
	if err := s.checkProjectedWeight(c, p, newQty); err != nil {
		return nil, err
	}

	if line != nil {
		line.Quantity = newQty
	} else {
		c.Lines = append(c.Lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Cost:      p.Cost,
			Weight:    p.Weight,
			ImageURL:  p.ImageURL,
			Quantity:  quantity,
		})
	}

	return s.finish(ctx, c)
}

// SetLineTotal sets the cart line for the product to an explicit total
// quantity. A total of zero or less removes the line. The stock check is
// absolute: the desired total is compared against stock directly, ignoring
// what the cart holds now.
func (s *Service) SetLineTotal(ctx context.Context, username string, productID int64, quantity int) (*Cart, error) {
	if productID == s.cfg.FeeProductID {
		// The fee line is derived; recompute owns it entirely.
		return nil, product.ErrNotFound
	}
	if quantity <= 0 {
		return s.DeleteLine(ctx, username, productID)
	}

	cust, err := s.customers.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := s.guard.CanSetTotal(ctx, productID, quantity); err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	line := c.FindLine(productID)
	if line == nil {
		return nil, ErrLineNotFound
	}

	if err := s.checkProjectedWeight(c, p, quantity); err != nil {
		return nil, err
	}

	line.Quantity = quantity
	return s.finish(ctx, c)
}

// DeleteLine removes the product's line from the cart. Removing a product
// that is not in the cart is a no-op.
func (s *Service) DeleteLine(ctx context.Context, username string, productID int64) (*Cart, error) {
	if productID == s.cfg.FeeProductID {
		return nil, product.ErrNotFound
	}

	cust, err := s.customers.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	if !c.RemoveLine(productID) {
		return c, nil
	}
	return s.finish(ctx, c)
}

// Clear empties the cart. Clearing an already-empty cart still yields a zero
// subtotal and weight with no fee line.
func (s *Service) Clear(ctx context.Context, username string) (*Cart, error) {
	cust, err := s.customers.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	c.Lines = nil
	return s.finish(ctx, c)
}

// finish recomputes derived fields and persists the cart.
func (s *Service) finish(ctx context.Context, c *Cart) (*Cart, error) {
	if err := s.recompute(ctx, c); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// recompute derives subtotal, weight and the fee line from the cart's real
// lines in a single pass. It is the only writer of these fields.
//
// Weight accumulates each line's snapshotted unit weight; subtotal uses the
// line's current cost. The fee line contributes its cost but never its
// weight, and exactly one fee line exists iff the non-fee weight is at or
// above the threshold.
func (s *Service) recompute(ctx context.Context, c *Cart) error {
	subtotal := decimal.Zero
	weight := decimal.Zero

	var fee *Line
	for i := range c.Lines {
		line := &c.Lines[i]
		if line.ProductID == s.cfg.FeeProductID {
			fee = line
			continue
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.Cost.Mul(qty))
		weight = weight.Add(line.Weight.Mul(qty))
	}

	c.Weight = weight
	c.FeeApplied = weight.GreaterThanOrEqual(s.cfg.FeeThreshold)

	switch {
	case c.FeeApplied && fee == nil:
		feeProduct, err := s.products.GetByID(ctx, s.cfg.FeeProductID)
		if err != nil {
			return errors.Wrap(err, "fee product")
		}
		c.Lines = append(c.Lines, Line{
			ProductID: feeProduct.ID,
			Name:      feeProduct.Name,
			Cost:      feeProduct.Cost,
			Weight:    decimal.Zero,
			ImageURL:  feeProduct.ImageURL,
			Quantity:  1,
		})
		subtotal = subtotal.Add(feeProduct.Cost)
	case c.FeeApplied:
		subtotal = subtotal.Add(fee.Cost)
	case fee != nil:
		c.RemoveLine(s.cfg.FeeProductID)
	}

	c.Subtotal = subtotal
	return nil
}

// checkProjectedWeight simulates the target line at newQty against all other
// non-fee lines and rejects the mutation when the projection exceeds the
// hard cap.
func (s *Service) checkProjectedWeight(c *Cart, p *product.Product, newQty int) error {
	projected := p.Weight.Mul(decimal.NewFromInt(int64(newQty)))
	for _, line := range c.Lines {
		if line.ProductID == p.ID || line.ProductID == s.cfg.FeeProductID {
			continue
		}
		projected = projected.Add(line.Weight.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	if projected.GreaterThan(s.cfg.MaxWeight) {
		return &TooHeavyError{Projected: projected, Max: s.cfg.MaxWeight}
	}
	return nil
}
