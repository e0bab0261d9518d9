// Package checkout turns a priced cart into a hosted payment session and
// reconciles the provider's asynchronous confirmation into a durable order.
package checkout

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/freshmart/grocery-api/internal/domain/cart"
	"github.com/freshmart/grocery-api/internal/domain/inventory"
	"github.com/freshmart/grocery-api/internal/payment"
)

// ErrEmptyCart rejects checkout of a cart with no real lines.
var ErrEmptyCart = errors.New("cart is empty")

// Initiator converts a priced cart into an external payment session. It
// decrements nothing: this step only starts an external flow.
type Initiator struct {
	carts    *cart.Service
	guard    *inventory.Guard
	payments payment.Provider

	successURL string
	cancelURL  string
}

// NewInitiator creates an Initiator. The success URL should carry the
// provider's session-id template so the client can poll order status after
// redirect.
func NewInitiator(
	carts *cart.Service,
	guard *inventory.Guard,
	payments payment.Provider,
	successURL, cancelURL string,
) *Initiator {
	return &Initiator{
		carts:      carts,
		guard:      guard,
		payments:   payments,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// Initiate runs the whole-cart advisory stock check, then requests a hosted
// payment session with one line item per cart line and the customer id as
// metadata. Provider failures come back as *payment.ProviderError.
func (i *Initiator) Initiate(ctx context.Context, username string) (*payment.Session, error) {
	c, err := i.carts.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Every line is re-checked against current stock, not just the one most
	// recently touched. Still advisory: settlement holds the real gate.
	deductions := make([]inventory.Deduction, len(c.Lines))
	for idx, line := range c.Lines {
		deductions[idx] = inventory.Deduction{
			ProductName: line.Name,
			Quantity:    line.Quantity,
		}
	}
	if err := i.guard.CheckAll(ctx, deductions); err != nil {
		return nil, err
	}

	items := make([]payment.LineItem, len(c.Lines))
	for idx, line := range c.Lines {
		items[idx] = payment.LineItem{
			Name:            line.Name,
			ImageURL:        line.ImageURL,
			UnitAmountMinor: line.Cost.Shift(2).IntPart(),
			Quantity:        line.Quantity,
		}
	}

	session, err := i.payments.CreateSession(ctx, payment.SessionRequest{
		Items:      items,
		CustomerID: c.CustomerID,
		SuccessURL: i.successURL,
		CancelURL:  i.cancelURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	return session, nil
}
