package checkout

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/freshmart/grocery-api/internal/domain/cart"
	"github.com/freshmart/grocery-api/internal/domain/customer"
	"github.com/freshmart/grocery-api/internal/domain/inventory"
	"github.com/freshmart/grocery-api/internal/domain/order"
	"github.com/freshmart/grocery-api/internal/domain/product"
	"github.com/freshmart/grocery-api/internal/payment"
)

// Outcome reports how a confirmation event was resolved. Every outcome
// acknowledges the event; redelivery must converge on the same result.
type Outcome int

const (
	// OutcomeIgnored: the event kind is not one the reconciler acts on.
	OutcomeIgnored Outcome = iota
	// OutcomeSettled: the order was materialized and the cart cleared.
	OutcomeSettled
	// OutcomeAlreadySettled: an order for this session already exists; the
	// redelivered event is a no-op.
	OutcomeAlreadySettled
	// OutcomeAborted: authoritative stock ran out; nothing was persisted.
	// The payment is captured and is not automatically refunded here.
	OutcomeAborted
)

// TxRunner executes fn inside a single storage transaction. An error from fn
// rolls the whole unit back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Reconciler consumes payment-confirmation events and materializes orders.
//
// Stock deduction, order insert and cart clearing run under one transaction,
// so a failure at any point leaves no decrement without an order.
type Reconciler struct {
	customers customer.Repository
	products  product.Repository
	orders    order.Repository
	carts     *cart.Service
	guard     *inventory.Guard
	payments  payment.Provider
	tx        TxRunner
}

// NewReconciler creates a Reconciler with the required dependencies.
func NewReconciler(
	customers customer.Repository,
	products product.Repository,
	orders order.Repository,
	carts *cart.Service,
	guard *inventory.Guard,
	payments payment.Provider,
	tx TxRunner,
) *Reconciler {
	return &Reconciler{
		customers: customers,
		products:  products,
		orders:    orders,
		carts:     carts,
		guard:     guard,
		payments:  payments,
		tx:        tx,
	}
}

// HandleEvent verifies and settles one confirmation event delivery.
//
// The provider delivers at least once: an event whose session already has an
// order is acknowledged without side effects. An InsufficientStock failure
// rolls back the unit and returns OutcomeAborted with a nil error, because
// the event itself was handled; retrying it cannot succeed.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ev, err := r.payments.VerifyEvent(payload, signature)
	if err != nil {
		return OutcomeIgnored, err
	}
	if ev.Kind != payment.KindSessionCompleted {
		zctx.From(ctx).Debug("Ignoring event", zap.String("type", ev.Type))
		return OutcomeIgnored, nil
	}

	cust, err := r.eventCustomer(ctx, ev)
	if err != nil {
		return OutcomeIgnored, err
	}

	lines, err := r.resolveLines(ctx, ev.SessionID)
	if err != nil {
		return OutcomeIgnored, err
	}

	o := r.buildOrder(ev, cust, lines)

	deductions := make([]inventory.Deduction, len(lines))
	for i, line := range lines {
		deductions[i] = inventory.Deduction{ProductName: line.Name, Quantity: line.Quantity}
	}

	outcome := OutcomeSettled
	err = r.tx.InTx(ctx, func(ctx context.Context) error {
		_, err := r.orders.GetBySessionID(ctx, ev.SessionID)
		switch {
		case err == nil:
			outcome = OutcomeAlreadySettled
			return nil
		case !errors.Is(err, order.ErrNotFound):
			return errors.Wrap(err, "idempotency check")
		}

		if err := r.guard.Deduct(ctx, deductions); err != nil {
			return err
		}
		if err := r.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if _, err := r.carts.Clear(ctx, cust.Username); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
	if err != nil {
		var ise *inventory.InsufficientStockError
		if errors.As(err, &ise) {
			// A concurrent delivery may have settled this session between the
			// pre-check and the deduction, consuming the stock the loser then
			// missed. The unit already rolled back; re-read before reporting.
			if _, checkErr := r.orders.GetBySessionID(ctx, ev.SessionID); checkErr == nil {
				zctx.From(ctx).Info("Event redelivered, order exists",
					zap.String("session_id", ev.SessionID))
				return OutcomeAlreadySettled, nil
			}

			zctx.From(ctx).Warn("Settlement aborted, stock insufficient",
				zap.String("session_id", ev.SessionID),
				zap.String("product", ise.Name),
				zap.Int("available", ise.Available),
			)
			return OutcomeAborted, nil
		}
		return OutcomeIgnored, err
	}

	if outcome == OutcomeAlreadySettled {
		zctx.From(ctx).Info("Event redelivered, order exists",
			zap.String("session_id", ev.SessionID))
	}
	return outcome, nil
}

// eventCustomer resolves the purchaser from event metadata. Absence is fatal:
// every session this system creates carries the customer id.
func (r *Reconciler) eventCustomer(ctx context.Context, ev *payment.Event) (*customer.Customer, error) {
	raw, ok := ev.Metadata["customer_id"]
	if !ok {
		return nil, errors.New("event metadata missing customer_id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parse customer_id %q", raw)
	}

	cust, err := r.customers.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "customer %d", id)
	}
	return cust, nil
}

// resolveLines fetches the session's authoritative line items from the
// provider and resolves each back to an internal product by name, snapshotting
// price, weight and product id. Resolution fans out; order is preserved.
func (r *Reconciler) resolveLines(ctx context.Context, sessionID string) ([]order.Line, error) {
	items, err := r.payments.ListLineItems(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list line items")
	}

	lines := make([]order.Line, len(items))
	g, ctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			p, err := r.products.GetByName(ctx, item.Description)
			if err != nil {
				return errors.Wrapf(err, "resolve %q", item.Description)
			}
			imageURL := item.ImageURL
			if imageURL == "" {
				imageURL = p.ImageURL
			}
			lines[i] = order.Line{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  item.Quantity,
				UnitPrice: decimal.NewFromInt(item.UnitAmountMinor).Shift(-2),
				Weight:    p.Weight,
				ImageURL:  imageURL,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *Reconciler) buildOrder(ev *payment.Event, cust *customer.Customer, lines []order.Line) *order.Order {
	o := &order.Order{
		ID:                uuid.New().String(),
		CheckoutSessionID: ev.SessionID,
		CustomerID:        cust.ID,
		Total:             decimal.NewFromInt(ev.AmountTotalMinor).Shift(-2),
		PaymentStatus:     order.StatusPaid,
		CreatedAt:         time.Now().UTC(),
		Lines:             lines,
	}
	if sd := ev.Shipping; sd != nil {
		o.Shipping = order.Shipping{
			Name:       sd.Name,
			Line1:      sd.Line1,
			Line2:      sd.Line2,
			City:       sd.City,
			State:      sd.State,
			PostalCode: sd.PostalCode,
			Country:    sd.Country,
		}
	}
	return o
}
