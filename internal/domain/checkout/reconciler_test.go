package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshmart/grocery-api/internal/domain/order"
	"github.com/freshmart/grocery-api/internal/payment"
)

func completedEvent() *payment.Event {
	return &payment.Event{
		Kind:             payment.KindSessionCompleted,
		Type:             "checkout.session.completed",
		SessionID:        "cs_test_1",
		Metadata:         map[string]string{"customer_id": "10"},
		AmountTotalMinor: 2707,
		Shipping: &payment.ShippingDetails{
			Name:       "Alice Smith",
			Line1:      "1 Main St",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    "US",
		},
	}
}

func purchasedItems() []payment.SessionLineItem {
	return []payment.SessionLineItem{
		{Description: "Whole Milk", Quantity: 2, UnitAmountMinor: 379},
		{Description: "Basmati Rice", Quantity: 1, UnitAmountMinor: 1450},
		{Description: "Delivery Fee", Quantity: 1, UnitAmountMinor: 499},
	}
}

func TestHandleEvent_Settles(t *testing.T) {
	f := newFixture()
	f.provider.event = completedEvent()
	f.provider.items = purchasedItems()

	// The cart the customer checked out with.
	_, err := f.cartSvc.AddLine(context.Background(), "alice", testMilkID, 2)
	require.NoError(t, err)
	_, err = f.cartSvc.AddLine(context.Background(), "alice", testRiceID, 1)
	require.NoError(t, err)

	outcome, err := f.reconciler().HandleEvent(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, outcome)

	// Stock deducted for every purchased line, fee included.
	assert.Equal(t, 58, f.stock(testMilkID))
	assert.Equal(t, 29, f.stock(testRiceID))
	assert.Equal(t, 999999, f.stock(testFeeProductID))

	// Order materialized from the provider's line items.
	o, err := f.orders.GetBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, int64(10), o.CustomerID)
	assert.Equal(t, order.StatusPaid, o.PaymentStatus)
	assert.True(t, decimal.RequireFromString("27.07").Equal(o.Total))
	assert.Equal(t, "Alice Smith", o.Shipping.Name)
	assert.Equal(t, "62701", o.Shipping.PostalCode)
	require.Len(t, o.Lines, 3)
	assert.Equal(t, "Whole Milk", o.Lines[0].Name)
	assert.True(t, decimal.RequireFromString("3.79").Equal(o.Lines[0].UnitPrice))

	// Cart cleared.
	c, err := f.cartSvc.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestHandleEvent_OrderLinesSnapshotSaleTimeValues(t *testing.T) {
	f := newFixture()
	f.provider.event = completedEvent()
	f.provider.items = purchasedItems()

	outcome, err := f.reconciler().HandleEvent(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, outcome)

	// Catalog edits after the sale must not rewrite history.
	f.products.byID[testMilkID].Cost = decimal.RequireFromString("9.99")
	f.products.byID[testMilkID].Weight = decimal.RequireFromString("99.9")

	o, err := f.orders.GetBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	require.Len(t, o.Lines, 3)
	assert.True(t, decimal.RequireFromString("3.79").Equal(o.Lines[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("8.6").Equal(o.Lines[0].Weight))
	assert.True(t, decimal.RequireFromString("27.07").Equal(o.Total))
}

func TestHandleEvent_RedeliveryIsNoop(t *testing.T) {
	f := newFixture()
	f.provider.event = completedEvent()
	f.provider.items = purchasedItems()

	r := f.reconciler()
	outcome, err := r.HandleEvent(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	require.Equal(t, OutcomeSettled, outcome)

	milkAfterFirst := f.stock(testMilkID)
	firstOrder, err := f.orders.GetBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)

	outcome, err = r.HandleEvent(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySettled, outcome)

	// No second deduction, same order.
	assert.Equal(t, milkAfterFirst, f.stock(testMilkID))
	o, err := f.orders.GetBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, firstOrder.ID, o.ID)
}

func TestHandleEvent_StockShortageAbortsAtomically(t *testing.T) {
	f := newFixture()
	f.provider.event = completedEvent()
	f.provider.items = purchasedItems()

	// Milk deducts fine, rice runs out mid-settlement.
	f.products.byID[testRiceID].Stock = 0

	_, err := f.cartSvc.AddLine(context.Background(), "alice", testMilkID, 2)
	require.NoError(t, err)

	outcome, err := f.reconciler().HandleEvent(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, outcome)

	// Rolled back: the milk deduction did not stick and no order exists.
	assert.Equal(t, 60, f.stock(testMilkID))
	_, err = f.orders.GetBySessionID(context.Background(), "cs_test_1")
	require.ErrorIs(t, err, order.ErrNotFound)

	// Cart untouched.
	c, err := f.cartSvc.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, c.FindLine(testMilkID))
}

// racedOrderRepo misses the first session lookup, standing in for a
// concurrent delivery that commits its order between this delivery's
// idempotency pre-check and its deduction.
type racedOrderRepo struct {
	*mockOrderRepo
	missed bool
}

func (r *racedOrderRepo) GetBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	if !r.missed {
		r.missed = true
		return nil, order.ErrNotFound
	}
	return r.mockOrderRepo.GetBySessionID(ctx, sessionID)
}

func TestHandleEvent_LostRaceReportsAlreadySettled(t *testing.T) {
	f := newFixture()
	f.provider.event = completedEvent()
	f.provider.items = purchasedItems()

	// The winner's order exists and its deduction consumed the last rice.
	f.orders.bySession["cs_test_1"] = &order.Order{
		ID:                "winner",
		CheckoutSessionID: "cs_test_1",
		CustomerID:        10,
		PaymentStatus:     order.StatusPaid,
	}
	f.products.byID[testRiceID].Stock = 0

	raced := &racedOrderRepo{mockOrderRepo: f.orders}
	r := NewReconciler(f.customers, f.products, raced, f.cartSvc, f.guard, f.provider, f.tx)

	outcome, err := r.HandleEvent(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySettled, outcome)

	// The loser's unit rolled back and the winner's order stands.
	assert.Equal(t, 60, f.stock(testMilkID))
	o, err := f.orders.GetBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "winner", o.ID)
}

func TestHandleEvent_InvalidSignature(t *testing.T) {
	f := newFixture()
	f.provider.verifyErr = payment.ErrInvalidSignature

	outcome, err := f.reconciler().HandleEvent(context.Background(), []byte("{}"), "bad")
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestHandleEvent_IgnoresOtherEventTypes(t *testing.T) {
	f := newFixture()
	f.provider.event = &payment.Event{Kind: payment.KindIgnored, Type: "payment_intent.created"}

	outcome, err := f.reconciler().HandleEvent(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, f.orders.bySession)
}

func TestHandleEvent_MissingCustomerMetadata(t *testing.T) {
	f := newFixture()
	ev := completedEvent()
	ev.Metadata = nil
	f.provider.event = ev

	_, err := f.reconciler().HandleEvent(context.Background(), []byte("{}"), "sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer_id")
}

func TestHandleEvent_UnknownPurchasedProduct(t *testing.T) {
	f := newFixture()
	f.provider.event = completedEvent()
	f.provider.items = []payment.SessionLineItem{
		{Description: "Discontinued Widget", Quantity: 1, UnitAmountMinor: 100},
	}

	_, err := f.reconciler().HandleEvent(context.Background(), []byte("{}"), "sig")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Discontinued Widget")
}
