package checkout

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshmart/grocery-api/internal/domain/inventory"
	"github.com/freshmart/grocery-api/internal/payment"
)

func TestInitiate_EmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.initiator().Initiate(context.Background(), "alice")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestInitiate_CreatesSessionWithAllLines(t *testing.T) {
	f := newFixture()
	f.provider.session = &payment.Session{ID: "cs_test_1", RedirectURL: "https://pay.test/cs_test_1"}

	// 2 * 8.6 + 1 * 10.0 = 27.2: fee applies.
	_, err := f.cartSvc.AddLine(context.Background(), "alice", testMilkID, 2)
	require.NoError(t, err)
	_, err = f.cartSvc.AddLine(context.Background(), "alice", testRiceID, 1)
	require.NoError(t, err)

	session, err := f.initiator().Initiate(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://pay.test/cs_test_1", session.RedirectURL)

	req := f.provider.lastReq
	assert.Equal(t, int64(10), req.CustomerID)
	assert.Equal(t, "https://shop.test/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)

	// Fee line is a session line item like any other.
	require.Len(t, req.Items, 3)
	byName := make(map[string]payment.LineItem, len(req.Items))
	for _, item := range req.Items {
		byName[item.Name] = item
	}
	assert.Equal(t, int64(379), byName["Whole Milk"].UnitAmountMinor)
	assert.Equal(t, 2, byName["Whole Milk"].Quantity)
	assert.Equal(t, int64(1450), byName["Basmati Rice"].UnitAmountMinor)
	assert.Equal(t, int64(499), byName["Delivery Fee"].UnitAmountMinor)
	assert.Equal(t, 1, byName["Delivery Fee"].Quantity)

	// Initiation never touches stock.
	assert.Equal(t, 60, f.stock(testMilkID))
	assert.Equal(t, 30, f.stock(testRiceID))
}

func TestInitiate_StaleCartFailsStockCheck(t *testing.T) {
	f := newFixture()

	_, err := f.cartSvc.AddLine(context.Background(), "alice", testMilkID, 5)
	require.NoError(t, err)

	// Stock dropped after the cart was built.
	f.products.byID[testMilkID].Stock = 3

	_, err = f.initiator().Initiate(context.Background(), "alice")
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Whole Milk", stockErr.Name)
	assert.Equal(t, 3, stockErr.Available)
}

func TestInitiate_ProviderErrorSurfaces(t *testing.T) {
	f := newFixture()
	f.provider.sessionErr = &payment.ProviderError{
		Category: payment.CategoryCardDeclined,
		Err:      errors.New("card_declined"),
	}

	_, err := f.cartSvc.AddLine(context.Background(), "alice", testMilkID, 1)
	require.NoError(t, err)

	_, err = f.initiator().Initiate(context.Background(), "alice")
	var provErr *payment.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, payment.CategoryCardDeclined, provErr.Category)
}
