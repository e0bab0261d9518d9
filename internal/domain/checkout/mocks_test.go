package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/freshmart/grocery-api/internal/domain/cart"
	"github.com/freshmart/grocery-api/internal/domain/customer"
	"github.com/freshmart/grocery-api/internal/domain/inventory"
	"github.com/freshmart/grocery-api/internal/domain/order"
	"github.com/freshmart/grocery-api/internal/domain/product"
	"github.com/freshmart/grocery-api/internal/payment"
)

// --- Mock implementations ---

type mockCustomerRepo struct {
	customers []*customer.Customer
}

func (m *mockCustomerRepo) FindByUsername(_ context.Context, username string) (*customer.Customer, error) {
	for _, c := range m.customers {
		if c.Username == username {
			return c, nil
		}
	}
	return nil, customer.ErrNotFound
}

func (m *mockCustomerRepo) FindByID(_ context.Context, id int64) (*customer.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, customer.ErrNotFound
}

type mockProductRepo struct {
	byID map[int64]*product.Product
}

func (m *mockProductRepo) ListActive(context.Context, int64) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByName(_ context.Context, name string) (*product.Product, error) {
	for _, p := range m.byID {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDForUpdate(ctx context.Context, id int64) (*product.Product, error) {
	return m.GetByID(ctx, id)
}

func (m *mockProductRepo) UpdateStock(_ context.Context, id int64, stock int) error {
	p, ok := m.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Stock = stock
	return nil
}

type mockCartRepo struct {
	carts map[int64]*cart.Cart
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, customerID int64) (*cart.Cart, error) {
	if c, ok := m.carts[customerID]; ok {
		return c, nil
	}
	c := &cart.Cart{ID: customerID, CustomerID: customerID}
	m.carts[customerID] = c
	return c, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *cart.Cart) error {
	m.carts[c.CustomerID] = c
	return nil
}

func (m *mockCartRepo) QuantityInCart(_ context.Context, customerID, productID int64) (int, error) {
	c, ok := m.carts[customerID]
	if !ok {
		return 0, nil
	}
	if line := c.FindLine(productID); line != nil {
		return line.Quantity, nil
	}
	return 0, nil
}

type mockOrderRepo struct {
	bySession map[string]*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.bySession[o.CheckoutSessionID] = o
	return nil
}

func (m *mockOrderRepo) GetBySessionID(_ context.Context, sessionID string) (*order.Order, error) {
	o, ok := m.bySession[sessionID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) GetByCustomerAndID(_ context.Context, customerID int64, id string) (*order.Order, error) {
	for _, o := range m.bySession {
		if o.CustomerID == customerID && o.ID == id {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerID int64) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.bySession {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeProvider struct {
	session    *payment.Session
	sessionErr error
	lastReq    payment.SessionRequest

	event     *payment.Event
	verifyErr error

	items    []payment.SessionLineItem
	itemsErr error
}

func (f *fakeProvider) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.lastReq = req
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeProvider) VerifyEvent([]byte, string) (*payment.Event, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.event, nil
}

func (f *fakeProvider) ListLineItems(context.Context, string) ([]payment.SessionLineItem, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return f.items, nil
}

// fakeTxRunner snapshots the mock stores before running fn and restores them
// when fn fails, mimicking a database rollback.
type fakeTxRunner struct {
	products *mockProductRepo
	orders   *mockOrderRepo
	carts    *mockCartRepo
}

func (f *fakeTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	stocks := make(map[int64]int, len(f.products.byID))
	for id, p := range f.products.byID {
		stocks[id] = p.Stock
	}
	orders := make(map[string]*order.Order, len(f.orders.bySession))
	for sid, o := range f.orders.bySession {
		cp := *o
		orders[sid] = &cp
	}
	carts := make(map[int64]*cart.Cart, len(f.carts.carts))
	for cid, c := range f.carts.carts {
		cp := *c
		cp.Lines = append([]cart.Line(nil), c.Lines...)
		carts[cid] = &cp
	}

	if err := fn(ctx); err != nil {
		for id, stock := range stocks {
			f.products.byID[id].Stock = stock
		}
		f.orders.bySession = orders
		f.carts.carts = carts
		return err
	}
	return nil
}

// --- Shared fixtures ---

const (
	testFeeProductID = int64(1)
	testMilkID       = int64(2)
	testRiceID       = int64(3)
)

type fixture struct {
	customers *mockCustomerRepo
	products  *mockProductRepo
	carts     *mockCartRepo
	orders    *mockOrderRepo
	provider  *fakeProvider
	guard     *inventory.Guard
	cartSvc   *cart.Service
	tx        *fakeTxRunner
}

func newFixture() *fixture {
	f := &fixture{
		customers: &mockCustomerRepo{customers: []*customer.Customer{
			{ID: 10, Username: "alice", Email: "alice@example.com"},
		}},
		products: &mockProductRepo{byID: map[int64]*product.Product{
			testFeeProductID: {
				ID:     testFeeProductID,
				Name:   "Delivery Fee",
				Cost:   decimal.RequireFromString("4.99"),
				Weight: decimal.Zero,
				Stock:  1000000,
				Active: true,
			},
			testMilkID: {
				ID:     testMilkID,
				Name:   "Whole Milk",
				Cost:   decimal.RequireFromString("3.79"),
				Weight: decimal.RequireFromString("8.6"),
				Stock:  60,
				Active: true,
			},
			testRiceID: {
				ID:     testRiceID,
				Name:   "Basmati Rice",
				Cost:   decimal.RequireFromString("14.50"),
				Weight: decimal.RequireFromString("10.0"),
				Stock:  30,
				Active: true,
			},
		}},
		carts:    &mockCartRepo{carts: make(map[int64]*cart.Cart)},
		orders:   &mockOrderRepo{bySession: make(map[string]*order.Order)},
		provider: &fakeProvider{},
	}

	f.guard = inventory.NewGuard(f.products, f.carts)
	f.cartSvc = cart.NewService(f.customers, f.products, f.carts, f.guard, cart.Config{
		FeeProductID: testFeeProductID,
		FeeThreshold: decimal.NewFromInt(20),
		MaxWeight:    decimal.NewFromInt(200),
	})
	f.tx = &fakeTxRunner{products: f.products, orders: f.orders, carts: f.carts}
	return f
}

func (f *fixture) initiator() *Initiator {
	return NewInitiator(f.cartSvc, f.guard, f.provider,
		"https://shop.test/success?session_id={CHECKOUT_SESSION_ID}", "https://shop.test/cart")
}

func (f *fixture) reconciler() *Reconciler {
	return NewReconciler(f.customers, f.products, f.orders, f.cartSvc, f.guard, f.provider, f.tx)
}

func (f *fixture) stock(id int64) int {
	return f.products.byID[id].Stock
}
