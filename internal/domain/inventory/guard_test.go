package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshmart/grocery-api/internal/domain/product"
)

// --- Mock implementations ---

// lockingProductRepo simulates row-level locking: GetByIDForUpdate takes a
// per-product mutex that UpdateStock releases, so concurrent deductions
// serialize the read-check-write sequence like the database does.
type lockingProductRepo struct {
	mu    sync.Mutex
	byID  map[int64]*product.Product
	locks map[int64]*sync.Mutex
}

func newLockingRepo(products ...*product.Product) *lockingProductRepo {
	r := &lockingProductRepo{
		byID:  make(map[int64]*product.Product),
		locks: make(map[int64]*sync.Mutex),
	}
	for _, p := range products {
		r.byID[p.ID] = p
		r.locks[p.ID] = &sync.Mutex{}
	}
	return r
}

func (r *lockingProductRepo) ListActive(context.Context, int64) ([]product.Product, error) {
	return nil, nil
}

func (r *lockingProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *lockingProductRepo) GetByName(_ context.Context, name string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, product.ErrNotFound
}

func (r *lockingProductRepo) GetByIDForUpdate(_ context.Context, id int64) (*product.Product, error) {
	r.mu.Lock()
	lock, ok := r.locks[id]
	r.mu.Unlock()
	if !ok {
		return nil, product.ErrNotFound
	}
	lock.Lock()

	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.byID[id]
	return &cp, nil
}

func (r *lockingProductRepo) UpdateStock(_ context.Context, id int64, stock int) error {
	r.mu.Lock()
	p, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return product.ErrNotFound
	}
	p.Stock = stock
	lock := r.locks[id]
	r.mu.Unlock()

	lock.Unlock()
	return nil
}

// unlock releases a row lock left held by a failed deduction, standing in
// for the caller's transaction rollback.
func (r *lockingProductRepo) unlock(id int64) {
	r.locks[id].Unlock()
}

type staticHeld struct {
	quantities map[int64]int
}

func (s *staticHeld) QuantityInCart(_ context.Context, _, productID int64) (int, error) {
	return s.quantities[productID], nil
}

// --- Helpers ---

func testProduct(id int64, name string, stock int) *product.Product {
	return &product.Product{
		ID:     id,
		Name:   name,
		Cost:   decimal.RequireFromString("2.50"),
		Weight: decimal.RequireFromString("1.0"),
		Stock:  stock,
		Active: true,
	}
}

// --- Tests ---

func TestCanAdd_CountsHeldQuantity(t *testing.T) {
	repo := newLockingRepo(testProduct(1, "Milk", 10))
	guard := NewGuard(repo, &staticHeld{quantities: map[int64]int{1: 8}})

	require.NoError(t, guard.CanAdd(context.Background(), 5, 1, 2))

	err := guard.CanAdd(context.Background(), 5, 1, 3)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, "Milk", stockErr.Name)
}

func TestCanSetTotal_IgnoresHeldQuantity(t *testing.T) {
	repo := newLockingRepo(testProduct(1, "Milk", 10))
	guard := NewGuard(repo, &staticHeld{quantities: map[int64]int{1: 8}})

	// Desired total equals stock: held quantity is irrelevant.
	require.NoError(t, guard.CanSetTotal(context.Background(), 1, 10))

	err := guard.CanSetTotal(context.Background(), 1, 11)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
}

func TestCheckAll_ReportsFirstShortage(t *testing.T) {
	repo := newLockingRepo(
		testProduct(1, "Milk", 10),
		testProduct(2, "Eggs", 2),
	)
	guard := NewGuard(repo, &staticHeld{})

	err := guard.CheckAll(context.Background(), []Deduction{
		{ProductName: "Milk", Quantity: 5},
		{ProductName: "Eggs", Quantity: 3},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Eggs", stockErr.Name)
	assert.Equal(t, 2, stockErr.Available)
}

func TestCheckAll_UnknownProduct(t *testing.T) {
	repo := newLockingRepo(testProduct(1, "Milk", 10))
	guard := NewGuard(repo, &staticHeld{})

	err := guard.CheckAll(context.Background(), []Deduction{
		{ProductName: "Caviar", Quantity: 1},
	})
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestDeduct_DecrementsStock(t *testing.T) {
	repo := newLockingRepo(testProduct(1, "Milk", 10))
	guard := NewGuard(repo, &staticHeld{})

	err := guard.Deduct(context.Background(), []Deduction{
		{ProductName: "Milk", Quantity: 4},
	})
	require.NoError(t, err)

	p, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Stock)
}

func TestDeduct_FailsOnShortage(t *testing.T) {
	repo := newLockingRepo(testProduct(1, "Milk", 3))
	guard := NewGuard(repo, &staticHeld{})

	err := guard.Deduct(context.Background(), []Deduction{
		{ProductName: "Milk", Quantity: 4},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	repo.unlock(1)

	// Nothing decremented.
	p, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestDeduct_ConcurrentLastUnit(t *testing.T) {
	repo := newLockingRepo(testProduct(1, "Milk", 1))
	guard := NewGuard(repo, &staticHeld{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = guard.Deduct(context.Background(), []Deduction{
				{ProductName: "Milk", Quantity: 1},
			})
			if errs[i] != nil {
				repo.unlock(1)
			}
		}()
	}
	wg.Wait()

	// Exactly one deduction wins the row lock; the other sees zero stock.
	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 0, stockErr.Available)
		failed++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	p, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}
