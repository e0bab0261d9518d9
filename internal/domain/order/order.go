package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// StatusPaid is the payment status an order is created with. Later delivery
// workflow transitions are owned elsewhere.
const StatusPaid = "PAID"

// Order is a settled purchase, created exactly once per confirmed checkout
// session and immutable afterwards except for delivery-driven status changes.
type Order struct {
	ID                string
	CheckoutSessionID string
	CustomerID        int64
	Total             decimal.Decimal
	PaymentStatus     string
	CreatedAt         time.Time
	Shipping          Shipping
	Lines             []Line
}

// Shipping holds the delivery address collected by the payment provider.
type Shipping struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Line snapshots a purchased product at time of sale. It is deliberately
// decoupled from the live product record so later price or weight edits do
// not rewrite history.
type Line struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Weight    decimal.Decimal
	ImageURL  string
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetBySessionID(ctx context.Context, sessionID string) (*Order, error)
	GetByCustomerAndID(ctx context.Context, customerID int64, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
}
