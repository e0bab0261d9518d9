package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/freshmart/grocery-api/internal/domain/customer"
	"github.com/freshmart/grocery-api/internal/domain/order"
)

type orderLineResponse struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	ImageURL  string  `json:"image_url,omitempty"`
}

type shippingResponse struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Total         float64             `json:"total"`
	PaymentStatus string              `json:"payment_status"`
	CreatedAt     time.Time           `json:"created_at"`
	Shipping      shippingResponse    `json:"shipping"`
	Lines         []orderLineResponse `json:"lines"`
}

func (h *Handler) toOrderResponse(o *order.Order) orderResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, line := range o.Lines {
		lines[i] = orderLineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.InexactFloat64(),
			ImageURL:  h.imageURL(line.ImageURL),
		}
	}
	return orderResponse{
		ID:            o.ID,
		Total:         o.Total.InexactFloat64(),
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
		Shipping: shippingResponse{
			Name:       o.Shipping.Name,
			Line1:      o.Shipping.Line1,
			Line2:      o.Shipping.Line2,
			City:       o.Shipping.City,
			State:      o.Shipping.State,
			PostalCode: o.Shipping.PostalCode,
			Country:    o.Shipping.Country,
		},
		Lines: lines,
	}
}

// ListOrders returns the customer's order history, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}

	cust, err := h.customers.FindByUsername(r.Context(), username)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}

	orders, err := h.orders.ListByCustomer(r.Context(), cust.ID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = h.toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder returns one of the customer's orders. Scoping by customer stops
// one customer reading another's order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}

	cust, err := h.customers.FindByUsername(r.Context(), username)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}

	o, err := h.orders.GetByCustomerAndID(r.Context(), cust.ID, r.PathValue("id"))
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toOrderResponse(o))
}
