package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/freshmart/grocery-api/internal/domain/cart"
	"github.com/freshmart/grocery-api/internal/domain/customer"
	"github.com/freshmart/grocery-api/internal/domain/inventory"
	"github.com/freshmart/grocery-api/internal/domain/product"
)

type cartLineResponse struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Weight    float64 `json:"weight"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"image_url,omitempty"`
}

type cartResponse struct {
	Subtotal   float64            `json:"subtotal"`
	Weight     float64            `json:"weight"`
	FeeApplied bool               `json:"fee_applied"`
	Lines      []cartLineResponse `json:"lines"`
}

func (h *Handler) toCartResponse(c *cart.Cart) cartResponse {
	lines := make([]cartLineResponse, len(c.Lines))
	for i, line := range c.Lines {
		lines[i] = cartLineResponse{
			ProductID: line.ProductID,
			Name:      line.Name,
			Price:     line.Cost.InexactFloat64(),
			Weight:    line.Weight.InexactFloat64(),
			Quantity:  line.Quantity,
			ImageURL:  h.imageURL(line.ImageURL),
		}
	}
	return cartResponse{
		Subtotal:   c.Subtotal.InexactFloat64(),
		Weight:     c.Weight.InexactFloat64(),
		FeeApplied: c.FeeApplied,
		Lines:      lines,
	}
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the customer's cart, creating an empty one on first access.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Get(r.Context(), username)
	if err != nil {
		mapCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(c))
}

// AddToCart adds quantity units of a product to the cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be greater than 0")
		return
	}

	c, err := h.carts.AddLine(r.Context(), username, req.ProductID, req.Quantity)
	if err != nil {
		mapCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(c))
}

// UpdateCartLine sets a cart line to an explicit total quantity. Zero or
// negative removes the line.
func (h *Handler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req setQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.carts.SetLineTotal(r.Context(), username, productID, req.Quantity)
	if err != nil {
		mapCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(c))
}

// RemoveFromCart deletes one product's line from the cart.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}
	productID, err := strconv.ParseInt(r.PathValue("productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	c, err := h.carts.DeleteLine(r.Context(), username, productID)
	if err != nil {
		mapCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(c))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}

	c, err := h.carts.Clear(r.Context(), username)
	if err != nil {
		mapCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCartResponse(c))
}

// mapCartError converts domain errors from cart operations to HTTP responses.
func mapCartError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("not enough stock for %s: %d available", stockErr.Name, stockErr.Available))
		return
	}

	var heavyErr *cart.TooHeavyError
	if errors.As(err, &heavyErr) {
		writeError(w, http.StatusUnprocessableEntity, heavyErr.Error())
		return
	}

	switch {
	case errors.Is(err, customer.ErrNotFound):
		writeError(w, http.StatusNotFound, "customer not found")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, cart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, "product not in cart")
	default:
		writeInternalError(w, r, err)
	}
}
