package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/freshmart/grocery-api/internal/domain/product"
)

type productResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Weight   float64 `json:"weight"`
	Stock    int     `json:"stock"`
	ImageURL string  `json:"image_url,omitempty"`
}

func (h *Handler) toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Cost.InexactFloat64(),
		Weight:   p.Weight.InexactFloat64(),
		Stock:    p.Stock,
		ImageURL: h.imageURL(p.ImageURL),
	}
}

// ListProducts returns the active catalog without the synthetic fee product.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListActive(r.Context(), h.feeProductID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i := range products {
		resp[i] = h.toProductResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct returns a single product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toProductResponse(p))
}
