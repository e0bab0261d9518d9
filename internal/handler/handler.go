// Package handler exposes the HTTP surface, delegating business logic to the
// domain services and mapping domain errors to wire responses.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/freshmart/grocery-api/internal/domain/cart"
	"github.com/freshmart/grocery-api/internal/domain/checkout"
	"github.com/freshmart/grocery-api/internal/domain/customer"
	"github.com/freshmart/grocery-api/internal/domain/order"
	"github.com/freshmart/grocery-api/internal/domain/product"
)

// customerHeader carries the authenticated customer's username. The gateway
// in front of this service resolves credentials to a username; the core
// trusts the header.
const customerHeader = "X-Customer"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in responses. When
	// empty, image paths are returned as stored.
	ImageBaseURL string
	// FeeProductID is excluded from catalog listings.
	FeeProductID int64
}

// Handler wires the HTTP endpoints to the domain services.
type Handler struct {
	customers  customer.Repository
	products   product.Repository
	carts      *cart.Service
	initiator  *checkout.Initiator
	reconciler *checkout.Reconciler
	orders     order.Repository
	status     *order.StatusBridge

	imageBaseURL string
	feeProductID int64
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	customers customer.Repository,
	products product.Repository,
	carts *cart.Service,
	initiator *checkout.Initiator,
	reconciler *checkout.Reconciler,
	orders order.Repository,
	status *order.StatusBridge,
) *Handler {
	return &Handler{
		customers:    customers,
		products:     products,
		carts:        carts,
		initiator:    initiator,
		reconciler:   reconciler,
		orders:       orders,
		status:       status,
		imageBaseURL: cfg.ImageBaseURL,
		feeProductID: cfg.FeeProductID,
	}
}

// Routes registers every endpoint on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/items", h.AddToCart)
	mux.HandleFunc("PUT /api/cart/items/{productID}", h.UpdateCartLine)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.RemoveFromCart)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)

	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/webhook", h.Webhook)
	mux.HandleFunc("GET /api/order-status", h.OrderStatus)

	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
}

// customerFrom extracts the authenticated username, writing 401 and returning
// false when the header is absent.
func (h *Handler) customerFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := strings.TrimSpace(r.Header.Get(customerHeader))
	if username == "" {
		writeError(w, http.StatusUnauthorized, "missing customer identity")
		return "", false
	}
	return username, true
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" || strings.HasPrefix(path, "http") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeInternalError logs the cause and responds with a generic message so
// internals never leak to clients.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}
