package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/freshmart/grocery-api/internal/domain/checkout"
	"github.com/freshmart/grocery-api/internal/domain/order"
	"github.com/freshmart/grocery-api/internal/payment"
)

// maxWebhookBody caps confirmation-event payloads.
const maxWebhookBody = 1 << 16

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// Checkout creates a hosted payment session for the customer's cart and
// returns the redirect URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	username, ok := h.customerFrom(w, r)
	if !ok {
		return
	}

	session, err := h.initiator.Initiate(r.Context(), username)
	if err != nil {
		var provErr *payment.ProviderError
		switch {
		case errors.As(err, &provErr):
			zctx.From(r.Context()).Warn("Payment session creation failed",
				zap.String("category", string(provErr.Category)),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, provErr.UserMessage())
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		default:
			mapCartError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	})
}

// Webhook receives payment-confirmation events from the provider. Any 2xx
// acknowledges the delivery; 5xx makes the provider redeliver.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	outcome, err := h.reconciler.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			writeError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		// Transient failure: signal the provider to redeliver.
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": outcomeLabel(outcome)})
}

func outcomeLabel(o checkout.Outcome) string {
	switch o {
	case checkout.OutcomeSettled:
		return "settled"
	case checkout.OutcomeAlreadySettled:
		return "already_settled"
	case checkout.OutcomeAborted:
		return "aborted"
	default:
		return "ignored"
	}
}

// OrderStatus polls for the order produced by a checkout session. 202 means
// inconclusive: settlement may still be in flight.
func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}

	o, err := h.status.WaitForOrder(r.Context(), sessionID)
	switch {
	case errors.Is(err, order.ErrNotMaterialized):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toOrderResponse(o))
}
