// Package payment defines the contract the core requires from the hosted
// payment provider, plus the typed failure taxonomy surfaced to customers.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrInvalidSignature rejects a confirmation event whose signature does not
// verify. No business logic runs for such an event.
var ErrInvalidSignature = errors.New("invalid event signature")

// Category classifies a provider failure. Card categories map to specific
// user messages; infrastructure categories map to distinct generic ones.
type Category string

const (
	CategoryCardDeclined      Category = "card_declined"
	CategoryCardExpired       Category = "card_expired"
	CategoryInsufficientFunds Category = "insufficient_funds"
	CategoryInvalidNumber     Category = "invalid_number"
	CategoryInvalidCVC        Category = "invalid_cvc"
	CategoryRateLimited       Category = "rate_limited"
	CategoryInvalidRequest    Category = "invalid_request"
	CategoryAuthFailure       Category = "auth_failure"
	CategoryConnectivity      Category = "connectivity"
	CategoryOther             Category = "other"
)

// ProviderError wraps a provider failure with its category. Raw provider text
// never reaches a customer; UserMessage is the only customer-facing string.
type ProviderError struct {
	Category Category
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider: %s: %v", e.Category, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UserMessage returns the fixed, user-safe message for the error's category.
func (e *ProviderError) UserMessage() string {
	switch e.Category {
	case CategoryCardDeclined:
		return "Your card was declined by the bank. Please try a different payment method."
	case CategoryCardExpired:
		return "Your card has expired. Please use a different card."
	case CategoryInsufficientFunds:
		return "Insufficient funds. Please use a different payment method."
	case CategoryInvalidNumber:
		return "Invalid card number. Please check your card details."
	case CategoryInvalidCVC:
		return "Incorrect CVC code. Please check your card security code."
	case CategoryRateLimited:
		return "Too many payment attempts. Please wait a moment."
	case CategoryInvalidRequest:
		return "Payment system configuration error. Please contact support."
	case CategoryAuthFailure:
		return "Payment authentication failed. Please contact support."
	case CategoryConnectivity:
		return "Network connection issue. Please try again."
	default:
		return "Payment service temporarily unavailable. Please try again."
	}
}

// LineItem is one entry of a session-creation request, priced in minor
// currency units.
type LineItem struct {
	Name            string
	ImageURL        string
	UnitAmountMinor int64
	Quantity        int
}

// SessionRequest describes a hosted checkout session to create. CustomerID is
// attached as opaque metadata: it is the only way settlement can correlate
// the provider's confirmation event back to an internal customer.
type SessionRequest struct {
	Items      []LineItem
	CustomerID int64
	SuccessURL string
	CancelURL  string
}

// Session is a created hosted checkout session.
type Session struct {
	ID          string
	RedirectURL string
}

// EventKind tags the confirmation-event variant.
type EventKind int

const (
	// KindIgnored covers every event type the core does not act on.
	KindIgnored EventKind = iota
	// KindSessionCompleted is a completed checkout session: payment captured.
	KindSessionCompleted
)

// ShippingDetails is the delivery address collected during checkout.
type ShippingDetails struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Event is a verified, parsed confirmation event. Session fields are only
// meaningful when Kind is KindSessionCompleted.
type Event struct {
	Kind             EventKind
	Type             string
	SessionID        string
	Metadata         map[string]string
	AmountTotalMinor int64
	Shipping         *ShippingDetails
}

// SessionLineItem is one purchased line as reported by the provider for a
// completed session. This listing, not the live cart, is the authoritative
// record of what was bought.
type SessionLineItem struct {
	Description     string
	Quantity        int
	UnitAmountMinor int64
	ImageURL        string
}

// Provider is the payment-processor contract required by the core.
type Provider interface {
	// CreateSession requests a hosted checkout session. Failures are
	// *ProviderError with a category.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// VerifyEvent checks the payload signature and parses the event into its
	// tagged variant. Verification failure is ErrInvalidSignature.
	VerifyEvent(payload []byte, signature string) (*Event, error)
	// ListLineItems fetches the purchased line items of a completed session.
	ListLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error)
}
