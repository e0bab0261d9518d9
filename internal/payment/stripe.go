package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"
)

const eventSessionCompleted = "checkout.session.completed"

// StripeConfig holds the Stripe credentials and checkout settings.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// StripeProvider implements Provider on top of Stripe Checkout Sessions.
type StripeProvider struct {
	webhookSecret string
	currency      string
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider configures the Stripe client and returns a provider.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	stripe.Key = cfg.SecretKey

	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}
	return &StripeProvider{
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
	}
}

// CreateSession requests a hosted checkout session with one price-data line
// item per cart line and the customer id attached as metadata.
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, len(req.Items))
	for i, item := range req.Items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}

		lineItems[i] = &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(p.currency),
				UnitAmount:  stripe.Int64(item.UnitAmountMinor),
				ProductData: productData,
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems:  lineItems,
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US"}),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataCustomerID, strconv.FormatInt(req.CustomerID, 10))

	s, err := session.New(params)
	if err != nil {
		return nil, categorize(err)
	}

	return &Session{ID: s.ID, RedirectURL: s.URL}, nil
}

// metadataCustomerID is the metadata key correlating a session to a customer.
const metadataCustomerID = "customer_id"

// VerifyEvent checks the Stripe-Signature header against the webhook secret
// and parses the event into the tagged variant the reconciler consumes.
func (p *StripeProvider) VerifyEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSignature, "construct event: %v", err)
	}

	if string(event.Type) != eventSessionCompleted {
		return &Event{Kind: KindIgnored, Type: string(event.Type)}, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, errors.Wrap(err, "decode checkout session")
	}

	ev := &Event{
		Kind:             KindSessionCompleted,
		Type:             string(event.Type),
		SessionID:        cs.ID,
		Metadata:         cs.Metadata,
		AmountTotalMinor: cs.AmountTotal,
	}

	if ci := cs.CollectedInformation; ci != nil && ci.ShippingDetails != nil {
		sd := ci.ShippingDetails
		shipping := &ShippingDetails{Name: sd.Name}
		if addr := sd.Address; addr != nil {
			shipping.Line1 = addr.Line1
			shipping.Line2 = addr.Line2
			shipping.City = addr.City
			shipping.State = addr.State
			shipping.PostalCode = addr.PostalCode
			shipping.Country = addr.Country
		}
		ev.Shipping = shipping
	}

	return ev, nil
}

// ListLineItems fetches the purchased line items of a completed session,
// expanding the product so image references come through.
func (p *StripeProvider) ListLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.AddExpand("data.price.product")

	var items []SessionLineItem
	iter := session.ListLineItems(params)
	for iter.Next() {
		li := iter.LineItem()

		item := SessionLineItem{
			Description: li.Description,
			Quantity:    int(li.Quantity),
		}
		if li.Price != nil {
			item.UnitAmountMinor = li.Price.UnitAmount
			if li.Price.Product != nil && len(li.Price.Product.Images) > 0 {
				item.ImageURL = li.Price.Product.Images[0]
			}
		}
		items = append(items, item)
	}
	if err := iter.Err(); err != nil {
		return nil, categorize(err)
	}

	return items, nil
}

// categorize maps a Stripe error to the provider failure taxonomy. Card
// decline codes take precedence; infrastructure failures are classified by
// request type and HTTP status. Non-Stripe errors are transport failures.
func categorize(err error) *ProviderError {
	var sErr *stripe.Error
	if !errors.As(err, &sErr) {
		return &ProviderError{Category: CategoryConnectivity, Err: err}
	}

	switch string(sErr.Code) {
	case "card_declined":
		return &ProviderError{Category: CategoryCardDeclined, Err: err}
	case "expired_card":
		return &ProviderError{Category: CategoryCardExpired, Err: err}
	case "insufficient_funds":
		return &ProviderError{Category: CategoryInsufficientFunds, Err: err}
	case "invalid_number", "incorrect_number":
		return &ProviderError{Category: CategoryInvalidNumber, Err: err}
	case "invalid_cvc", "incorrect_cvc":
		return &ProviderError{Category: CategoryInvalidCVC, Err: err}
	}

	switch sErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		return &ProviderError{Category: CategoryRateLimited, Err: err}
	case http.StatusUnauthorized:
		return &ProviderError{Category: CategoryAuthFailure, Err: err}
	}

	if sErr.Type == stripe.ErrorTypeInvalidRequest {
		return &ProviderError{Category: CategoryInvalidRequest, Err: err}
	}

	return &ProviderError{Category: CategoryOther, Err: err}
}
