// Package payment wraps the external card processor.  The engine only
// ever talks to the Gateway interface; the Stripe implementation lives
// here so the orchestrator can be exercised without network access.
package payment

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// ErrInvalidAmount is returned for non-positive intent amounts.
var ErrInvalidAmount = errors.New("payment amount must be positive")

// Intent is the subset of a payment intent the engine needs: the id for
// webhook correlation and the client secret the caller must surface to
// the payer for client-side confirmation.
type Intent struct {
	ID           string
	ClientSecret string
	AmountPence  int64
}

// IntentRequest describes a payment intent to create.  IdempotencyKey
// must be set by the caller so network retries never create duplicate
// external charges; Metadata is the routing bag the webhook handler
// reads back.
type IntentRequest struct {
	AmountPence    int64
	Currency       string
	CustomerID     *string
	Metadata       map[string]string
	IdempotencyKey string
}

// Gateway is the engine's view of the card processor.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateCustomer(ctx context.Context, email, name string) (string, error)
	// FindCustomerByEmail returns the customer id, or "" when no
	// customer with that email exists.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	client *client.API
}

// NewStripeGateway returns a gateway bound to the given secret key, or
// nil when the key is empty.  A nil gateway means "not configured" and
// the orchestrator refuses card shortfalls with a validation error.
func NewStripeGateway(apiKey string) *StripeGateway {
	if apiKey == "" {
		return nil
	}
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeGateway{client: sc}
}

// CreatePaymentIntent creates an intent for client-side confirmation.
// The idempotency key is forwarded to Stripe so a retried call after a
// network failure returns the original intent instead of charging
// again.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountPence <= 0 {
		return nil, ErrInvalidAmount
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountPence),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.CustomerID != nil && *req.CustomerID != "" {
		params.Customer = stripe.String(*req.CustomerID)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}
	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, AmountPence: pi.Amount}, nil
}

// CreateCustomer creates a Stripe customer and returns its id.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	cu, err := g.client.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cu.ID, nil
}

// FindCustomerByEmail returns the first customer matching the email.
func (g *StripeGateway) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := g.client.Customers.List(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", err
	}
	return "", nil
}
