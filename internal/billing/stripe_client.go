package billing

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/aktionfilm/aktionfilm-backend/pkg/stripe"
)

// StripeCheckoutClient exposes the subset of Stripe operations required by the billing service.
type StripeCheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the billing service can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeCheckoutClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
