package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
)

// CheckoutParams starts a Stripe checkout for a credit pack.
type CheckoutParams struct {
	UserID     uuid.UUID
	PackID     uuid.UUID
	SuccessURL string
	CancelURL  string
}

// CheckoutResult carries the hosted checkout session the client redirects to.
type CheckoutResult struct {
	SessionID   string
	CheckoutURL string
}

// Service sells credit packs through Stripe checkout.
type Service interface {
	ListPacks(ctx context.Context) ([]models.CreditPack, error)
	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutResult, error)
}

// ServiceParams wires the billing service dependencies.
type ServiceParams struct {
	Repo   Repository
	Stripe StripeCheckoutClient
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	stripe StripeCheckoutClient
	logg   *logger.Logger
}

// NewService wires a billing service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		stripe: params.Stripe,
		logg:   params.Logger,
	}, nil
}

func (s *service) ListPacks(ctx context.Context) ([]models.CreditPack, error) {
	packs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit packs")
	}
	return packs, nil
}

// CreateCheckout builds a payment-mode session for the pack. The user and pack
// ids travel in session metadata so the webhook can credit the right account.
func (s *service) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if params.PackID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pack id is required")
	}
	if params.SuccessURL == "" || params.CancelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "success and cancel urls are required")
	}

	pack, err := s.repo.FindByID(ctx, params.PackID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit pack")
	}
	if pack == nil || !pack.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit pack not found")
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pack.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"user_id": params.UserID.String(),
			"pack_id": pack.ID.String(),
		},
	}

	checkoutSession, err := s.stripe.CreateCheckoutSession(ctx, sessionParams)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	s.logg.Info(ctx, fmt.Sprintf("checkout session %s created for pack %s", checkoutSession.ID, pack.ID))
	return &CheckoutResult{
		SessionID:   checkoutSession.ID,
		CheckoutURL: checkoutSession.URL,
	}, nil
}
