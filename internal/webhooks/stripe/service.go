package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/aktionfilm/aktionfilm-backend/internal/billing"
	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
)

type ServiceParams struct {
	BillingRepo billing.Repository
	Ledger      ledger.Service
}

// Service turns completed checkout sessions into credit grants.
type Service struct {
	billingRepo billing.Repository
	ledger      ledger.Service
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		ledger:      params.Ledger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.fulfillCheckout(ctx, &session)
	default:
		return nil
	}
}

// fulfillCheckout grants the purchased credits to the user named in the
// session metadata. The caller's idempotency guard has already filtered
// redelivered events, and the ledger records the grant with the session id so
// the purchase stays auditable.
func (s *Service) fulfillCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session is required")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil
	}

	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session missing user id")
	}
	packID, err := uuid.Parse(session.Metadata["pack_id"])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session missing pack id")
	}

	pack, err := s.billingRepo.FindByID(ctx, packID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit pack")
	}
	if pack == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "credit pack not found")
	}

	metadata, _ := json.Marshal(map[string]string{
		"stripe_session_id": session.ID,
		"pack_id":           pack.ID.String(),
	})
	return s.ledger.Grant(ctx, userID, pack.Credits, enums.CreditEntryTypePurchase, metadata)
}
