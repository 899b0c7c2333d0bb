package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/aktionfilm/aktionfilm-backend/internal/billing"
	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/pagination"
)

type stubBillingRepo struct {
	packs map[uuid.UUID]*models.CreditPack
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return s }
func (s *stubBillingRepo) Create(ctx context.Context, pack *models.CreditPack) error {
	return nil
}
func (s *stubBillingRepo) ListActive(ctx context.Context) ([]models.CreditPack, error) {
	return nil, nil
}
func (s *stubBillingRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPack, error) {
	return s.packs[id], nil
}
func (s *stubBillingRepo) FindByStripePriceID(ctx context.Context, priceID string) (*models.CreditPack, error) {
	return nil, nil
}

type stubLedger struct {
	grants []int64
	users  []uuid.UUID
	types  []enums.CreditEntryType
}

func (s *stubLedger) CostFor(kind enums.ActionKind) int64 { return 0 }
func (s *stubLedger) IsExempt(userID uuid.UUID) bool      { return false }
func (s *stubLedger) CheckAndReserve(ctx context.Context, userID uuid.UUID, kind enums.ActionKind, metadata json.RawMessage) (*ledger.Reservation, error) {
	return nil, nil
}
func (s *stubLedger) Commit(ctx context.Context, reservation *ledger.Reservation) error { return nil }
func (s *stubLedger) Refund(ctx context.Context, reservation *ledger.Reservation) error { return nil }
func (s *stubLedger) Grant(ctx context.Context, userID uuid.UUID, amount int64, entryType enums.CreditEntryType, metadata json.RawMessage) error {
	s.grants = append(s.grants, amount)
	s.users = append(s.users, userID)
	s.types = append(s.types, entryType)
	return nil
}
func (s *stubLedger) Balance(ctx context.Context, userID uuid.UUID) (int64, error) { return 0, nil }
func (s *stubLedger) History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditEntry, *pagination.Cursor, error) {
	return nil, nil, nil
}
func (s *stubLedger) ProvisionAccount(ctx context.Context, tx *gorm.DB, userID uuid.UUID, signupGrant int64) error {
	return nil
}

func checkoutEvent(t *testing.T, userID, packID uuid.UUID, paid bool) *stripe.Event {
	t.Helper()
	status := stripe.CheckoutSessionPaymentStatusUnpaid
	if paid {
		status = stripe.CheckoutSessionPaymentStatusPaid
	}
	raw := fmt.Sprintf(`{
		"id": "cs_test_1",
		"payment_status": %q,
		"metadata": {"user_id": %q, "pack_id": %q}
	}`, status, userID, packID)
	return &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestHandleEventGrantsPurchasedCredits(t *testing.T) {
	userID := uuid.New()
	pack := &models.CreditPack{ID: uuid.New(), Name: "Indie", Credits: 500, Active: true}
	repo := &stubBillingRepo{packs: map[uuid.UUID]*models.CreditPack{pack.ID: pack}}
	ledg := &stubLedger{}
	svc, err := NewService(ServiceParams{BillingRepo: repo, Ledger: ledg})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.HandleEvent(context.Background(), checkoutEvent(t, userID, pack.ID, true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledg.grants) != 1 || ledg.grants[0] != 500 {
		t.Fatalf("expected a single 500-credit grant, got %v", ledg.grants)
	}
	if ledg.users[0] != userID {
		t.Fatalf("granted to wrong user %s", ledg.users[0])
	}
	if ledg.types[0] != enums.CreditEntryTypePurchase {
		t.Fatalf("expected purchase entry, got %s", ledg.types[0])
	}
}

func TestHandleEventSkipsUnpaidSessions(t *testing.T) {
	pack := &models.CreditPack{ID: uuid.New(), Credits: 500, Active: true}
	repo := &stubBillingRepo{packs: map[uuid.UUID]*models.CreditPack{pack.ID: pack}}
	ledg := &stubLedger{}
	svc, _ := NewService(ServiceParams{BillingRepo: repo, Ledger: ledg})

	if err := svc.HandleEvent(context.Background(), checkoutEvent(t, uuid.New(), pack.ID, false)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledg.grants) != 0 {
		t.Fatal("unpaid session must not grant credits")
	}
}

func TestHandleEventIgnoresOtherEventTypes(t *testing.T) {
	svc, _ := NewService(ServiceParams{BillingRepo: &stubBillingRepo{}, Ledger: &stubLedger{}})
	event := &stripe.Event{
		ID:   "evt_2",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleEventRejectsMissingMetadata(t *testing.T) {
	svc, _ := NewService(ServiceParams{BillingRepo: &stubBillingRepo{}, Ledger: &stubLedger{}})
	event := &stripe.Event{
		ID:   "evt_3",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"cs_1","payment_status":"paid","metadata":{}}`)},
	}
	err := svc.HandleEvent(context.Background(), event)
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleEventUnknownPack(t *testing.T) {
	svc, _ := NewService(ServiceParams{BillingRepo: &stubBillingRepo{}, Ledger: &stubLedger{}})
	err := svc.HandleEvent(context.Background(), checkoutEvent(t, uuid.New(), uuid.New(), true))
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
