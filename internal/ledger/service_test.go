package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/pagination"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRepo struct {
	debitFn      func(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	creditFn     func(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	findFn       func(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)
	createFn     func(ctx context.Context, entry *models.CreditEntry) error
	transitionFn func(ctx context.Context, id uuid.UUID, from, to enums.ReservationState) (bool, error)
	listFn       func(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditEntry, *pagination.Cursor, error)
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) CreateAccount(ctx context.Context, account *models.CreditAccount) error {
	return nil
}
func (s *stubRepo) FindAccount(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	if s.findFn != nil {
		return s.findFn(ctx, userID)
	}
	return nil, nil
}
func (s *stubRepo) DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	if s.debitFn != nil {
		return s.debitFn(ctx, userID, amount)
	}
	return false, nil
}
func (s *stubRepo) Credit(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	if s.creditFn != nil {
		return s.creditFn(ctx, userID, amount)
	}
	return true, nil
}
func (s *stubRepo) CreateEntry(ctx context.Context, entry *models.CreditEntry) error {
	if s.createFn != nil {
		return s.createFn(ctx, entry)
	}
	return nil
}
func (s *stubRepo) FindEntry(ctx context.Context, id uuid.UUID) (*models.CreditEntry, error) {
	return nil, nil
}
func (s *stubRepo) TransitionEntry(ctx context.Context, id uuid.UUID, from, to enums.ReservationState) (bool, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, id, from, to)
	}
	return true, nil
}
func (s *stubRepo) ListEntriesByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditEntry, *pagination.Cursor, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID, params)
	}
	return nil, nil, nil
}

func testConfig() config.LedgerConfig {
	return config.LedgerConfig{
		AvatarVideoCost: 75,
		AvatarImageCost: 150,
		PresetCost:      25,
		SpeechCost:      5,
		SignupGrant:     50,
	}
}

func newTestService(t *testing.T, repo Repository, cfg config.LedgerConfig) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, TxRunner: stubTxRunner{}, Config: cfg})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCheckAndReserveDebitsAndRecordsEntry(t *testing.T) {
	userID := uuid.New()
	var debited int64
	var entry *models.CreditEntry
	repo := &stubRepo{
		debitFn: func(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
			if id != userID {
				t.Fatalf("debited wrong user %s", id)
			}
			debited = amount
			return true, nil
		},
		createFn: func(ctx context.Context, e *models.CreditEntry) error {
			entry = e
			return nil
		},
	}

	svc := newTestService(t, repo, testConfig())
	reservation, err := svc.CheckAndReserve(context.Background(), userID, enums.ActionKindAvatarVideo, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if debited != 75 {
		t.Fatalf("expected debit of 75, got %d", debited)
	}
	if reservation.Cost != 75 || reservation.Exempt {
		t.Fatalf("unexpected reservation %+v", reservation)
	}
	if entry == nil {
		t.Fatal("expected reservation entry to be recorded")
	}
	if entry.State != enums.ReservationStateReserved || entry.Type != enums.CreditEntryTypeReserve {
		t.Fatalf("unexpected entry state %s type %s", entry.State, entry.Type)
	}
	if reservation.ID != entry.ID {
		t.Fatal("reservation id should match the durable entry")
	}
}

func TestCheckAndReserveInsufficientCredits(t *testing.T) {
	userID := uuid.New()
	repo := &stubRepo{
		debitFn: func(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
			return false, nil
		},
		findFn: func(ctx context.Context, id uuid.UUID) (*models.CreditAccount, error) {
			return &models.CreditAccount{UserID: id, Credits: 10}, nil
		},
	}

	svc := newTestService(t, repo, testConfig())
	_, err := svc.CheckAndReserve(context.Background(), userID, enums.ActionKindAvatarImage, nil)
	if err == nil {
		t.Fatal("expected insufficient credits error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredits {
		t.Fatalf("expected insufficient credits code, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["credits_needed"] != int64(150) {
		t.Fatalf("expected credits_needed 150, got %v", details["credits_needed"])
	}
	if details["credits_available"] != int64(10) {
		t.Fatalf("expected credits_available 10, got %v", details["credits_available"])
	}
}

func TestCheckAndReserveMissingAccount(t *testing.T) {
	repo := &stubRepo{
		debitFn: func(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
			return false, nil
		},
	}

	svc := newTestService(t, repo, testConfig())
	_, err := svc.CheckAndReserve(context.Background(), uuid.New(), enums.ActionKindPreset, nil)
	if err == nil {
		t.Fatal("expected error for missing account")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckAndReserveExemptSkipsLedger(t *testing.T) {
	userID := uuid.New()
	repo := &stubRepo{
		debitFn: func(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
			t.Fatal("exempt user must not be debited")
			return false, nil
		},
		createFn: func(ctx context.Context, e *models.CreditEntry) error {
			t.Fatal("exempt user must not create entries")
			return nil
		},
	}

	cfg := testConfig()
	cfg.ExemptUserIDs = []string{userID.String()}
	svc := newTestService(t, repo, cfg)

	reservation, err := svc.CheckAndReserve(context.Background(), userID, enums.ActionKindAvatarVideo, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reservation.Exempt {
		t.Fatal("expected exempt reservation")
	}
	if err := svc.Refund(context.Background(), reservation); err != nil {
		t.Fatalf("exempt refund must be a no-op: %v", err)
	}
	if err := svc.Commit(context.Background(), reservation); err != nil {
		t.Fatalf("exempt commit must be a no-op: %v", err)
	}
}

func TestCheckAndReserveInvalidKind(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, testConfig())
	_, err := svc.CheckAndReserve(context.Background(), uuid.New(), enums.ActionKind("mystery"), nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewServiceRejectsBadExemptID(t *testing.T) {
	cfg := testConfig()
	cfg.ExemptUserIDs = []string{"not-a-uuid"}
	if _, err := NewService(ServiceParams{Repo: &stubRepo{}, TxRunner: stubTxRunner{}, Config: cfg}); err == nil {
		t.Fatal("expected error for malformed exempt user id")
	}
}

func TestRefundRestoresCreditsOnce(t *testing.T) {
	userID := uuid.New()
	reservationID := uuid.New()

	state := enums.ReservationStateReserved
	var credited int64
	repo := &stubRepo{
		transitionFn: func(ctx context.Context, id uuid.UUID, from, to enums.ReservationState) (bool, error) {
			if id != reservationID {
				t.Fatalf("unexpected entry id %s", id)
			}
			if state != from {
				return false, nil
			}
			state = to
			return true, nil
		},
		creditFn: func(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
			credited += amount
			return true, nil
		},
	}

	svc := newTestService(t, repo, testConfig())
	reservation := &Reservation{ID: reservationID, UserID: userID, Kind: enums.ActionKindAvatarVideo, Cost: 75}

	if err := svc.Refund(context.Background(), reservation); err != nil {
		t.Fatalf("first refund failed: %v", err)
	}
	if credited != 75 {
		t.Fatalf("expected 75 credited, got %d", credited)
	}

	// A retried refund finds the entry already settled and restores nothing.
	if err := svc.Refund(context.Background(), reservation); err != nil {
		t.Fatalf("second refund must be a no-op: %v", err)
	}
	if credited != 75 {
		t.Fatalf("double refund detected: %d credited", credited)
	}
}

func TestCommitSettlesReservation(t *testing.T) {
	reservationID := uuid.New()
	state := enums.ReservationStateReserved
	repo := &stubRepo{
		transitionFn: func(ctx context.Context, id uuid.UUID, from, to enums.ReservationState) (bool, error) {
			if state != from {
				return false, nil
			}
			state = to
			return true, nil
		},
	}

	svc := newTestService(t, repo, testConfig())
	reservation := &Reservation{ID: reservationID, UserID: uuid.New(), Kind: enums.ActionKindSpeech, Cost: 5}

	if err := svc.Commit(context.Background(), reservation); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if state != enums.ReservationStateCommitted {
		t.Fatalf("expected committed state, got %s", state)
	}

	err := svc.Commit(context.Background(), reservation)
	if err == nil {
		t.Fatal("expected state conflict on double commit")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRefundAfterCommitIsNoop(t *testing.T) {
	state := enums.ReservationStateCommitted
	repo := &stubRepo{
		transitionFn: func(ctx context.Context, id uuid.UUID, from, to enums.ReservationState) (bool, error) {
			return state == from, nil
		},
		creditFn: func(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
			t.Fatal("settled reservation must not be credited back")
			return false, nil
		},
	}

	svc := newTestService(t, repo, testConfig())
	reservation := &Reservation{ID: uuid.New(), UserID: uuid.New(), Kind: enums.ActionKindPreset, Cost: 25}
	if err := svc.Refund(context.Background(), reservation); err != nil {
		t.Fatalf("refund of settled reservation must no-op: %v", err)
	}
}

func TestGrantValidatesInput(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, testConfig())

	if err := svc.Grant(context.Background(), uuid.Nil, 10, enums.CreditEntryTypeGrant, nil); err == nil {
		t.Fatal("expected error for nil user id")
	}
	if err := svc.Grant(context.Background(), uuid.New(), 0, enums.CreditEntryTypeGrant, nil); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
	if err := svc.Grant(context.Background(), uuid.New(), 10, enums.CreditEntryTypeReserve, nil); err == nil {
		t.Fatal("expected error for reserve entry type")
	}
}

func TestGrantCreditsAndRecordsEntry(t *testing.T) {
	userID := uuid.New()
	var credited int64
	var entry *models.CreditEntry
	repo := &stubRepo{
		creditFn: func(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
			credited = amount
			return true, nil
		},
		createFn: func(ctx context.Context, e *models.CreditEntry) error {
			entry = e
			return nil
		},
	}

	svc := newTestService(t, repo, testConfig())
	if err := svc.Grant(context.Background(), userID, 500, enums.CreditEntryTypePurchase, nil); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if credited != 500 {
		t.Fatalf("expected 500 credited, got %d", credited)
	}
	if entry == nil || entry.Type != enums.CreditEntryTypePurchase || entry.State != enums.ReservationStateCommitted {
		t.Fatalf("unexpected grant entry %+v", entry)
	}
}

func TestBalanceMissingAccount(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, testConfig())
	_, err := svc.Balance(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBalanceReturnsCredits(t *testing.T) {
	repo := &stubRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.CreditAccount, error) {
			return &models.CreditAccount{UserID: id, Credits: 230}, nil
		},
	}
	svc := newTestService(t, repo, testConfig())
	balance, err := svc.Balance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 230 {
		t.Fatalf("expected 230, got %d", balance)
	}
}

func TestCostForTable(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, testConfig())
	cases := map[enums.ActionKind]int64{
		enums.ActionKindAvatarVideo: 75,
		enums.ActionKindAvatarImage: 150,
		enums.ActionKindPreset:      25,
		enums.ActionKindSpeech:      5,
	}
	for kind, want := range cases {
		if got := svc.CostFor(kind); got != want {
			t.Fatalf("cost for %s: expected %d, got %d", kind, want, got)
		}
	}
}
