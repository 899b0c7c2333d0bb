package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/metrics"
	"github.com/aktionfilm/aktionfilm-backend/pkg/pagination"
)

// Reservation is the in-flight handle for a reserved debit. The durable record
// lives in credit_entries; the handle only carries what Commit/Refund need.
type Reservation struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Kind   enums.ActionKind
	Cost   int64
	Exempt bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service gates every paid action behind the credit balance.
type Service interface {
	CostFor(kind enums.ActionKind) int64
	IsExempt(userID uuid.UUID) bool
	CheckAndReserve(ctx context.Context, userID uuid.UUID, kind enums.ActionKind, metadata json.RawMessage) (*Reservation, error)
	Commit(ctx context.Context, reservation *Reservation) error
	Refund(ctx context.Context, reservation *Reservation) error
	Grant(ctx context.Context, userID uuid.UUID, amount int64, entryType enums.CreditEntryType, metadata json.RawMessage) error
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditEntry, *pagination.Cursor, error)
	ProvisionAccount(ctx context.Context, tx *gorm.DB, userID uuid.UUID, signupGrant int64) error
}

// ServiceParams wires the ledger service dependencies.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Config   config.LedgerConfig
	Metrics  *metrics.LedgerMetrics
}

type service struct {
	repo     Repository
	txRunner txRunner
	costs    map[enums.ActionKind]int64
	exempt   map[uuid.UUID]struct{}
	metrics  *metrics.LedgerMetrics
}

// NewService wires a ledger service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}

	exempt := make(map[uuid.UUID]struct{}, len(params.Config.ExemptUserIDs))
	for _, raw := range params.Config.ExemptUserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid exempt user id %q: %w", raw, err)
		}
		exempt[id] = struct{}{}
	}

	costs := map[enums.ActionKind]int64{
		enums.ActionKindAvatarVideo: params.Config.AvatarVideoCost,
		enums.ActionKindAvatarImage: params.Config.AvatarImageCost,
		enums.ActionKindPreset:      params.Config.PresetCost,
		enums.ActionKindSpeech:      params.Config.SpeechCost,
	}

	return &service{
		repo:     params.Repo,
		txRunner: params.TxRunner,
		costs:    costs,
		exempt:   exempt,
		metrics:  params.Metrics,
	}, nil
}

func (s *service) CostFor(kind enums.ActionKind) int64 {
	return s.costs[kind]
}

func (s *service) IsExempt(userID uuid.UUID) bool {
	_, ok := s.exempt[userID]
	return ok
}

func (s *service) CheckAndReserve(ctx context.Context, userID uuid.UUID, kind enums.ActionKind, metadata json.RawMessage) (*Reservation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid action kind %q", kind))
	}

	cost := s.CostFor(kind)
	if s.IsExempt(userID) || cost == 0 {
		s.metrics.IncReserve(string(kind), "exempt")
		return &Reservation{UserID: userID, Kind: kind, Cost: cost, Exempt: true}, nil
	}

	var reservation *Reservation
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		debited, err := repo.DebitIfSufficient(ctx, userID, cost)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit credits")
		}
		if !debited {
			account, findErr := repo.FindAccount(ctx, userID)
			if findErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load credit account")
			}
			if account == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "credit account not found")
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientCredits,
				fmt.Sprintf("insufficient credits: need %d, have %d", cost, account.Credits)).
				WithDetails(map[string]any{
					"credits_needed":    cost,
					"credits_available": account.Credits,
				})
		}

		entry := &models.CreditEntry{
			UserID: userID,
			Kind:   kind,
			Type:   enums.CreditEntryTypeReserve,
			State:  enums.ReservationStateReserved,
			Amount: cost,
		}
		if len(metadata) > 0 {
			entry.Metadata = metadata
		}
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
		}

		reservation = &Reservation{
			ID:     entry.ID,
			UserID: userID,
			Kind:   kind,
			Cost:   cost,
		}
		return nil
	})
	if err != nil {
		outcome := "error"
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientCredits {
			outcome = "insufficient"
		}
		s.metrics.IncReserve(string(kind), outcome)
		return nil, err
	}

	s.metrics.IncReserve(string(kind), "reserved")
	return reservation, nil
}

// Commit settles a reservation after the vendor call succeeded. Committing a
// reservation that was already refunded is a state conflict.
func (s *service) Commit(ctx context.Context, reservation *Reservation) error {
	if reservation == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation is required")
	}
	if reservation.Exempt {
		return nil
	}

	moved, err := s.repo.TransitionEntry(ctx, reservation.ID,
		enums.ReservationStateReserved, enums.ReservationStateCommitted)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit reservation")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already settled")
	}
	return nil
}

// Refund restores the reserved credits exactly once. The state transition is
// the idempotency guard: a second call finds no reserved row and no-ops.
func (s *service) Refund(ctx context.Context, reservation *Reservation) error {
	if reservation == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation is required")
	}
	if reservation.Exempt {
		return nil
	}

	var refunded bool
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		moved, err := repo.TransitionEntry(ctx, reservation.ID,
			enums.ReservationStateReserved, enums.ReservationStateRefunded)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark refund")
		}
		if !moved {
			return nil
		}

		credited, err := repo.Credit(ctx, reservation.UserID, reservation.Cost)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore credits")
		}
		if !credited {
			return pkgerrors.New(pkgerrors.CodeNotFound, "credit account not found")
		}
		refunded = true
		return nil
	})
	if err != nil {
		s.metrics.IncRefund(string(reservation.Kind), "error")
		return err
	}
	if refunded {
		s.metrics.IncRefund(string(reservation.Kind), "refunded")
	} else {
		s.metrics.IncRefund(string(reservation.Kind), "noop")
	}
	return nil
}

// AttachRefundFailure notes a failed refund on the error a paid action is
// about to surface, so callers learn their credits were not restored instead
// of the failure disappearing into a log line.
func AttachRefundFailure(err, refundErr error) error {
	if refundErr == nil {
		return err
	}
	return pkgerrors.AttachDetail(err, "refund_error", refundErr.Error())
}

func (s *service) Grant(ctx context.Context, userID uuid.UUID, amount int64, entryType enums.CreditEntryType, metadata json.RawMessage) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "grant amount must be positive")
	}
	if entryType != enums.CreditEntryTypeGrant && entryType != enums.CreditEntryTypePurchase {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid grant entry type %q", entryType))
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		credited, err := repo.Credit(ctx, userID, amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant credits")
		}
		if !credited {
			return pkgerrors.New(pkgerrors.CodeNotFound, "credit account not found")
		}

		entry := &models.CreditEntry{
			ID:     uuid.New(),
			UserID: userID,
			Type:   entryType,
			State:  enums.ReservationStateCommitted,
			Amount: amount,
		}
		if len(metadata) > 0 {
			entry.Metadata = metadata
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record grant")
		}
		return nil
	})
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit account")
	}
	if account == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "credit account not found")
	}
	return account.Credits, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditEntry, *pagination.Cursor, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	entries, cursor, err := s.repo.ListEntriesByUser(ctx, userID, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit entries")
	}
	return entries, cursor, nil
}

// ProvisionAccount creates the balance row for a new user inside the caller's
// transaction, seeding it with the signup grant when one is configured.
func (s *service) ProvisionAccount(ctx context.Context, tx *gorm.DB, userID uuid.UUID, signupGrant int64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if signupGrant < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "signup grant cannot be negative")
	}

	repo := s.repo.WithTx(tx)
	account := &models.CreditAccount{
		ID:      uuid.New(),
		UserID:  userID,
		Credits: signupGrant,
	}
	if err := repo.CreateAccount(ctx, account); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create credit account")
	}

	if signupGrant > 0 {
		entry := &models.CreditEntry{
			ID:     uuid.New(),
			UserID: userID,
			Type:   enums.CreditEntryTypeGrant,
			State:  enums.ReservationStateCommitted,
			Amount: signupGrant,
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record signup grant")
		}
	}
	return nil
}
