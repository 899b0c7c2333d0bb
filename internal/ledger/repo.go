package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
	"github.com/aktionfilm/aktionfilm-backend/pkg/pagination"
)

// Repository manages persistence for credit accounts and entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAccount(ctx context.Context, account *models.CreditAccount) error
	FindAccount(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)
	DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64) (bool, error)
	CreateEntry(ctx context.Context, entry *models.CreditEntry) error
	FindEntry(ctx context.Context, id uuid.UUID) (*models.CreditEntry, error)
	TransitionEntry(ctx context.Context, id uuid.UUID, from, to enums.ReservationState) (bool, error)
	ListEntriesByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditEntry, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAccount(ctx context.Context, account *models.CreditAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindAccount(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// DebitIfSufficient performs the debit as one conditional update so that two
// concurrent requests can never both pass the balance check: whichever update
// lands second sees the already-reduced balance in its guard.
func (r *repository) DebitIfSufficient(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ? AND credits >= ?", userID, amount).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Credit(ctx context.Context, userID uuid.UUID, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"credits":    gorm.Expr("credits + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.CreditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntry(ctx context.Context, id uuid.UUID) (*models.CreditEntry, error) {
	var entry models.CreditEntry
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entry).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// TransitionEntry flips a reservation's state only when it still holds the
// expected one. A false return means another path already settled it.
func (r *repository) TransitionEntry(ctx context.Context, id uuid.UUID, from, to enums.ReservationState) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditEntry{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]any{
			"state":      to,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListEntriesByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditEntry, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var entries []models.CreditEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	pageSize := pagination.NormalizeLimit(params.Limit)
	if len(entries) <= pageSize {
		return entries, nil, nil
	}
	entries = entries[:pageSize]
	last := entries[len(entries)-1]
	next := &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	return entries, next, nil
}
