package jobs

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
)

// Repository manages persistence for generation job ownership records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, job *models.GenerationJob) error
	FindByVendorExternalID(ctx context.Context, vendor enums.JobVendor, externalID string) (*models.GenerationJob, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.GenerationJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, resultURL *string) error
	SetVisibility(ctx context.Context, id uuid.UUID, isPublic bool) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a jobs repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts the ownership row, or refreshes the mutable columns when the
// vendor reports an external id we have already seen.
func (r *repository) Upsert(ctx context.Context, job *models.GenerationJob) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "vendor"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "result_url", "updated_at",
			}),
		}).
		Create(job).Error
}

func (r *repository) FindByVendorExternalID(ctx context.Context, vendor enums.JobVendor, externalID string) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := r.db.WithContext(ctx).
		Where("vendor = ? AND external_id = ?", vendor, externalID).
		First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.GenerationJob, error) {
	var jobs []models.GenerationJob
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, resultURL *string) error {
	updates := map[string]any{"status": status}
	if resultURL != nil {
		updates["result_url"] = resultURL
	}
	return r.db.WithContext(ctx).
		Model(&models.GenerationJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SetVisibility(ctx context.Context, id uuid.UUID, isPublic bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GenerationJob{}).
		Where("id = ?", id).
		Update("is_public", isPublic)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
