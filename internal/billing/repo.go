package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
)

// Repository manages persistence for purchasable credit packs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, pack *models.CreditPack) error
	ListActive(ctx context.Context) ([]models.CreditPack, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPack, error)
	FindByStripePriceID(ctx context.Context, priceID string) (*models.CreditPack, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, pack *models.CreditPack) error {
	return r.db.WithContext(ctx).Create(pack).Error
}

func (r *repository) ListActive(ctx context.Context) ([]models.CreditPack, error) {
	var packs []models.CreditPack
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("credits ASC").
		Find(&packs).Error; err != nil {
		return nil, err
	}
	return packs, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CreditPack, error) {
	var pack models.CreditPack
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&pack).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pack, nil
}

func (r *repository) FindByStripePriceID(ctx context.Context, priceID string) (*models.CreditPack, error) {
	var pack models.CreditPack
	if err := r.db.WithContext(ctx).
		Where("stripe_price_id = ?", priceID).
		First(&pack).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pack, nil
}
