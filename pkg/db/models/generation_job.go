package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
)

// GenerationJob records which user owns a vendor-side generation job.
// The vendor assigns ExternalID and fully controls Status; this row exists so
// polling endpoints can authorize access and so results stay private until the
// owner publishes them.
type GenerationJob struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Vendor        enums.JobVendor  `gorm:"column:vendor;type:text;not null;uniqueIndex:idx_generation_jobs_vendor_external"`
	ExternalID    string           `gorm:"column:external_id;type:text;not null;uniqueIndex:idx_generation_jobs_vendor_external"`
	Kind          enums.ActionKind `gorm:"column:kind;type:text;not null"`
	Model         *string          `gorm:"column:model;type:text"`
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status        string           `gorm:"column:status;type:text;not null"`
	ResultURL     *string          `gorm:"column:result_url"`
	IsPublic      bool             `gorm:"column:is_public;not null;default:false"`
	ReservationID *uuid.UUID       `gorm:"column:reservation_id;type:uuid"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
