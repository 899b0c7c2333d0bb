package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount holds the spendable balance for a single user.
// The credits column carries a CHECK (credits >= 0) constraint; every debit
// goes through a conditional update so the balance can never observe a
// negative value, even under concurrent requests.
type CreditAccount struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Credits   int64     `gorm:"column:credits;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
