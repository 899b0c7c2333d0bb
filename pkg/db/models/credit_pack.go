package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditPack is a purchasable bundle of credits sold through Stripe checkout.
type CreditPack struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string          `gorm:"column:name;not null"`
	Credits       int64           `gorm:"column:credits;not null"`
	PriceUSD      decimal.Decimal `gorm:"column:price_usd;type:numeric(10,2);not null"`
	StripePriceID string          `gorm:"column:stripe_price_id;type:text;not null;uniqueIndex"`
	Active        bool            `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
