package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aktionfilm/aktionfilm-backend/pkg/enums"
)

// CreditEntry records an immutable credit movement against an account.
// Reserve entries double as the durable record of a paid action request:
// their state walks reserved -> committed | refunded exactly once.
type CreditEntry struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Kind      enums.ActionKind       `gorm:"column:kind;type:text"`
	Type      enums.CreditEntryType  `gorm:"column:type;type:credit_entry_type_enum;not null"`
	State     enums.ReservationState `gorm:"column:state;type:reservation_state_enum;not null"`
	Amount    int64                  `gorm:"column:amount;not null"`
	Metadata  json.RawMessage        `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
