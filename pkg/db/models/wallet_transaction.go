package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/pkg/enums"
)

// WalletTransaction is the record every wallet ledger mutation produces.
// Completed transactions are immutable.
type WalletTransaction struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID uuid.UUID `gorm:"column:wallet_id;type:uuid;not null;index"`
	UserID   uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	Type        enums.TransactionType      `gorm:"column:type;type:text;not null"`
	Direction   enums.TransactionDirection `gorm:"column:direction;type:text;not null"`
	AmountCents int64                      `gorm:"column:amount_cents;not null"`
	Status      enums.TransactionStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	// RefID is the external tracking code callers correlate on.
	RefID  string  `gorm:"column:ref_id;not null;index"`
	Reason *string `gorm:"column:reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
