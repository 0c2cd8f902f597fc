package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet tracks one user's spendable and held funds in the smallest currency
// unit. Both balances stay non-negative; mutations go through the wallet
// ledger only.
type Wallet struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	AvailableCents int64     `gorm:"column:available_cents;not null;default:0"`
	ReservedCents  int64     `gorm:"column:reserved_cents;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalCents is the figure surfaced to users when a reservation fails.
func (w Wallet) TotalCents() int64 {
	return w.AvailableCents + w.ReservedCents
}
