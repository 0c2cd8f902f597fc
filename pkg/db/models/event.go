package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/pkg/enums"
)

// Event is an organizer-owned gathering users can request to join. The
// approval pipeline mutates Status up to approved; settlement flips it to
// finished and the expiry sweep to expired.
type Event struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID           uuid.UUID               `gorm:"column:owner_id;type:uuid;not null;index"`
	Title             string                  `gorm:"column:title;not null"`
	Description       *string                 `gorm:"column:description"`
	ParticipationType enums.ParticipationType `gorm:"column:participation_type;type:text;not null"`
	// InviteMode selects the lifecycle graph for invite_only events; unused
	// for the other participation types.
	InviteMode enums.InviteMode  `gorm:"column:invite_mode;type:text;not null;default:'approval'"`
	PriceCents int64             `gorm:"column:price_cents;not null;default:0"`
	Capacity   *int              `gorm:"column:capacity"`
	Status     enums.EventStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	StartsAt   time.Time         `gorm:"column:starts_at;not null"`
	EndsAt     time.Time         `gorm:"column:ends_at;not null"`
	FinishedAt *time.Time        `gorm:"column:finished_at"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
