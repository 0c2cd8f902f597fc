package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/pkg/enums"
)

// JoinRequest records one user's intent to participate in one event. Rows are
// never deleted; cancellation is a status so history survives for settlement
// and review eligibility.
type JoinRequest struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID uuid.UUID `gorm:"column:event_id;type:uuid;not null;uniqueIndex:idx_join_requests_event_user"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_join_requests_event_user"`

	Status enums.JoinRequestStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	// PaymentReservationID links to the wallet transaction holding funds for
	// ticketed participation.
	PaymentReservationID *uuid.UUID `gorm:"column:payment_reservation_id;type:uuid"`
	AttendancePercentage *int       `gorm:"column:attendance_percentage"`
	Reason               *string    `gorm:"column:reason"`

	// Version backs optimistic concurrency on status transitions.
	Version   int       `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
