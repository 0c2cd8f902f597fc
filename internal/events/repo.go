package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

// Repository exposes persistence helpers for events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	// FindByIDForUpdate loads the event under SELECT FOR UPDATE so join
	// request writes and settlement serialize on the event row.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, params ListEventsParams) ([]models.Event, *pagination.Cursor, error)
	// UpdateStatusIf flips the status only when the row still holds the
	// expected one, reporting whether the flip happened.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.EventStatus) (bool, error)
	MarkFinished(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ExpireEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListEventsParams filters the event listing query.
type ListEventsParams struct {
	OwnerID *uuid.UUID
	Status  *enums.EventStatus
	Limit   int
	Cursor  *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an events repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repositoryImpl) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListEventsParams) ([]models.Event, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Event{})
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var events []models.Event
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, nil, err
	}

	if len(events) > normalized {
		next := events[normalized]
		events = events[:normalized]
		return events, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return events, nil, nil
}

func (r *repositoryImpl) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.EventStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumn("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MarkFinished(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND status = ?", id, enums.EventStatusApproved).
		Updates(map[string]any{
			"status":      enums.EventStatusFinished,
			"finished_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ExpireEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("status = ? AND ends_at < ?", enums.EventStatusApproved, cutoff).
		UpdateColumn("status", enums.EventStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
