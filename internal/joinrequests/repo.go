package joinrequests

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

// Repository exposes persistence helpers for join requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.JoinRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error)
	FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.JoinRequest, error)
	ListByEvent(ctx context.Context, params ListByEventParams) ([]models.JoinRequest, *pagination.Cursor, error)
	ListByUser(ctx context.Context, params ListByUserParams) ([]models.JoinRequest, *pagination.Cursor, error)
	ListByEventAndStatuses(ctx context.Context, eventID uuid.UUID, statuses []enums.JoinRequestStatus) ([]models.JoinRequest, error)
	// CountActive counts requests still occupying a seat, meaning every
	// request not in a final status.
	CountActive(ctx context.Context, eventID uuid.UUID) (int64, error)
	// UpdateStatusVersioned applies the change only if the row still carries
	// the expected version, bumping it on success.
	UpdateStatusVersioned(ctx context.Context, id uuid.UUID, version int, update StatusUpdate) (bool, error)
	// Reactivate revives a canceled row with a fresh lifecycle status and
	// reservation, clearing the leftovers of the previous run. Guarded by the
	// version column like UpdateStatusVersioned.
	Reactivate(ctx context.Context, id uuid.UUID, version int, status enums.JoinRequestStatus, reservationID *uuid.UUID) (bool, error)
}

// StatusUpdate carries the fields a transition may change.
type StatusUpdate struct {
	Status               enums.JoinRequestStatus
	AttendancePercentage *int
	Reason               *string
}

// ListByEventParams filters the per-event listing query.
type ListByEventParams struct {
	EventID uuid.UUID
	Status  *enums.JoinRequestStatus
	Limit   int
	Cursor  *pagination.Cursor
}

// ListByUserParams filters the per-user listing query.
type ListByUserParams struct {
	UserID uuid.UUID
	Status *enums.JoinRequestStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a join request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, request *models.JoinRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	var request models.JoinRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) FindByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.JoinRequest, error) {
	var request models.JoinRequest
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) ListByEvent(ctx context.Context, params ListByEventParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.JoinRequest{}).
		Where("event_id = ?", params.EventID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var requests []models.JoinRequest
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, nil, err
	}
	if len(requests) > normalized {
		next := requests[normalized]
		requests = requests[:normalized]
		return requests, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return requests, nil, nil
}

func (r *repositoryImpl) ListByUser(ctx context.Context, params ListByUserParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.JoinRequest{}).
		Where("user_id = ?", params.UserID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var requests []models.JoinRequest
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, nil, err
	}
	if len(requests) > normalized {
		next := requests[normalized]
		requests = requests[:normalized]
		return requests, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return requests, nil, nil
}

func (r *repositoryImpl) ListByEventAndStatuses(ctx context.Context, eventID uuid.UUID, statuses []enums.JoinRequestStatus) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND status IN ?", eventID, statuses).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repositoryImpl) CountActive(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.JoinRequest{}).
		Where("event_id = ? AND status NOT IN ?", eventID, enums.FinalJoinRequestStatuses).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repositoryImpl) UpdateStatusVersioned(ctx context.Context, id uuid.UUID, version int, update StatusUpdate) (bool, error) {
	changes := map[string]any{
		"status":  update.Status,
		"version": gorm.Expr("version + 1"),
	}
	if update.AttendancePercentage != nil {
		changes["attendance_percentage"] = *update.AttendancePercentage
	}
	if update.Reason != nil {
		changes["reason"] = *update.Reason
	}
	result := r.db.WithContext(ctx).
		Model(&models.JoinRequest{}).
		Where("id = ? AND version = ?", id, version).
		Updates(changes)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Reactivate(ctx context.Context, id uuid.UUID, version int, status enums.JoinRequestStatus, reservationID *uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.JoinRequest{}).
		Where("id = ? AND version = ? AND status = ?", id, version, enums.JoinRequestStatusCanceled).
		Updates(map[string]any{
			"status":                 status,
			"payment_reservation_id": reservationID,
			"attendance_percentage":  nil,
			"reason":                 nil,
			"version":                gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
