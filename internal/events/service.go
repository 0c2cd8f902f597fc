package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

// Service exposes event management to controllers and collaborating services.
type Service interface {
	Create(ctx context.Context, input CreateEventInput) (*models.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, params ListEventsParams) ([]models.Event, *pagination.Cursor, error)
	Submit(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.Event, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Reject(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Suspend(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// CreateEventInput captures the organizer-supplied fields for a new event.
type CreateEventInput struct {
	OwnerID           uuid.UUID
	Title             string
	Description       *string
	ParticipationType enums.ParticipationType
	InviteMode        enums.InviteMode
	PriceCents        int64
	Capacity          *int
	StartsAt          time.Time
	EndsAt            time.Time
}

type service struct {
	repo Repository
}

// NewService builds the events service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateEventInput) (*models.Event, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if input.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if !input.ParticipationType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid participation type")
	}
	if input.ParticipationType.RequiresPayment() && input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticketed events require a positive price")
	}
	if !input.ParticipationType.RequiresPayment() && input.PriceCents != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free events cannot carry a price")
	}
	if input.Capacity != nil && *input.Capacity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must be at least 1")
	}
	if !input.EndsAt.After(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event must end after it starts")
	}

	mode := input.InviteMode
	if mode == "" {
		mode = enums.InviteModeApproval
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invite mode")
	}

	event := &models.Event{
		OwnerID:           input.OwnerID,
		Title:             input.Title,
		Description:       input.Description,
		ParticipationType: input.ParticipationType,
		InviteMode:        mode,
		PriceCents:        input.PriceCents,
		Capacity:          input.Capacity,
		Status:            enums.EventStatusDraft,
		StartsAt:          input.StartsAt,
		EndsAt:            input.EndsAt,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create event")
	}
	return event, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load event")
	}
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event, nil
}

func (s *service) List(ctx context.Context, params ListEventsParams) ([]models.Event, *pagination.Cursor, error) {
	events, cursor, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list events")
	}
	return events, cursor, nil
}

func (s *service) Submit(ctx context.Context, actorID uuid.UUID, id uuid.UUID) (*models.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owner may submit an event")
	}
	return s.transition(ctx, event, enums.EventStatusDraft, enums.EventStatusPending)
}

func (s *service) Approve(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, event, enums.EventStatusPending, enums.EventStatusApproved)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, event, enums.EventStatusPending, enums.EventStatusRejected)
}

func (s *service) Suspend(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, event, enums.EventStatusApproved, enums.EventStatusSuspended)
}

// transition flips the status with a conditional update. Repeating a flip
// that already happened returns the current row unchanged.
func (s *service) transition(ctx context.Context, event *models.Event, from, to enums.EventStatus) (*models.Event, error) {
	if event.Status == to {
		return event, nil
	}
	updated, err := s.repo.UpdateStatusIf(ctx, event.ID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update event status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "event is not in a state that allows this change").
			WithDetails(map[string]string{"currentStatus": event.Status.String(), "requiredStatus": from.String()})
	}
	event.Status = to
	return event, nil
}
