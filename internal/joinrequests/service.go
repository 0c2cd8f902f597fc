package joinrequests

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/gatherz-backend/internal/events"
	"github.com/danielvega/gatherz-backend/internal/participation"
	"github.com/danielvega/gatherz-backend/internal/wallet"
	"github.com/danielvega/gatherz-backend/pkg/db"
	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/logger"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the join request lifecycle: creation per participation type,
// guarded status transitions with their wallet side effects, and listings.
type Service interface {
	Create(ctx context.Context, actor participation.Actor, input CreateInput) (*models.JoinRequest, error)
	Get(ctx context.Context, actor participation.Actor, requestID uuid.UUID) (*models.JoinRequest, error)
	Transition(ctx context.Context, actor participation.Actor, requestID uuid.UUID, input TransitionInput) (*models.JoinRequest, error)
	Cancel(ctx context.Context, actor participation.Actor, requestID uuid.UUID, reason *string) (*models.JoinRequest, error)
	NextActions(ctx context.Context, actor participation.Actor, requestID uuid.UUID) ([]enums.JoinRequestStatus, error)
	ListByEvent(ctx context.Context, actor participation.Actor, params ListByEventParams) ([]models.JoinRequest, *pagination.Cursor, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params ListByUserParams) ([]models.JoinRequest, *pagination.Cursor, error)
}

// CreateInput captures the participant-supplied fields for a new join request.
type CreateInput struct {
	EventID uuid.UUID
}

// TransitionInput captures a requested status change.
type TransitionInput struct {
	Target               enums.JoinRequestStatus
	AttendancePercentage *int
	Reason               *string
}

type service struct {
	tx         txRunner
	repo       Repository
	eventsRepo events.Repository
	ledger     wallet.Ledger
	log        *logger.Logger
	maxRetries int
}

// ServiceParams groups dependencies for the join request service.
type ServiceParams struct {
	Tx         txRunner
	Repo       Repository
	EventsRepo events.Repository
	Ledger     wallet.Ledger
	Logger     *logger.Logger
	// MaxTransitionRetries bounds how often a transition is retried after an
	// optimistic lock miss.
	MaxTransitionRetries int
}

// NewService builds the join request service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("join request repository required")
	}
	if params.EventsRepo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	retries := params.MaxTransitionRetries
	if retries < 0 {
		retries = 0
	}
	return &service{
		tx:         params.Tx,
		repo:       params.Repo,
		eventsRepo: params.EventsRepo,
		ledger:     params.Ledger,
		log:        params.Logger,
		maxRetries: retries,
	}, nil
}

func (s *service) Create(ctx context.Context, actor participation.Actor, input CreateInput) (*models.JoinRequest, error) {
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	var request *models.JoinRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		eventsRepo := s.eventsRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		// The event row lock serializes concurrent creates and settlement, so
		// the capacity count below cannot race another insert.
		event, err := eventsRepo.FindByIDForUpdate(ctx, input.EventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load event")
		}
		if event == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		if event.Status != enums.EventStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event is not open for participation").
				WithDetails(map[string]string{"eventStatus": event.Status.String()})
		}
		if event.OwnerID == actor.UserID {
			return pkgerrors.New(pkgerrors.CodeValidation, "owner cannot join their own event")
		}

		existing, err := repo.FindByEventAndUser(ctx, event.ID, actor.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing join request")
		}
		if existing != nil && existing.Status != enums.JoinRequestStatusCanceled {
			return pkgerrors.New(pkgerrors.CodeConflict, "join request already exists for this event").
				WithDetails(map[string]string{"joinRequestId": existing.ID.String(), "status": existing.Status.String()})
		}

		if event.Capacity != nil {
			active, err := repo.CountActive(ctx, event.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count registered participants")
			}
			if active >= int64(*event.Capacity) {
				return pkgerrors.New(pkgerrors.CodeConflict, "event is at capacity").
					WithDetails(map[string]int64{"capacity": int64(*event.Capacity), "registered": active})
			}
		}

		status := participation.InitialStatus(event.ParticipationType, event.InviteMode)

		// A canceled request is revived in place so the (event, user) pair
		// stays unique.
		if existing != nil {
			request, err = s.reactivate(ctx, tx, repo, existing, event, actor, status)
			return err
		}

		request = &models.JoinRequest{
			ID:      uuid.New(),
			EventID: event.ID,
			UserID:  actor.UserID,
			Status:  status,
			Version: 1,
		}

		if request.Status == enums.JoinRequestStatusPaymentReserved {
			reservation, err := s.ledger.Reserve(ctx, tx, actor.UserID, event.PriceCents, request.ID.String())
			if err != nil {
				// InsufficientFunds rolls back the whole create.
				return err
			}
			request.PaymentReservationID = &reservation.ID
		}

		if err := repo.Create(ctx, request); err != nil {
			if db.IsUniqueViolation(err, "idx_join_requests_event_user") {
				return pkgerrors.New(pkgerrors.CodeConflict, "join request already exists for this event")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create join request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.log.WithFields(ctx, map[string]any{
		"join_request_id": request.ID.String(),
		"event_id":        request.EventID.String(),
		"status":          request.Status.String(),
	})
	s.log.Info(ctx, "join request created")
	return request, nil
}

// reactivate returns a canceled join request to the initial status for its
// event, taking a fresh reservation when the event is ticketed. The previous
// cancellation reason and attendance figures are wiped.
func (s *service) reactivate(
	ctx context.Context,
	tx *gorm.DB,
	repo Repository,
	existing *models.JoinRequest,
	event *models.Event,
	actor participation.Actor,
	status enums.JoinRequestStatus,
) (*models.JoinRequest, error) {
	var reservationID *uuid.UUID
	if status == enums.JoinRequestStatusPaymentReserved {
		reservation, err := s.ledger.Reserve(ctx, tx, actor.UserID, event.PriceCents, existing.ID.String())
		if err != nil {
			return nil, err
		}
		reservationID = &reservation.ID
	}

	reactivated, err := repo.Reactivate(ctx, existing.ID, existing.Version, status, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reactivate join request")
	}
	if !reactivated {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrentConflict, "join request was modified concurrently")
	}

	existing.Status = status
	existing.Version++
	existing.PaymentReservationID = reservationID
	existing.Reason = nil
	existing.AttendancePercentage = nil
	return existing, nil
}

func (s *service) Get(ctx context.Context, actor participation.Actor, requestID uuid.UUID) (*models.JoinRequest, error) {
	request, event, err := s.load(ctx, nil, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := participation.ResolveRole(actor, event, request); err != nil {
		return nil, err
	}
	return request, nil
}

// Transition moves a join request to the target status. Lost optimistic lock
// races are retried a bounded number of times before surfacing
// CONCURRENT_MODIFICATION to the caller.
func (s *service) Transition(ctx context.Context, actor participation.Actor, requestID uuid.UUID, input TransitionInput) (*models.JoinRequest, error) {
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if input.AttendancePercentage != nil && (*input.AttendancePercentage < 0 || *input.AttendancePercentage > 100) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attendance percentage must be between 0 and 100")
	}

	var request *models.JoinRequest
	var err error
	for attempt := 0; ; attempt++ {
		request, err = s.transitionOnce(ctx, actor, requestID, input)
		if !pkgerrors.HasCode(err, pkgerrors.CodeConcurrentConflict) || attempt >= s.maxRetries {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) transitionOnce(ctx context.Context, actor participation.Actor, requestID uuid.UUID, input TransitionInput) (*models.JoinRequest, error) {
	var request *models.JoinRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var event *models.Event
		var err error
		request, event, err = s.load(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if _, err := participation.ResolveRole(actor, event, request); err != nil {
			return err
		}

		// Repeating an already applied transition succeeds without effects.
		if request.Status == input.Target {
			return nil
		}

		role, err := participation.CanAct(actor, event, request, input.Target)
		if err != nil {
			return err
		}
		if !participation.CanTransition(event.ParticipationType, event.InviteMode, request.Status, role, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed from current status").
				WithDetails(map[string]any{
					"from":    request.Status.String(),
					"to":      input.Target.String(),
					"role":    role.String(),
					"allowed": participation.AllowedNextStatuses(event.ParticipationType, event.InviteMode, request.Status, role),
				})
		}

		if err := s.applySideEffects(ctx, tx, request, input.Target); err != nil {
			return err
		}

		update := StatusUpdate{
			Status:               input.Target,
			AttendancePercentage: input.AttendancePercentage,
			Reason:               input.Reason,
		}
		updated, err := s.repo.WithTx(tx).UpdateStatusVersioned(ctx, request.ID, request.Version, update)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update join request status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeConcurrentConflict, "join request was modified concurrently")
		}

		request.Status = input.Target
		request.Version++
		if input.AttendancePercentage != nil {
			request.AttendancePercentage = input.AttendancePercentage
		}
		if input.Reason != nil {
			request.Reason = input.Reason
		}

		logCtx := s.log.WithFields(ctx, map[string]any{
			"join_request_id": request.ID.String(),
			"status":          request.Status.String(),
			"actor_role":      role.String(),
		})
		s.log.Info(logCtx, "join request transitioned")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// applySideEffects runs the wallet movement tied to the target status inside
// the caller's transaction. Rejection and cancellation free held funds; paid
// captures them.
func (s *service) applySideEffects(ctx context.Context, tx *gorm.DB, request *models.JoinRequest, target enums.JoinRequestStatus) error {
	if request.PaymentReservationID == nil {
		return nil
	}
	switch target {
	case enums.JoinRequestStatusRejected, enums.JoinRequestStatusCanceled:
		_, err := s.ledger.Release(ctx, tx, *request.PaymentReservationID)
		return err
	case enums.JoinRequestStatusPaid:
		_, err := s.ledger.Capture(ctx, tx, *request.PaymentReservationID)
		return err
	default:
		return nil
	}
}

func (s *service) Cancel(ctx context.Context, actor participation.Actor, requestID uuid.UUID, reason *string) (*models.JoinRequest, error) {
	return s.Transition(ctx, actor, requestID, TransitionInput{
		Target: enums.JoinRequestStatusCanceled,
		Reason: reason,
	})
}

// NextActions returns the statuses the actor could move the request into
// right now. A finalized request yields an empty list.
func (s *service) NextActions(ctx context.Context, actor participation.Actor, requestID uuid.UUID) ([]enums.JoinRequestStatus, error) {
	request, event, err := s.load(ctx, nil, requestID)
	if err != nil {
		return nil, err
	}
	role, err := participation.ResolveRole(actor, event, request)
	if err != nil {
		return nil, err
	}
	return participation.AllowedNextStatuses(event.ParticipationType, event.InviteMode, request.Status, role), nil
}

func (s *service) ListByEvent(ctx context.Context, actor participation.Actor, params ListByEventParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	event, err := s.eventsRepo.FindByID(ctx, params.EventID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load event")
	}
	if event == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	if !actor.System && actor.UserID != event.OwnerID && actor.Role != enums.UserRoleAdmin {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the event owner may list join requests")
	}

	requests, cursor, err := s.repo.ListByEvent(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list join requests")
	}
	return requests, cursor, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, params ListByUserParams) ([]models.JoinRequest, *pagination.Cursor, error) {
	params.UserID = userID
	requests, cursor, err := s.repo.ListByUser(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list join requests")
	}
	return requests, cursor, nil
}

// load fetches the join request and its event, optionally inside a transaction.
func (s *service) load(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) (*models.JoinRequest, *models.Event, error) {
	repo := s.repo.WithTx(tx)
	eventsRepo := s.eventsRepo.WithTx(tx)

	request, err := repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load join request")
	}
	if request == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "join request not found")
	}

	event, err := eventsRepo.FindByID(ctx, request.EventID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load event")
	}
	if event == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInternal, "join request references a missing event")
	}
	return request, event, nil
}
