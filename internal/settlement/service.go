package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/danielvega/gatherz-backend/internal/events"
	"github.com/danielvega/gatherz-backend/internal/joinrequests"
	"github.com/danielvega/gatherz-backend/internal/participation"
	"github.com/danielvega/gatherz-backend/internal/wallet"
	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service finishes events: it verifies every join request reached a final
// status, pays out captured ticket revenue minus the platform commission and
// frees any leftover holds, all in one transaction.
type Service interface {
	FinishEvent(ctx context.Context, actor participation.Actor, eventID uuid.UUID) (*Result, error)
}

// Result summarizes what a settlement run did.
type Result struct {
	EventID              uuid.UUID  `json:"eventId"`
	AlreadyFinished      bool       `json:"alreadyFinished"`
	GrossCents           int64      `json:"grossCents"`
	CommissionCents      int64      `json:"commissionCents"`
	PayoutCents          int64      `json:"payoutCents"`
	ReleasedReservations int        `json:"releasedReservations"`
	PayoutTransactionID  *uuid.UUID `json:"payoutTransactionId,omitempty"`
}

// PendingRequestsDetails explains a blocked settlement.
type PendingRequestsDetails struct {
	PendingCount int64 `json:"pendingCount"`
}

type service struct {
	tx            txRunner
	requestsRepo  joinrequests.Repository
	eventsRepo    events.Repository
	ledger        wallet.Ledger
	log           *logger.Logger
	commissionBps int
	now           func() time.Time
}

// ServiceParams groups dependencies for the settlement service.
type ServiceParams struct {
	Tx            txRunner
	RequestsRepo  joinrequests.Repository
	EventsRepo    events.Repository
	Ledger        wallet.Ledger
	Logger        *logger.Logger
	CommissionBps int
	Now           func() time.Time
}

// NewService builds the settlement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.RequestsRepo == nil {
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
	if params.CommissionBps < 0 || params.CommissionBps > 10000 {
		return nil, fmt.Errorf("commission bps out of range")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:            params.Tx,
		requestsRepo:  params.RequestsRepo,
		eventsRepo:    params.EventsRepo,
		ledger:        params.Ledger,
		log:           params.Logger,
		commissionBps: params.CommissionBps,
		now:           now,
	}, nil
}

func (s *service) FinishEvent(ctx context.Context, actor participation.Actor, eventID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		eventsRepo := s.eventsRepo.WithTx(tx)
		requestsRepo := s.requestsRepo.WithTx(tx)

		// The row lock serializes settlement against concurrent join request
		// writes, so the all-final check below stays valid through commit.
		event, err := eventsRepo.FindByIDForUpdate(ctx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load event")
		}
		if event == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		if !actor.System && actor.UserID != event.OwnerID && actor.Role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the event owner may finish the event")
		}

		if event.Status == enums.EventStatusFinished {
			result = &Result{EventID: event.ID, AlreadyFinished: true}
			return nil
		}
		if event.Status != enums.EventStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event cannot be finished from its current status").
				WithDetails(map[string]string{"eventStatus": event.Status.String()})
		}

		pending, err := requestsRepo.CountActive(ctx, event.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count unresolved join requests")
		}
		if pending > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "all join requests must reach a final status before settlement").
				WithDetails(PendingRequestsDetails{PendingCount: pending})
		}

		requests, err := requestsRepo.ListByEventAndStatuses(ctx, event.ID, enums.FinalJoinRequestStatuses)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load finalized join requests")
		}

		result = &Result{EventID: event.ID}
		if err := s.settleReservations(ctx, tx, requests, result); err != nil {
			return err
		}

		if result.GrossCents > 0 {
			commission := decimal.NewFromInt(result.GrossCents).
				Mul(decimal.NewFromInt(int64(s.commissionBps))).
				Div(decimal.NewFromInt(10000)).
				Floor()
			result.CommissionCents = commission.IntPart()
			result.PayoutCents = result.GrossCents - result.CommissionCents
		}

		if result.PayoutCents > 0 {
			reason := "event settlement payout"
			payout, err := s.ledger.Credit(ctx, tx, event.OwnerID, result.PayoutCents,
				enums.TransactionTypeTransferIn, event.ID.String(), &reason)
			if err != nil {
				return err
			}
			result.PayoutTransactionID = &payout.ID
		}

		finished, err := eventsRepo.MarkFinished(ctx, event.ID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark event finished")
		}
		if !finished {
			return pkgerrors.New(pkgerrors.CodeConcurrentConflict, "event was finished concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.log.WithEventID(ctx, result.EventID.String())
	if result.AlreadyFinished {
		s.log.Info(ctx, "settlement skipped, event already finished")
		return result, nil
	}
	ctx = s.log.WithFields(ctx, map[string]any{
		"payout_cents":     result.PayoutCents,
		"commission_cents": result.CommissionCents,
		"released":         result.ReleasedReservations,
	})
	s.log.Info(ctx, "event settled")
	return result, nil
}

// settleReservations walks the finalized requests: captured reservations of
// attendees feed the payout, holds left on rejected or canceled requests get
// released. Release failures are collected so every reservation is attempted
// before the transaction rolls back.
func (s *service) settleReservations(ctx context.Context, tx *gorm.DB, requests []models.JoinRequest, result *Result) error {
	var errs error
	for _, request := range requests {
		if request.PaymentReservationID == nil {
			continue
		}
		switch request.Status {
		case enums.JoinRequestStatusAttended, enums.JoinRequestStatusCompleted:
			reservation, err := s.ledger.Reservation(ctx, tx, *request.PaymentReservationID)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if reservation.Status == enums.TransactionStatusCompleted {
				result.GrossCents += reservation.AmountCents
			}
		case enums.JoinRequestStatusRejected, enums.JoinRequestStatusCanceled:
			reservation, err := s.ledger.Reservation(ctx, tx, *request.PaymentReservationID)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			// Already-released holds stay untouched and uncounted.
			if reservation.Status != enums.TransactionStatusPending {
				continue
			}
			if _, err := s.ledger.Release(ctx, tx, *request.PaymentReservationID); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			result.ReleasedReservations++
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, errs, "settle reservations")
	}
	return nil
}
