package events

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/api/middleware"
	"github.com/danielvega/gatherz-backend/api/responses"
	"github.com/danielvega/gatherz-backend/api/validators"
	internalevents "github.com/danielvega/gatherz-backend/internal/events"
	"github.com/danielvega/gatherz-backend/internal/participation"
	"github.com/danielvega/gatherz-backend/internal/settlement"
	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/logger"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

type createEventRequest struct {
	Title             string    `json:"title" validate:"required,max=200"`
	Description       *string   `json:"description,omitempty"`
	ParticipationType string    `json:"participation_type" validate:"required"`
	InviteMode        string    `json:"invite_mode,omitempty"`
	PriceCents        int64     `json:"price_cents" validate:"min=0"`
	Capacity          *int      `json:"capacity,omitempty"`
	StartsAt          time.Time `json:"starts_at" validate:"required"`
	EndsAt            time.Time `json:"ends_at" validate:"required"`
}

type eventListResponse struct {
	Items      []models.Event `json:"items"`
	NextCursor *string        `json:"nextCursor,omitempty"`
}

func Create(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		participationType, err := enums.ParseParticipationType(payload.ParticipationType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid participation_type"))
			return
		}

		var inviteMode enums.InviteMode
		if strings.TrimSpace(payload.InviteMode) != "" {
			inviteMode, err = enums.ParseInviteMode(payload.InviteMode)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invite_mode"))
				return
			}
		}

		event, err := svc.Create(r.Context(), internalevents.CreateEventInput{
			OwnerID:           actor.UserID,
			Title:             payload.Title,
			Description:       payload.Description,
			ParticipationType: participationType,
			InviteMode:        inviteMode,
			PriceCents:        payload.PriceCents,
			Capacity:          payload.Capacity,
			StartsAt:          payload.StartsAt,
			EndsAt:            payload.EndsAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, event)
	}
}

func Detail(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parseEventID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Get(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

func List(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := validators.ParseQueryCursor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := internalevents.ListEventsParams{Limit: limit, Cursor: cursor}

		if raw := strings.TrimSpace(r.URL.Query().Get("owner_id")); raw != "" {
			ownerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner_id"))
				return
			}
			params.OwnerID = &ownerID
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseEventStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		items, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eventListResponse{Items: items, NextCursor: encodeCursor(next)})
	}
}

func Submit(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := parseEventID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Submit(r.Context(), actor.UserID, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

func Approve(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return moderate(svc.Approve, logg)
}

func Reject(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return moderate(svc.Reject, logg)
}

func Suspend(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return moderate(svc.Suspend, logg)
}

// Finish settles an approved event: captured reservations are summed, the
// commission withheld and the payout credited to the organizer.
func Finish(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := parseEventID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.FinishEvent(r.Context(), actor, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func moderate(op func(context.Context, uuid.UUID) (*models.Event, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parseEventID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := op(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

func parseEventID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "eventId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id")
	}
	return eventID, nil
}

func requestActor(r *http.Request) (participation.Actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return participation.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return participation.Actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return participation.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor role")
	}
	return participation.Actor{UserID: userID, Role: role}, nil
}

func encodeCursor(cursor *pagination.Cursor) *string {
	if cursor == nil {
		return nil
	}
	encoded := pagination.EncodeCursor(*cursor)
	return &encoded
}
