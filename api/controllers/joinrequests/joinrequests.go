package joinrequests

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/api/middleware"
	"github.com/danielvega/gatherz-backend/api/responses"
	"github.com/danielvega/gatherz-backend/api/validators"
	internaljoinrequests "github.com/danielvega/gatherz-backend/internal/joinrequests"
	"github.com/danielvega/gatherz-backend/internal/participation"
	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/logger"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

type transitionRequest struct {
	Target               string  `json:"target" validate:"required"`
	AttendancePercentage *int    `json:"attendance_percentage,omitempty" validate:"omitempty,min=0,max=100"`
	Reason               *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type cancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type listResponse struct {
	Items      []models.JoinRequest `json:"items"`
	NextCursor *string              `json:"nextCursor,omitempty"`
}

type actionsResponse struct {
	Actions []enums.JoinRequestStatus `json:"actions"`
}

// Create registers the caller as a participant on the event named in the
// path. Ticketed events reserve the ticket price from the caller's wallet in
// the same transaction.
func Create(svc internaljoinrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := parsePathID(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Create(r.Context(), actor, internaljoinrequests.CreateInput{EventID: eventID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

func Detail(svc internaljoinrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := parsePathID(r, "requestId", "join request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		request, err := svc.Get(r.Context(), actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func Transition(svc internaljoinrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := parsePathID(r, "requestId", "join request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseJoinRequestStatus(payload.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		request, err := svc.Transition(r.Context(), actor, requestID, internaljoinrequests.TransitionInput{
			Target:               target,
			AttendancePercentage: payload.AttendancePercentage,
			Reason:               payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func Cancel(svc internaljoinrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := parsePathID(r, "requestId", "join request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		request, err := svc.Cancel(r.Context(), actor, requestID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

// NextActions lists the statuses the caller could move the request into.
func NextActions(svc internaljoinrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := parsePathID(r, "requestId", "join request id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actions, err := svc.NextActions(r.Context(), actor, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, actionsResponse{Actions: actions})
	}
}

func ListByEvent(svc internaljoinrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := parsePathID(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, cursor, status, err := listQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, next, err := svc.ListByEvent(r.Context(), actor, internaljoinrequests.ListByEventParams{
			EventID: eventID,
			Status:  status,
			Limit:   limit,
			Cursor:  cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Items: items, NextCursor: encodeCursor(next)})
	}
}

func ListMine(svc internaljoinrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, cursor, status, err := listQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, next, err := svc.ListByUser(r.Context(), actor.UserID, internaljoinrequests.ListByUserParams{
			Status: status,
			Limit:  limit,
			Cursor: cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listResponse{Items: items, NextCursor: encodeCursor(next)})
	}
}

func listQuery(r *http.Request) (int, *pagination.Cursor, *enums.JoinRequestStatus, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return 0, nil, nil, err
	}
	cursor, err := validators.ParseQueryCursor(r)
	if err != nil {
		return 0, nil, nil, err
	}
	var status *enums.JoinRequestStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := enums.ParseJoinRequestStatus(raw)
		if err != nil {
			return 0, nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		status = &parsed
	}
	return limit, cursor, status, nil
}

func parsePathID(r *http.Request, param, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
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
