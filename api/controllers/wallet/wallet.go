package wallet

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/api/middleware"
	"github.com/danielvega/gatherz-backend/api/responses"
	"github.com/danielvega/gatherz-backend/api/validators"
	internalwallet "github.com/danielvega/gatherz-backend/internal/wallet"
	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/logger"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

type amountRequest struct {
	AmountCents int64   `json:"amount_cents" validate:"required,gt=0"`
	Reason      *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type transactionsResponse struct {
	Items      []models.WalletTransaction `json:"items"`
	NextCursor *string                    `json:"nextCursor,omitempty"`
}

func Balance(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wallet, err := svc.GetBalance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}

func Transactions(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
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

		params := internalwallet.ListTransactionsParams{
			UserID: userID,
			Limit:  limit,
			Cursor: cursor,
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			txnType, err := enums.ParseTransactionType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
				return
			}
			params.Type = &txnType
		}

		items, next, err := svc.ListTransactions(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionsResponse{Items: items, NextCursor: encodeCursor(next)})
	}
}

func Deposit(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return selfMove(svc.Deposit, http.StatusCreated, logg)
}

func Withdraw(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return selfMove(svc.Withdraw, http.StatusCreated, logg)
}

// AdminFreeze moves part of a user's available balance into a held penalty
// reserve. Admin only.
func AdminFreeze(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminMove(svc.Freeze, logg)
}

// AdminUnfreeze returns previously frozen funds to the user's available
// balance. Admin only.
func AdminUnfreeze(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminMove(svc.Unfreeze, logg)
}

type moveFunc func(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error)

func selfMove(move moveFunc, status int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload amountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := move(r.Context(), userID, payload.AmountCents, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, txn)
	}
}

func adminMove(move moveFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(chi.URLParam(r, "userId"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id is required"))
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}
		var payload amountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := move(r.Context(), userID, payload.AmountCents, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return userID, nil
}

func encodeCursor(cursor *pagination.Cursor) *string {
	if cursor == nil {
		return nil
	}
	encoded := pagination.EncodeCursor(*cursor)
	return &encoded
}
