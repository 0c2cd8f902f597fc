package participation

import (
	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
)

// Actor is whoever is attempting an operation on a join request. System is
// set only by internal callers (settlement, payment callbacks), never from a
// request token.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
	System bool
}

// SystemActor is the internal actor used by settlement and background jobs.
var SystemActor = Actor{System: true}

// ResolveRole maps an actor to its role on the given join request. Admins act
// with owner privileges on any event. Unrelated users get Unauthorized.
func ResolveRole(actor Actor, event *models.Event, request *models.JoinRequest) (enums.ActorRole, error) {
	switch {
	case actor.System:
		return enums.ActorRoleSystem, nil
	case actor.UserID == event.OwnerID || actor.Role == enums.UserRoleAdmin:
		return enums.ActorRoleOwner, nil
	case actor.UserID == request.UserID:
		return enums.ActorRoleParticipant, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "actor has no role on this join request")
	}
}

// targetsByRole caps what each role may ever set, independent of the current
// status. The lifecycle graphs narrow this further per participation type.
var targetsByRole = map[enums.ActorRole][]enums.JoinRequestStatus{
	enums.ActorRoleOwner: {
		enums.JoinRequestStatusApproved,
		enums.JoinRequestStatusRejected,
		enums.JoinRequestStatusPaid,
		enums.JoinRequestStatusConfirmed,
		enums.JoinRequestStatusCheckedIn,
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
	},
	enums.ActorRoleParticipant: {
		enums.JoinRequestStatusCanceled,
	},
}

// CanAct authorizes a transition attempt and returns the actor's resolved
// role. Authorization failures surface as Unauthorized before the lifecycle
// graph is ever consulted, so callers can tell "not allowed to act" apart
// from "illegal transition".
func CanAct(
	actor Actor,
	event *models.Event,
	request *models.JoinRequest,
	target enums.JoinRequestStatus,
) (enums.ActorRole, error) {
	role, err := ResolveRole(actor, event, request)
	if err != nil {
		return "", err
	}
	if role == enums.ActorRoleSystem {
		return role, nil
	}
	if role == enums.ActorRoleParticipant && request.Status.IsFinal() {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "participant cannot act on a finalized join request")
	}
	for _, allowed := range targetsByRole[role] {
		if allowed == target {
			return role, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role may not set this status")
}
