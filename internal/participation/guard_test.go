package participation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
)

func fixtureRequest() (*models.Event, *models.JoinRequest) {
	event := &models.Event{
		ID:                uuid.New(),
		OwnerID:           uuid.New(),
		ParticipationType: enums.ParticipationTypeApprovalRequired,
		Status:            enums.EventStatusApproved,
	}
	request := &models.JoinRequest{
		ID:      uuid.New(),
		EventID: event.ID,
		UserID:  uuid.New(),
		Status:  enums.JoinRequestStatusPending,
	}
	return event, request
}

func TestResolveRole(t *testing.T) {
	event, request := fixtureRequest()

	role, err := ResolveRole(Actor{UserID: event.OwnerID}, event, request)
	if err != nil || role != enums.ActorRoleOwner {
		t.Fatalf("expected owner role, got %s err=%v", role, err)
	}

	role, err = ResolveRole(Actor{UserID: request.UserID}, event, request)
	if err != nil || role != enums.ActorRoleParticipant {
		t.Fatalf("expected participant role, got %s err=%v", role, err)
	}

	role, err = ResolveRole(SystemActor, event, request)
	if err != nil || role != enums.ActorRoleSystem {
		t.Fatalf("expected system role, got %s err=%v", role, err)
	}

	_, err = ResolveRole(Actor{UserID: uuid.New()}, event, request)
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for unrelated user, got %v", err)
	}
}

func TestAdminActsAsOwner(t *testing.T) {
	event, request := fixtureRequest()

	role, err := ResolveRole(Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, event, request)
	if err != nil || role != enums.ActorRoleOwner {
		t.Fatalf("expected admin to resolve as owner, got %s err=%v", role, err)
	}
}

func TestCanActParticipantOnlyCancels(t *testing.T) {
	event, request := fixtureRequest()
	participant := Actor{UserID: request.UserID}

	if _, err := CanAct(participant, event, request, enums.JoinRequestStatusCanceled); err != nil {
		t.Fatalf("participant should be able to cancel: %v", err)
	}

	_, err := CanAct(participant, event, request, enums.JoinRequestStatusApproved)
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for participant self-approval, got %v", err)
	}
}

func TestCanActParticipantBlockedAfterFinal(t *testing.T) {
	event, request := fixtureRequest()
	request.Status = enums.JoinRequestStatusRejected

	_, err := CanAct(Actor{UserID: request.UserID}, event, request, enums.JoinRequestStatusCanceled)
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED on finalized request, got %v", err)
	}
}

func TestCanActOwnerCannotCancel(t *testing.T) {
	event, request := fixtureRequest()

	_, err := CanAct(Actor{UserID: event.OwnerID}, event, request, enums.JoinRequestStatusCanceled)
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED for owner cancel, got %v", err)
	}
}

func TestCanActSystemUnrestricted(t *testing.T) {
	event, request := fixtureRequest()

	role, err := CanAct(SystemActor, event, request, enums.JoinRequestStatusCompleted)
	if err != nil || role != enums.ActorRoleSystem {
		t.Fatalf("expected system to pass the guard, got %s err=%v", role, err)
	}
}
