package participation

import (
	"github.com/danielvega/gatherz-backend/pkg/enums"
)

// edge identifies one position in a lifecycle graph: where the request is and
// who is acting on it.
type edge struct {
	current enums.JoinRequestStatus
	role    enums.ActorRole
}

// graph maps an edge to the statuses legally reachable from it. Lookups on
// unknown edges return the empty set, which keeps the policy total.
type graph map[edge][]enums.JoinRequestStatus

// ATTENDED and COMPLETED are both terminal check-out outcomes; the owner
// picks one and the request never moves again.
var openGraph = graph{
	{enums.JoinRequestStatusPending, enums.ActorRoleSystem}: {enums.JoinRequestStatusApproved},
	{enums.JoinRequestStatusPending, enums.ActorRoleOwner}:  {enums.JoinRequestStatusApproved},
	{enums.JoinRequestStatusApproved, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusCheckedIn,
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
	},
	{enums.JoinRequestStatusCheckedIn, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
	},

	{enums.JoinRequestStatusPending, enums.ActorRoleParticipant}:   {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusApproved, enums.ActorRoleParticipant}:  {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusCheckedIn, enums.ActorRoleParticipant}: {enums.JoinRequestStatusCanceled},
}

var approvalGraph = graph{
	{enums.JoinRequestStatusPending, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusApproved,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusApproved, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusCheckedIn,
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusCheckedIn, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
	},

	{enums.JoinRequestStatusPending, enums.ActorRoleParticipant}:  {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusApproved, enums.ActorRoleParticipant}: {enums.JoinRequestStatusCanceled},
}

var ticketedGraph = graph{
	{enums.JoinRequestStatusPaymentReserved, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusPaid,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusPaymentReserved, enums.ActorRoleSystem}: {enums.JoinRequestStatusPaid},
	{enums.JoinRequestStatusPaid, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusConfirmed,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusPaid, enums.ActorRoleSystem}: {enums.JoinRequestStatusConfirmed},
	{enums.JoinRequestStatusConfirmed, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusCheckedIn,
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusCheckedIn, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
	},

	{enums.JoinRequestStatusPaymentReserved, enums.ActorRoleParticipant}: {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusPaid, enums.ActorRoleParticipant}:            {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusConfirmed, enums.ActorRoleParticipant}:       {enums.JoinRequestStatusCanceled},
}

var approvalTicketedGraph = graph{
	{enums.JoinRequestStatusPaymentReserved, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusApproved,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusApproved, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusPaid,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusApproved, enums.ActorRoleSystem}: {enums.JoinRequestStatusPaid},
	{enums.JoinRequestStatusPaid, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusConfirmed,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusPaid, enums.ActorRoleSystem}: {enums.JoinRequestStatusConfirmed},
	{enums.JoinRequestStatusConfirmed, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusCheckedIn,
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
		enums.JoinRequestStatusRejected,
	},
	{enums.JoinRequestStatusCheckedIn, enums.ActorRoleOwner}: {
		enums.JoinRequestStatusAttended,
		enums.JoinRequestStatusCompleted,
	},

	{enums.JoinRequestStatusPaymentReserved, enums.ActorRoleParticipant}: {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusApproved, enums.ActorRoleParticipant}:        {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusPaid, enums.ActorRoleParticipant}:            {enums.JoinRequestStatusCanceled},
	{enums.JoinRequestStatusConfirmed, enums.ActorRoleParticipant}:       {enums.JoinRequestStatusCanceled},
}

var graphsByType = map[enums.ParticipationType]graph{
	enums.ParticipationTypeOpen:             openGraph,
	enums.ParticipationTypeApprovalRequired: approvalGraph,
	enums.ParticipationTypeTicketed:         ticketedGraph,
	enums.ParticipationTypeApprovalTicketed: approvalTicketedGraph,
}

// EffectiveType resolves invite-only events to the graph they borrow. The
// invite credential itself is checked upstream by the invitations collaborator.
func EffectiveType(t enums.ParticipationType, mode enums.InviteMode) enums.ParticipationType {
	if t != enums.ParticipationTypeInviteOnly {
		return t
	}
	if mode == enums.InviteModeOpen {
		return enums.ParticipationTypeOpen
	}
	return enums.ParticipationTypeApprovalRequired
}

// AllowedNextStatuses returns the statuses the given role may move a join
// request into from its current status. It is pure and total: unknown
// combinations yield the empty set.
func AllowedNextStatuses(
	t enums.ParticipationType,
	mode enums.InviteMode,
	current enums.JoinRequestStatus,
	role enums.ActorRole,
) []enums.JoinRequestStatus {
	g, ok := graphsByType[EffectiveType(t, mode)]
	if !ok {
		return nil
	}
	next := g[edge{current: current, role: role}]
	out := make([]enums.JoinRequestStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether the policy allows the move.
func CanTransition(
	t enums.ParticipationType,
	mode enums.InviteMode,
	current enums.JoinRequestStatus,
	role enums.ActorRole,
	target enums.JoinRequestStatus,
) bool {
	for _, candidate := range AllowedNextStatuses(t, mode, current, role) {
		if candidate == target {
			return true
		}
	}
	return false
}

// InitialStatus returns the status a freshly created join request starts in
// for the given participation type.
func InitialStatus(t enums.ParticipationType, mode enums.InviteMode) enums.JoinRequestStatus {
	switch EffectiveType(t, mode) {
	case enums.ParticipationTypeOpen:
		// Open events auto-approve on create.
		return enums.JoinRequestStatusApproved
	case enums.ParticipationTypeTicketed, enums.ParticipationTypeApprovalTicketed:
		return enums.JoinRequestStatusPaymentReserved
	default:
		return enums.JoinRequestStatusPending
	}
}
