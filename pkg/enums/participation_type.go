package enums

import "fmt"

// ParticipationType selects which join-request lifecycle graph and payment
// requirements apply to an event.
type ParticipationType string

const (
	ParticipationTypeOpen             ParticipationType = "open"
	ParticipationTypeApprovalRequired ParticipationType = "approval_required"
	ParticipationTypeTicketed         ParticipationType = "ticketed"
	ParticipationTypeApprovalTicketed ParticipationType = "approval_ticketed"
	ParticipationTypeInviteOnly       ParticipationType = "invite_only"
)

var validParticipationTypes = []ParticipationType{
	ParticipationTypeOpen,
	ParticipationTypeApprovalRequired,
	ParticipationTypeTicketed,
	ParticipationTypeApprovalTicketed,
	ParticipationTypeInviteOnly,
}

// String implements fmt.Stringer.
func (p ParticipationType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ParticipationType.
func (p ParticipationType) IsValid() bool {
	for _, candidate := range validParticipationTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresPayment reports whether joining an event of this type holds funds.
func (p ParticipationType) RequiresPayment() bool {
	return p == ParticipationTypeTicketed || p == ParticipationTypeApprovalTicketed
}

// ParseParticipationType converts raw input into a ParticipationType.
func ParseParticipationType(value string) (ParticipationType, error) {
	for _, candidate := range validParticipationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid participation type %q", value)
}
