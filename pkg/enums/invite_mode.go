package enums

import "fmt"

// InviteMode selects which lifecycle graph an invite-only event follows once
// the invite credential has been accepted.
type InviteMode string

const (
	InviteModeOpen     InviteMode = "open"
	InviteModeApproval InviteMode = "approval"
)

var validInviteModes = []InviteMode{
	InviteModeOpen,
	InviteModeApproval,
}

// String implements fmt.Stringer.
func (i InviteMode) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InviteMode.
func (i InviteMode) IsValid() bool {
	for _, candidate := range validInviteModes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInviteMode converts raw input into an InviteMode.
func ParseInviteMode(value string) (InviteMode, error) {
	for _, candidate := range validInviteModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invite mode %q", value)
}
