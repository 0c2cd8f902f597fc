package enums

import "fmt"

// JoinRequestStatus tracks one user's participation lifecycle for one event.
type JoinRequestStatus string

const (
	JoinRequestStatusPending         JoinRequestStatus = "pending"
	JoinRequestStatusPaymentReserved JoinRequestStatus = "payment_reserved"
	JoinRequestStatusApproved        JoinRequestStatus = "approved"
	JoinRequestStatusPaid            JoinRequestStatus = "paid"
	JoinRequestStatusConfirmed       JoinRequestStatus = "confirmed"
	JoinRequestStatusCheckedIn       JoinRequestStatus = "checked_in"
	JoinRequestStatusAttended        JoinRequestStatus = "attended"
	JoinRequestStatusCompleted       JoinRequestStatus = "completed"
	JoinRequestStatusRejected        JoinRequestStatus = "rejected"
	JoinRequestStatusCanceled        JoinRequestStatus = "canceled"
)

var validJoinRequestStatuses = []JoinRequestStatus{
	JoinRequestStatusPending,
	JoinRequestStatusPaymentReserved,
	JoinRequestStatusApproved,
	JoinRequestStatusPaid,
	JoinRequestStatusConfirmed,
	JoinRequestStatusCheckedIn,
	JoinRequestStatusAttended,
	JoinRequestStatusCompleted,
	JoinRequestStatusRejected,
	JoinRequestStatusCanceled,
}

// FinalJoinRequestStatuses are the statuses from which no further transition
// is expected. They gate event settlement and review eligibility.
var FinalJoinRequestStatuses = []JoinRequestStatus{
	JoinRequestStatusRejected,
	JoinRequestStatusCanceled,
	JoinRequestStatusAttended,
	JoinRequestStatusCompleted,
}

// String implements fmt.Stringer.
func (j JoinRequestStatus) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JoinRequestStatus.
func (j JoinRequestStatus) IsValid() bool {
	for _, candidate := range validJoinRequestStatuses {
		if candidate == j {
			return true
		}
	}
	return false
}

// IsFinal reports whether the status is terminal.
func (j JoinRequestStatus) IsFinal() bool {
	for _, candidate := range FinalJoinRequestStatuses {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJoinRequestStatus converts raw input into a JoinRequestStatus.
func ParseJoinRequestStatus(value string) (JoinRequestStatus, error) {
	for _, candidate := range validJoinRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid join request status %q", value)
}
