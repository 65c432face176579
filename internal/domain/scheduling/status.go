package scheduling

import (
	"fmt"
	"strings"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "SCHEDULED"
	StatusConfirmed  AppointmentStatus = "CONFIRMED"
	StatusCheckedIn  AppointmentStatus = "CHECKED_IN"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
	StatusNoShow     AppointmentStatus = "NO_SHOW"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []AppointmentStatus{
	StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown appointment status %q", ErrValidation, s)
}

// Priority ranks how strong a claim an appointment in this status has on its
// slot. Higher wins when several claims are reported together.
func (s AppointmentStatus) Priority() int {
	switch s {
	case StatusConfirmed:
		return 3
	case StatusScheduled:
		return 2
	case StatusCheckedIn, StatusInProgress:
		return 1
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return 0
	}
	panic(fmt.Sprintf("scheduling: priority of unknown status %q", string(s)))
}

// IsTerminal reports whether no further transition is possible.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// HoldsSlot reports whether an appointment in this status still occupies its
// doctor and room. Cancelled and no-show appointments release the slot.
func (s AppointmentStatus) HoldsSlot() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// next is the forward step of the normal lifecycle.
var next = map[AppointmentStatus]AppointmentStatus{
	StatusScheduled:  StatusConfirmed,
	StatusConfirmed:  StatusCheckedIn,
	StatusCheckedIn:  StatusInProgress,
	StatusInProgress: StatusCompleted,
}

// CanTransitionTo reports whether moving from s to to is allowed.
// CANCELLED and NO_SHOW are reachable from any non-terminal status.
func (s AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StatusCancelled || to == StatusNoShow {
		return true
	}
	return next[s] == to
}
