package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot is already booked")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrOutsideClinicHours  = errors.New("slot is outside clinic hours")
	ErrSlotNotOrdered      = errors.New("slot must end after it starts")
)

// SlotTakenError is returned by a store when a reservation clashes with an
// existing booking.
type SlotTakenError struct {
	Kind ResourceKind
	Date string
	Slot string
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("%s %s on %s: %v", e.Kind, e.Slot, e.Date, ErrSlotTaken)
}

func (e *SlotTakenError) Unwrap() error { return ErrSlotTaken }

// ConflictError is returned when a booking or move cannot take the requested
// slot. Suggestions are alternatives computed from a fresh snapshot.
type ConflictError struct {
	Message     string
	Slot        string
	Conflicts   []SchedulingConflict
	Suggestions []string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrSlotTaken }

// RescheduleDeniedError carries the guard decision that refused a move.
type RescheduleDeniedError struct {
	Decision RescheduleDecision
}

func (e *RescheduleDeniedError) Error() string { return e.Decision.Reason }
