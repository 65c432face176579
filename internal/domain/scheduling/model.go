package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

// DateLayout is the wire and storage format of an appointment date.
const DateLayout = "2006-01-02"

// ResourceKind names the resource whose bookings must not overlap.
type ResourceKind string

const (
	ResourceDoctor ResourceKind = "doctor"
	ResourceRoom   ResourceKind = "room"
	// ResourceAny is used when a store rejects a reservation without saying
	// which resource clashed.
	ResourceAny ResourceKind = "resource"
)

// Title is the capitalised kind, for messages.
func (k ResourceKind) Title() string {
	switch k {
	case ResourceDoctor:
		return "Doctor"
	case ResourceRoom:
		return "Room"
	}
	return "Resource"
}

// Appointment maps to the appointment table.
type Appointment struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	PatientName        string            `db:"patient_name" json:"patient_name"`
	DoctorID           uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	RoomID             *uuid.UUID        `db:"room_id" json:"room_id,omitempty"`
	Date               string            `db:"appointment_date" json:"date"`
	Slot               string            `db:"slot" json:"slot"`
	Status             AppointmentStatus `db:"status" json:"status"`
	Reason             *string           `db:"reason" json:"reason,omitempty"`
	Notes              *string           `db:"notes" json:"notes,omitempty"`
	CancellationReason *string           `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	VersionID          int               `db:"version_id" json:"version_id"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// GetVersionID returns the current version.
func (a *Appointment) GetVersionID() int { return a.VersionID }

// SetVersionID sets the current version.
func (a *Appointment) SetVersionID(v int) { a.VersionID = v }

// TimeSlot parses the stored slot.
func (a *Appointment) TimeSlot() (timeslot.TimeSlot, error) {
	return timeslot.Parse(a.Slot)
}

// StartsAt is the wall-clock start of the appointment in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := ParseDate(a.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := a.TimeSlot()
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(ts.Start) * time.Minute), nil
}

// ResourceID returns the doctor or room this appointment occupies for kind.
func (a *Appointment) ResourceID(kind ResourceKind) (uuid.UUID, bool) {
	switch kind {
	case ResourceDoctor:
		return a.DoctorID, true
	case ResourceRoom:
		if a.RoomID != nil {
			return *a.RoomID, true
		}
	}
	return uuid.Nil, false
}

// ParseDate parses a YYYY-MM-DD clinic date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrValidation, s)
	}
	return t, nil
}

// DaySlot is one entry of a resource's slot board for a day.
type DaySlot struct {
	Slot          string     `json:"slot"`
	Available     bool       `json:"available"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}
