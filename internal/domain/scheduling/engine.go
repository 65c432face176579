package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

const (
	// DefaultMaxSuggestions bounds the alternatives offered on a conflict.
	DefaultMaxSuggestions = 3

	// DefaultMinAdvanceHours is the notice required before rescheduling.
	DefaultMinAdvanceHours = 24
)

// FindNextAvailable returns requested when it is not an exact member of
// booked. Otherwise it walks the default-step slots from the start of the
// requested hour to clinicEndHour and returns the first one not in booked.
// ok is false when every candidate is taken.
//
// Only exact string matches count as taken here; partial overlaps are
// detected separately with DetectConflicts.
func FindNextAvailable(requested string, booked []string, clinicEndHour int) (slot string, ok bool, err error) {
	ts, err := timeslot.Parse(requested)
	if err != nil {
		return "", false, err
	}
	taken := slotSet(booked)
	if !taken[requested] {
		return requested, true, nil
	}
	for _, candidate := range timeslot.Generate(ts.StartHour(), clinicEndHour, timeslot.DefaultStepMinutes) {
		if !taken[candidate] {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

// Suggest returns up to maxSuggestions free slots near requested within the
// default clinic day.
func Suggest(requested string, booked []string, maxSuggestions int) ([]string, error) {
	return SuggestWithin(requested, booked, maxSuggestions, timeslot.DefaultHours)
}

// SuggestWithin looks for alternatives in the window from two hours before to
// three hours after the requested hour, clipped to hours. Results are in
// chronological order and never include requested or a booked slot.
func SuggestWithin(requested string, booked []string, maxSuggestions int, hours timeslot.Hours) ([]string, error) {
	ts, err := timeslot.Parse(requested)
	if err != nil {
		return nil, err
	}
	if maxSuggestions <= 0 {
		return []string{}, nil
	}

	h := ts.StartHour()
	from := max(hours.Start, h-2)
	to := min(hours.End, h+3)

	taken := slotSet(booked)
	out := make([]string, 0, maxSuggestions)
	for _, candidate := range timeslot.Generate(from, to, timeslot.DefaultStepMinutes) {
		if candidate == requested || taken[candidate] {
			continue
		}
		out = append(out, candidate)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out, nil
}

func slotSet(slots []string) map[string]bool {
	set := make(map[string]bool, len(slots))
	for _, s := range slots {
		set[s] = true
	}
	return set
}

// RescheduleDecision is the outcome of CanReschedule.
type RescheduleDecision struct {
	CanReschedule bool   `json:"can_reschedule"`
	Reason        string `json:"reason,omitempty"`
}

// CanReschedule decides whether an appointment starting at appointmentAt may
// be moved now.
func CanReschedule(appointmentAt time.Time, status AppointmentStatus, minAdvanceHours int) RescheduleDecision {
	return CanRescheduleAt(time.Now(), appointmentAt, status, minAdvanceHours)
}

// CanRescheduleAt is CanReschedule evaluated at now. Terminal-status checks
// run before the advance-notice check.
func CanRescheduleAt(now, appointmentAt time.Time, status AppointmentStatus, minAdvanceHours int) RescheduleDecision {
	switch status {
	case StatusCompleted:
		return RescheduleDecision{Reason: "Cannot reschedule completed appointment"}
	case StatusCancelled:
		return RescheduleDecision{Reason: "Cannot reschedule cancelled appointment"}
	}
	if appointmentAt.Sub(now).Hours() < float64(minAdvanceHours) {
		return RescheduleDecision{
			Reason: fmt.Sprintf("Cannot reschedule within %d hours of appointment", minAdvanceHours),
		}
	}
	return RescheduleDecision{CanReschedule: true}
}

// ConflictingAppointment identifies the booking that already holds a slot.
type ConflictingAppointment struct {
	ID          uuid.UUID `json:"id"`
	PatientName string    `json:"patient_name"`
	Slot        string    `json:"slot"`
}

// SchedulingConflict explains why a slot is unavailable. It carries no
// authority; the store decides who holds a slot.
type SchedulingConflict struct {
	Kind                   ResourceKind            `json:"kind"`
	Message                string                  `json:"message"`
	ConflictingAppointment *ConflictingAppointment `json:"conflicting_appointment,omitempty"`
}

// RankByPriority returns a copy of appts ordered by status priority, highest
// first, then by slot start and ID so the order is stable.
func RankByPriority(appts []*Appointment) []*Appointment {
	ranked := make([]*Appointment, len(appts))
	copy(ranked, appts)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := ranked[i].Status.Priority(), ranked[j].Status.Priority()
		if pi != pj {
			return pi > pj
		}
		if ranked[i].Slot != ranked[j].Slot {
			return ranked[i].Slot < ranked[j].Slot
		}
		return ranked[i].ID.String() < ranked[j].ID.String()
	})
	return ranked
}

// DetectConflicts reports every appointment in existing that still holds a
// slot overlapping requested. The appointment with ID exclude is ignored so a
// reschedule does not conflict with itself. Conflicts are ranked with
// RankByPriority. Stored slots that fail to parse are skipped.
func DetectConflicts(requested timeslot.TimeSlot, kind ResourceKind, existing []*Appointment, exclude uuid.UUID) []SchedulingConflict {
	return detectConflicts(requested, kind, existing, exclude, 0)
}

// detectConflicts pads each existing booking with bufferMinutes before the
// overlap test.
func detectConflicts(requested timeslot.TimeSlot, kind ResourceKind, existing []*Appointment, exclude uuid.UUID, bufferMinutes int) []SchedulingConflict {
	var conflicts []SchedulingConflict
	for _, a := range RankByPriority(existing) {
		if a.ID == exclude || !a.Status.HoldsSlot() {
			continue
		}
		ts, err := timeslot.Parse(a.Slot)
		if err != nil {
			continue
		}
		ts.End += bufferMinutes
		if !timeslot.Overlaps(requested, ts) {
			continue
		}
		conflicts = append(conflicts, SchedulingConflict{
			Kind:    kind,
			Message: fmt.Sprintf("%s is already booked at %s", kind.Title(), a.Slot),
			ConflictingAppointment: &ConflictingAppointment{
				ID:          a.ID,
				PatientName: a.PatientName,
				Slot:        a.Slot,
			},
		})
	}
	return conflicts
}
