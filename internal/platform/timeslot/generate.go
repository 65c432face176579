package timeslot

import "fmt"

// Clinic operating-hours defaults.
const (
	DefaultStartHour   = 9
	DefaultEndHour     = 18
	DefaultStepMinutes = 30
)

// Hours is a clinic opening window in whole hours, [Start, End).
type Hours struct {
	Start int `json:"start_hour"`
	End   int `json:"end_hour"`
}

// DefaultHours is the 09:00-18:00 clinic day.
var DefaultHours = Hours{Start: DefaultStartHour, End: DefaultEndHour}

// Validate checks that the window is non-empty and closes by 23:00, so every
// generated slot still parses as HH:MM-HH:MM.
func (h Hours) Validate() error {
	if h.Start < 0 || h.Start > 23 {
		return fmt.Errorf("start hour %d out of range 0-23", h.Start)
	}
	if h.End < 1 || h.End > 23 {
		return fmt.Errorf("end hour %d out of range 1-23", h.End)
	}
	if h.Start >= h.End {
		return fmt.Errorf("start hour %d must be before end hour %d", h.Start, h.End)
	}
	return nil
}

// Contains reports whether the slot lies fully inside the window.
func (h Hours) Contains(t TimeSlot) bool {
	return t.Start >= h.Start*60 && t.End <= h.End*60
}

// Generate returns contiguous slots of stepMinutes from startHour up to
// endHour. A slot is emitted for every start before endHour, so when the
// step does not divide the window evenly the last slot runs past endHour.
// The result is rebuilt on every call.
func Generate(startHour, endHour, stepMinutes int) []string {
	slots := GenerateSlots(startHour, endHour, stepMinutes)
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

// GenerateSlots is Generate without the string conversion.
func GenerateSlots(startHour, endHour, stepMinutes int) []TimeSlot {
	if stepMinutes <= 0 || startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil
	}
	var slots []TimeSlot
	for cur := startHour * 60; cur < endHour*60; cur += stepMinutes {
		slots = append(slots, TimeSlot{Start: cur, End: cur + stepMinutes})
	}
	return slots
}
