// Package timeslot represents clinic time slots as minute-of-day intervals.
//
// A slot is canonically written "HH:MM-HH:MM" and held as a pair of
// minute-of-day integers. All arithmetic is plain integer arithmetic on a
// single clinic-local day; no calendar or time zone is involved.
package timeslot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	// MinutesPerDay is the exclusive upper bound for a slot start.
	MinutesPerDay = 24 * 60

	// DefaultBufferMinutes is the padding AddBuffer callers use when none is configured.
	DefaultBufferMinutes = 5
)

// ErrInvalidSlot is returned for any string that does not match HH:MM-HH:MM.
var ErrInvalidSlot = errors.New("invalid time slot")

var slotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])-([01][0-9]|2[0-3]):([0-5][0-9])$`)

// TimeSlot is a half-open [Start, End) interval in minutes since midnight.
//
// Parse does not require Start < End, so Duration may be zero or negative
// for reversed input. Slots produced by Generate are always ordered.
type TimeSlot struct {
	Start int
	End   int
}

// New builds a slot from minute-of-day bounds without validation.
func New(start, end int) TimeSlot {
	return TimeSlot{Start: start, End: end}
}

// Parse converts a "HH:MM-HH:MM" string into a TimeSlot.
func Parse(s string) (TimeSlot, error) {
	m := slotPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeSlot{}, fmt.Errorf("%w: %q", ErrInvalidSlot, s)
	}
	return TimeSlot{
		Start: atoi(m[1])*60 + atoi(m[2]),
		End:   atoi(m[3])*60 + atoi(m[4]),
	}, nil
}

// MustParse is Parse for literals known to be valid. It panics otherwise.
func MustParse(s string) TimeSlot {
	ts, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ts
}

// Valid reports whether s matches the slot pattern.
func Valid(s string) bool {
	return slotPattern.MatchString(s)
}

// atoi is only called on regexp-matched digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Format renders a minute-of-day value as zero-padded "HH:MM".
func Format(minuteOfDay int) string {
	return fmt.Sprintf("%02d:%02d", minuteOfDay/60, minuteOfDay%60)
}

// String returns the canonical "HH:MM-HH:MM" form.
func (t TimeSlot) String() string {
	return Format(t.Start) + "-" + Format(t.End)
}

// Duration is End - Start in minutes.
func (t TimeSlot) Duration() int {
	return t.End - t.Start
}

// StartHour is the hour the slot starts in.
func (t TimeSlot) StartHour() int {
	return t.Start / 60
}

// Ordered reports whether the slot has a positive duration.
func (t TimeSlot) Ordered() bool {
	return t.Start < t.End
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeSlot) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeSlot) UnmarshalText(b []byte) error {
	ts, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = ts
	return nil
}

// Overlaps reports whether two slots share any minute. Slots that only touch
// at a boundary (one ends where the other starts) do not overlap.
func Overlaps(a, b TimeSlot) bool {
	return a.Start < b.End && b.Start < a.End
}

// AddBuffer extends the end of slot by bufferMinutes. The new end is not
// checked against the end of the day.
func AddBuffer(slot string, bufferMinutes int) (string, error) {
	ts, err := Parse(slot)
	if err != nil {
		return "", err
	}
	ts.End += bufferMinutes
	return ts.String(), nil
}
