// Package events publishes appointment lifecycle events.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types double as AMQP routing keys.
const (
	AppointmentBooked        = "appointment.booked"
	AppointmentRescheduled   = "appointment.rescheduled"
	AppointmentStatusChanged = "appointment.status_changed"
	AppointmentCancelled     = "appointment.cancelled"
)

// Event describes a committed change to an appointment.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	RoomID        *uuid.UUID `json:"room_id,omitempty"`
	Date          string     `json:"date"`
	Slot          string     `json:"slot"`
	Status        string     `json:"status"`
	PreviousDate  string     `json:"previous_date,omitempty"`
	PreviousSlot  string     `json:"previous_slot,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Stamp fills the envelope fields a caller left empty.
func Stamp(e Event) Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return e
}

// LogPublisher writes events to a zerolog logger. It is used when no broker
// is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	e = Stamp(e)
	p.logger.Info().
		Str("event", e.Type).
		Str("event_id", e.ID.String()).
		Str("appointment_id", e.AppointmentID.String()).
		Str("doctor_id", e.DoctorID.String()).
		Str("date", e.Date).
		Str("slot", e.Slot).
		Str("status", e.Status).
		Msg("domain event")
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Stamp(e))
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Multi fans one event out to several publishers. The event is stamped once
// so every sink sees the same ID. All publishers are tried; their errors are
// joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	e = Stamp(e)
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
