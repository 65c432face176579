package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

// AppointmentRepository is the system of record for appointments. Create and
// Move must reserve atomically: of two concurrent writes that would overlap on
// the same doctor or room and date, exactly one succeeds and the other returns
// a *SlotTakenError.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Move(ctx context.Context, id uuid.UUID, date, slot string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus, reason *string) error
	// BookedSlots lists the slots held on a resource and date.
	BookedSlots(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date string) ([]string, error)
	// ListByResource returns every appointment on a resource and date,
	// including released ones.
	ListByResource(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date string) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
}

// RepoOption configures an AppointmentRepository.
type RepoOption func(*repoOptions)

type repoOptions struct {
	roomTurnover int
}

// WithRoomTurnover keeps minutes free after every room booking, so two room
// bookings conflict when either one, extended by the turnover, overlaps the
// other.
func WithRoomTurnover(minutes int) RepoOption {
	return func(o *repoOptions) {
		if minutes > 0 {
			o.roomTurnover = minutes
		}
	}
}

func buildRepoOptions(opts []RepoOption) repoOptions {
	var o repoOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ClinicHoursRepository supplies the clinic's operating hours. It is read on
// every call.
type ClinicHoursRepository interface {
	Get(ctx context.Context) (timeslot.Hours, error)
}

// StaticHours is a ClinicHoursRepository that always returns the same window.
type StaticHours timeslot.Hours

func (h StaticHours) Get(context.Context) (timeslot.Hours, error) {
	return timeslot.Hours(h), nil
}
