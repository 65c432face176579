package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/events"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

// Config holds the scheduling policy knobs.
type Config struct {
	// StepMinutes is the granularity of the day slot board.
	StepMinutes int
	// RoomTurnoverMinutes is the gap kept free between two bookings of a room.
	RoomTurnoverMinutes int
	MinAdvanceHours     int
	MaxSuggestions      int
	// Location is the clinic's time zone; appointment dates are local to it.
	Location *time.Location
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if c.StepMinutes <= 0 {
		c.StepMinutes = timeslot.DefaultStepMinutes
	}
	if c.RoomTurnoverMinutes < 0 {
		c.RoomTurnoverMinutes = 0
	}
	if c.MinAdvanceHours < 0 {
		c.MinAdvanceHours = DefaultMinAdvanceHours
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = DefaultMaxSuggestions
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type Service struct {
	appointments AppointmentRepository
	hours        ClinicHoursRepository
	events       events.Publisher
	cfg          Config
	log          zerolog.Logger
}

func NewService(appts AppointmentRepository, hours ClinicHoursRepository, pub events.Publisher, cfg Config, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.NewLogPublisher(logger)
	}
	return &Service{
		appointments: appts,
		hours:        hours,
		events:       pub,
		cfg:          cfg.withDefaults(),
		log:          logger.With().Str("component", "scheduling").Logger(),
	}
}

// logger prefers the request-scoped logger installed by the HTTP middleware.
func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		scoped := l.With().Str("component", "scheduling").Logger()
		return &scoped
	}
	return &s.log
}

// AvailabilityQuery asks whether a doctor, and optionally a room, are free
// for a slot on a date.
type AvailabilityQuery struct {
	DoctorID uuid.UUID
	RoomID   *uuid.UUID
	Date     string
	Slot     string
	// ExcludeID ignores one appointment, used when moving it.
	ExcludeID uuid.UUID
}

// AvailabilityResult is the answer to an AvailabilityQuery.
type AvailabilityResult struct {
	Available     bool                 `json:"available"`
	Slot          string               `json:"slot"`
	NextAvailable string               `json:"next_available,omitempty"`
	Conflicts     []SchedulingConflict `json:"conflicts"`
	Suggestions   []string             `json:"suggestions"`
}

// snapshot is the set of bookings a decision is computed from.
type snapshot struct {
	doctor  []*Appointment
	room    []*Appointment
	exclude uuid.UUID
	buffer  int
}

func (sn snapshot) conflicts(ts timeslot.TimeSlot) []SchedulingConflict {
	found := detectConflicts(ts, ResourceDoctor, sn.doctor, sn.exclude, 0)
	if len(sn.room) > 0 {
		padded := ts
		padded.End += sn.buffer
		found = append(found, detectConflicts(padded, ResourceRoom, sn.room, sn.exclude, sn.buffer)...)
	}
	return found
}

func (sn snapshot) free(slot string) bool {
	ts, err := timeslot.Parse(slot)
	if err != nil {
		return false
	}
	return len(sn.conflicts(ts)) == 0
}

// booked lists the slots still held on the snapshot's resources.
func (sn snapshot) booked() []string {
	var out []string
	for _, list := range [][]*Appointment{sn.doctor, sn.room} {
		for _, a := range list {
			if a.ID != sn.exclude && a.Status.HoldsSlot() {
				out = append(out, a.Slot)
			}
		}
	}
	return out
}

// suggestions narrows the engine's exact-match suggestions to slots that
// also clear interval overlap on every resource.
func (sn snapshot) suggestions(requested string, hours timeslot.Hours, max int) []string {
	out := []string{}
	if max <= 0 {
		return out
	}
	candidates, err := SuggestWithin(requested, sn.booked(), timeslot.MinutesPerDay/timeslot.DefaultStepMinutes, hours)
	if err != nil {
		return out
	}
	for _, c := range candidates {
		if !sn.free(c) {
			continue
		}
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}

// nextAvailable starts from the exact-match resolver's answer and keeps
// walking the hour's slots until one also clears interval overlap.
func (sn snapshot) nextAvailable(requested string, hours timeslot.Hours) string {
	first, ok, err := FindNextAvailable(requested, sn.booked(), hours.End)
	if err != nil || !ok {
		return ""
	}
	if sn.free(first) {
		return first
	}
	ts, _ := timeslot.Parse(requested)
	for _, c := range timeslot.Generate(ts.StartHour(), hours.End, timeslot.DefaultStepMinutes) {
		if sn.free(c) {
			return c
		}
	}
	return ""
}

func (s *Service) clinicHours(ctx context.Context) (timeslot.Hours, error) {
	h, err := s.hours.Get(ctx)
	if err != nil {
		return timeslot.Hours{}, err
	}
	if err := h.Validate(); err != nil {
		return timeslot.Hours{}, fmt.Errorf("clinic hours: %w", err)
	}
	return h, nil
}

// validateSlot checks that slot is well formed, ordered and inside the
// clinic's hours on a valid date.
func (s *Service) validateSlot(ctx context.Context, date, slot string) (timeslot.TimeSlot, timeslot.Hours, error) {
	if _, err := ParseDate(date, s.cfg.Location); err != nil {
		return timeslot.TimeSlot{}, timeslot.Hours{}, err
	}
	ts, err := timeslot.Parse(slot)
	if err != nil {
		return timeslot.TimeSlot{}, timeslot.Hours{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !ts.Ordered() {
		return timeslot.TimeSlot{}, timeslot.Hours{}, fmt.Errorf("%w: %s", ErrSlotNotOrdered, slot)
	}
	hours, err := s.clinicHours(ctx)
	if err != nil {
		return timeslot.TimeSlot{}, timeslot.Hours{}, err
	}
	if !hours.Contains(ts) {
		return timeslot.TimeSlot{}, timeslot.Hours{}, fmt.Errorf("%w: %s is not within %02d:00-%02d:00",
			ErrOutsideClinicHours, slot, hours.Start, hours.End)
	}
	return ts, hours, nil
}

func (s *Service) loadSnapshot(ctx context.Context, doctorID uuid.UUID, roomID *uuid.UUID, date string, exclude uuid.UUID) (snapshot, error) {
	sn := snapshot{exclude: exclude, buffer: s.cfg.RoomTurnoverMinutes}
	var err error
	sn.doctor, err = s.appointments.ListByResource(ctx, ResourceDoctor, doctorID, date)
	if err != nil {
		return sn, fmt.Errorf("load doctor bookings: %w", err)
	}
	if roomID != nil {
		sn.room, err = s.appointments.ListByResource(ctx, ResourceRoom, *roomID, date)
		if err != nil {
			return sn, fmt.Errorf("load room bookings: %w", err)
		}
	}
	return sn, nil
}

func (s *Service) CheckAvailability(ctx context.Context, q AvailabilityQuery) (*AvailabilityResult, error) {
	if q.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	ts, hours, err := s.validateSlot(ctx, q.Date, q.Slot)
	if err != nil {
		return nil, err
	}
	sn, err := s.loadSnapshot(ctx, q.DoctorID, q.RoomID, q.Date, q.ExcludeID)
	if err != nil {
		return nil, err
	}

	res := &AvailabilityResult{
		Slot:        q.Slot,
		Conflicts:   sn.conflicts(ts),
		Suggestions: []string{},
	}
	if res.Conflicts == nil {
		res.Conflicts = []SchedulingConflict{}
	}
	res.Available = len(res.Conflicts) == 0
	if res.Available {
		res.NextAvailable = q.Slot
		return res, nil
	}
	res.NextAvailable = sn.nextAvailable(q.Slot, hours)
	res.Suggestions = sn.suggestions(q.Slot, hours, s.cfg.MaxSuggestions)
	return res, nil
}

func (s *Service) conflictFrom(res *AvailabilityResult) *ConflictError {
	msg := "Slot is not available"
	if len(res.Conflicts) > 0 {
		msg = res.Conflicts[0].Message
	}
	return &ConflictError{
		Message:     msg,
		Slot:        res.Slot,
		Conflicts:   res.Conflicts,
		Suggestions: res.Suggestions,
	}
}

// raceConflict builds the conflict returned when the store refused a write
// that the pre-check allowed. Suggestions come from a fresh snapshot.
func (s *Service) raceConflict(ctx context.Context, taken *SlotTakenError, q AvailabilityQuery) *ConflictError {
	cerr := &ConflictError{
		Message:     fmt.Sprintf("%s is already booked at %s", taken.Kind.Title(), q.Slot),
		Slot:        q.Slot,
		Conflicts:   []SchedulingConflict{},
		Suggestions: []string{},
	}
	res, err := s.CheckAvailability(ctx, q)
	if err != nil {
		s.logger(ctx).Warn().Err(err).Msg("recompute suggestions after lost race")
		return cerr
	}
	cerr.Conflicts = res.Conflicts
	cerr.Suggestions = res.Suggestions
	return cerr
}

func (s *Service) BookAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if strings.TrimSpace(a.PatientName) == "" {
		return fmt.Errorf("%w: patient_name is required", ErrValidation)
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Status != StatusScheduled && a.Status != StatusConfirmed {
		return fmt.Errorf("%w: new appointments must be SCHEDULED or CONFIRMED, got %s", ErrValidation, a.Status)
	}

	q := AvailabilityQuery{DoctorID: a.DoctorID, RoomID: a.RoomID, Date: a.Date, Slot: a.Slot}
	res, err := s.CheckAvailability(ctx, q)
	if err != nil {
		return err
	}
	if !res.Available {
		s.logger(ctx).Info().Str("doctor_id", a.DoctorID.String()).Str("date", a.Date).Str("slot", a.Slot).
			Int("conflicts", len(res.Conflicts)).Msg("booking rejected")
		return s.conflictFrom(res)
	}

	if err := s.appointments.Create(ctx, a); err != nil {
		var taken *SlotTakenError
		if errors.As(err, &taken) {
			s.logger(ctx).Warn().Str("doctor_id", a.DoctorID.String()).Str("date", a.Date).Str("slot", a.Slot).
				Str("kind", string(taken.Kind)).Msg("booking lost race")
			return s.raceConflict(ctx, taken, q)
		}
		return err
	}

	s.publish(ctx, events.AppointmentBooked, a, "", "")
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// ListAppointments filters by doctor, room, patient, date and status.
func (s *Service) ListAppointments(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	if d, ok := params["date"]; ok {
		if _, err := ParseDate(d, s.cfg.Location); err != nil {
			return nil, 0, err
		}
	}
	if st, ok := params["status"]; ok {
		parsed, err := ParseStatus(st)
		if err != nil {
			return nil, 0, err
		}
		params["status"] = string(parsed)
	}
	for _, key := range []string{"doctor", "room", "patient"} {
		if v, ok := params[key]; ok {
			if _, err := uuid.Parse(v); err != nil {
				return nil, 0, fmt.Errorf("%w: invalid %s id", ErrValidation, key)
			}
		}
	}
	if p, ok := params["patient"]; ok && len(params) == 1 {
		return s.appointments.ListByPatient(ctx, uuid.MustParse(p), limit, offset)
	}
	return s.appointments.Search(ctx, params, limit, offset)
}

// RescheduleCheck evaluates the reschedule guard for an existing appointment.
func (s *Service) RescheduleCheck(ctx context.Context, id uuid.UUID) (RescheduleDecision, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return RescheduleDecision{}, err
	}
	return s.guard(a)
}

func (s *Service) guard(a *Appointment) (RescheduleDecision, error) {
	at, err := a.StartsAt(s.cfg.Location)
	if err != nil {
		return RescheduleDecision{}, err
	}
	return CanRescheduleAt(s.cfg.Now(), at, a.Status, s.cfg.MinAdvanceHours), nil
}

// RescheduleAppointment moves an appointment to a new date and slot. The
// guard runs before availability so a denied move never reports conflicts.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, date, slot string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	decision, err := s.guard(a)
	if err != nil {
		return nil, err
	}
	if !decision.CanReschedule {
		return nil, &RescheduleDeniedError{Decision: decision}
	}
	if date == "" {
		date = a.Date
	}

	q := AvailabilityQuery{DoctorID: a.DoctorID, RoomID: a.RoomID, Date: date, Slot: slot, ExcludeID: a.ID}
	res, err := s.CheckAvailability(ctx, q)
	if err != nil {
		return nil, err
	}
	if !res.Available {
		return nil, s.conflictFrom(res)
	}

	prevDate, prevSlot := a.Date, a.Slot
	if err := s.appointments.Move(ctx, id, date, slot); err != nil {
		var taken *SlotTakenError
		if errors.As(err, &taken) {
			s.logger(ctx).Warn().Str("appointment_id", id.String()).Str("date", date).Str("slot", slot).
				Msg("reschedule lost race")
			return nil, s.raceConflict(ctx, taken, q)
		}
		return nil, err
	}

	moved, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AppointmentRescheduled, moved, prevDate, prevSlot)
	return moved, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus, reason *string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, status)
	}
	if err := s.appointments.UpdateStatus(ctx, id, status, reason); err != nil {
		return nil, err
	}
	updated, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	typ := events.AppointmentStatusChanged
	if status == StatusCancelled {
		typ = events.AppointmentCancelled
	}
	s.publish(ctx, typ, updated, "", "")
	return updated, nil
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*Appointment, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, reason)
}

// DaySlots lays out the clinic day for one resource, marking each slot free
// or taken by the highest-priority booking that overlaps it.
func (s *Service) DaySlots(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date string) ([]DaySlot, error) {
	if _, err := ParseDate(date, s.cfg.Location); err != nil {
		return nil, err
	}
	hours, err := s.clinicHours(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.appointments.ListByResource(ctx, kind, resourceID, date)
	if err != nil {
		return nil, err
	}

	sn := s.resourceSnapshot(kind, existing)
	board := make([]DaySlot, 0)
	for _, ts := range timeslot.GenerateSlots(hours.Start, hours.End, s.cfg.StepMinutes) {
		entry := DaySlot{Slot: ts.String(), Available: true}
		if found := sn.conflicts(ts); len(found) > 0 {
			entry.Available = false
			id := found[0].ConflictingAppointment.ID
			entry.AppointmentID = &id
		}
		board = append(board, entry)
	}
	return board, nil
}

// SuggestSlots returns up to max free slots near slot for one resource.
func (s *Service) SuggestSlots(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date, slot string, max int) ([]string, error) {
	if _, err := ParseDate(date, s.cfg.Location); err != nil {
		return nil, err
	}
	if _, err := timeslot.Parse(slot); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if max <= 0 {
		max = s.cfg.MaxSuggestions
	}
	hours, err := s.clinicHours(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.appointments.ListByResource(ctx, kind, resourceID, date)
	if err != nil {
		return nil, err
	}

	return s.resourceSnapshot(kind, existing).suggestions(slot, hours, max), nil
}

// resourceSnapshot wraps one resource's bookings. Rooms carry the turnover
// buffer.
func (s *Service) resourceSnapshot(kind ResourceKind, existing []*Appointment) snapshot {
	if kind == ResourceRoom {
		return snapshot{room: existing, buffer: s.cfg.RoomTurnoverMinutes}
	}
	return snapshot{doctor: existing}
}

func (s *Service) publish(ctx context.Context, typ string, a *Appointment, prevDate, prevSlot string) {
	err := s.events.Publish(ctx, events.Event{
		Type:          typ,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		RoomID:        a.RoomID,
		Date:          a.Date,
		Slot:          a.Slot,
		Status:        string(a.Status),
		PreviousDate:  prevDate,
		PreviousSlot:  prevSlot,
	})
	if err != nil {
		s.logger(ctx).Error().Err(err).Str("event", typ).Str("appointment_id", a.ID.String()).Msg("publish event")
	}
}
