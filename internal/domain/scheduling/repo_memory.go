package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

// MemoryRepo is an in-memory AppointmentRepository. A single mutex makes the
// overlap check and the write one atomic step, the same guarantee the
// PostgreSQL exclusion constraints give.
type MemoryRepo struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	roomTurnover int
}

// NewMemoryRepo creates an empty MemoryRepo.
func NewMemoryRepo(opts ...RepoOption) *MemoryRepo {
	o := buildRepoOptions(opts)
	return &MemoryRepo{
		appointments: make(map[uuid.UUID]*Appointment),
		roomTurnover: o.roomTurnover,
	}
}

func (m *MemoryRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkFree(a, a.Date, a.Slot, uuid.Nil); err != nil {
		return err
	}
	a.ID = uuid.New()
	a.VersionID = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

// checkFree must be called with m.mu held.
func (m *MemoryRepo) checkFree(a *Appointment, date, slot string, self uuid.UUID) error {
	if !a.Status.HoldsSlot() {
		return nil
	}
	want, err := timeslot.Parse(slot)
	if err != nil {
		return err
	}
	for _, other := range m.appointments {
		if other.ID == self || other.Date != date || !other.Status.HoldsSlot() {
			continue
		}
		held, err := timeslot.Parse(other.Slot)
		if err != nil {
			continue
		}
		if other.DoctorID == a.DoctorID && timeslot.Overlaps(want, held) {
			return &SlotTakenError{Kind: ResourceDoctor, Date: date, Slot: slot}
		}
		if a.RoomID != nil && other.RoomID != nil && *a.RoomID == *other.RoomID &&
			timeslot.Overlaps(m.padRoom(want), m.padRoom(held)) {
			return &SlotTakenError{Kind: ResourceRoom, Date: date, Slot: slot}
		}
	}
	return nil
}

func (m *MemoryRepo) padRoom(ts timeslot.TimeSlot) timeslot.TimeSlot {
	ts.End += m.roomTurnover
	return ts
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepo) Move(_ context.Context, id uuid.UUID, date, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if err := m.checkFree(a, date, slot, id); err != nil {
		return err
	}
	a.Date = date
	a.Slot = slot
	a.VersionID++
	a.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status AppointmentStatus, reason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Status = status
	if reason != nil {
		a.CancellationReason = reason
	}
	a.VersionID++
	a.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRepo) BookedSlots(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date string) ([]string, error) {
	appts, err := m.ListByResource(ctx, kind, resourceID, date)
	if err != nil {
		return nil, err
	}
	var slots []string
	for _, a := range appts {
		if a.Status.HoldsSlot() {
			slots = append(slots, a.Slot)
		}
	}
	return slots, nil
}

func (m *MemoryRepo) ListByResource(_ context.Context, kind ResourceKind, resourceID uuid.UUID, date string) ([]*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []*Appointment
	for _, a := range m.appointments {
		if id, ok := a.ResourceID(kind); !ok || id != resourceID || a.Date != date {
			continue
		}
		cp := *a
		results = append(results, &cp)
	}
	sortBySlot(results)
	return results, nil
}

func (m *MemoryRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return m.filter(func(a *Appointment) bool { return a.PatientID == patientID }, limit, offset)
}

// Search understands the same keys as the PostgreSQL repository: doctor,
// room, patient, date and status.
func (m *MemoryRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	return m.filter(func(a *Appointment) bool {
		if p, ok := params["doctor"]; ok && a.DoctorID.String() != p {
			return false
		}
		if p, ok := params["room"]; ok && (a.RoomID == nil || a.RoomID.String() != p) {
			return false
		}
		if p, ok := params["patient"]; ok && a.PatientID.String() != p {
			return false
		}
		if p, ok := params["date"]; ok && a.Date != p {
			return false
		}
		if p, ok := params["status"]; ok && string(a.Status) != p {
			return false
		}
		return true
	}, limit, offset)
}

func (m *MemoryRepo) filter(keep func(*Appointment) bool, limit, offset int) ([]*Appointment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []*Appointment
	for _, a := range m.appointments {
		if keep(a) {
			cp := *a
			results = append(results, &cp)
		}
	}
	sortBySlot(results)
	total := len(results)
	if offset >= total {
		return []*Appointment{}, total, nil
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, total, nil
}

func sortBySlot(appts []*Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		if appts[i].Slot != appts[j].Slot {
			return appts[i].Slot < appts[j].Slot
		}
		return appts[i].CreatedAt.Before(appts[j].CreatedAt)
	})
}
