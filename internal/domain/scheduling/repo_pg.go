package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

// queryable is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"

	doctorOverlapConstraint = "appointment_doctor_no_overlap"
	roomOverlapConstraint   = "appointment_room_no_overlap"
)

// released lists the statuses that do not hold a slot.
const released = `('CANCELLED', 'NO_SHOW')`

// =========== Appointment Repository ===========

type appointmentRepoPG struct {
	db           queryable
	roomTurnover int
}

// NewAppointmentRepoPG returns a PostgreSQL AppointmentRepository. Overlap
// exclusion is enforced by the appointment table's constraints. Room
// turnover is stored per row in room_end_minute.
func NewAppointmentRepoPG(db queryable, opts ...RepoOption) AppointmentRepository {
	o := buildRepoOptions(opts)
	return &appointmentRepoPG{db: db, roomTurnover: o.roomTurnover}
}

const apptCols = `id, patient_id, patient_name, doctor_id, room_id, appointment_date::text, slot,
	status, reason, notes, cancellation_reason, version_id, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.DoctorID, &a.RoomID, &a.Date, &a.Slot,
		&status, &a.Reason, &a.Notes, &a.CancellationReason, &a.VersionID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = AppointmentStatus(status)
	return &a, nil
}

// slotTaken translates constraint violations into *SlotTakenError.
func slotTaken(err error, date, slot string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code != pgExclusionViolation && pgErr.Code != pgUniqueViolation {
		return err
	}
	kind := ResourceAny
	switch pgErr.ConstraintName {
	case doctorOverlapConstraint:
		kind = ResourceDoctor
	case roomOverlapConstraint:
		kind = ResourceRoom
	}
	return &SlotTakenError{Kind: kind, Date: date, Slot: slot}
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	ts, err := timeslot.Parse(a.Slot)
	if err != nil {
		return err
	}
	a.ID = uuid.New()
	a.VersionID = 1
	err = r.db.QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, patient_name, doctor_id, room_id, appointment_date,
			slot, start_minute, end_minute, room_end_minute, status, reason, notes)
		VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.PatientName, a.DoctorID, a.RoomID, a.Date,
		a.Slot, ts.Start, ts.End, ts.End+r.roomTurnover, string(a.Status), a.Reason, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return slotTaken(err, a.Date, a.Slot)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.db.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Move(ctx context.Context, id uuid.UUID, date, slot string) error {
	ts, err := timeslot.Parse(slot)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE appointment SET appointment_date = $2::date, slot = $3, start_minute = $4, end_minute = $5,
			room_end_minute = $6, version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1`,
		id, date, slot, ts.Start, ts.End, ts.End+r.roomTurnover)
	if err != nil {
		return slotTaken(err, date, slot)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus, reason *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointment SET status = $2, cancellation_reason = COALESCE($3, cancellation_reason),
			version_id = version_id + 1, updated_at = NOW()
		WHERE id = $1`,
		id, string(status), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func resourceColumn(kind ResourceKind) (string, error) {
	switch kind {
	case ResourceDoctor:
		return "doctor_id", nil
	case ResourceRoom:
		return "room_id", nil
	}
	return "", fmt.Errorf("%w: unknown resource kind %q", ErrValidation, kind)
}

func (r *appointmentRepoPG) BookedSlots(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date string) ([]string, error) {
	col, err := resourceColumn(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT slot FROM appointment
		WHERE `+col+` = $1 AND appointment_date = $2::date AND status NOT IN `+released+`
		ORDER BY start_minute`, resourceID, date)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *appointmentRepoPG) ListByResource(ctx context.Context, kind ResourceKind, resourceID uuid.UUID, date string) ([]*Appointment, error) {
	col, err := resourceColumn(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE `+col+` = $1 AND appointment_date = $2::date ORDER BY start_minute, created_at`, resourceID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return r.Search(ctx, map[string]string{"patient": patientID.String()}, limit, offset)
}

func (r *appointmentRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	for _, f := range []struct{ param, clause string }{
		{"doctor", "doctor_id = $%d"},
		{"room", "room_id = $%d"},
		{"patient", "patient_id = $%d"},
		{"date", "appointment_date = $%d::date"},
		{"status", "status = $%d"},
	} {
		if p, ok := params[f.param]; ok {
			where += ` AND ` + fmt.Sprintf(f.clause, idx)
			args = append(args, p)
			idx++
		}
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(` ORDER BY appointment_date, start_minute LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// =========== Clinic Hours Repository ===========

type clinicHoursRepoPG struct {
	db       queryable
	fallback timeslot.Hours
}

// NewClinicHoursRepoPG reads the clinic_hours row, returning fallback when
// the row is missing.
func NewClinicHoursRepoPG(db queryable, fallback timeslot.Hours) ClinicHoursRepository {
	return &clinicHoursRepoPG{db: db, fallback: fallback}
}

func (r *clinicHoursRepoPG) Get(ctx context.Context) (timeslot.Hours, error) {
	var h timeslot.Hours
	err := r.db.QueryRow(ctx, `SELECT start_hour, end_hour FROM clinic_hours WHERE id = 1`).Scan(&h.Start, &h.End)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.fallback, nil
	}
	if err != nil {
		return timeslot.Hours{}, fmt.Errorf("read clinic hours: %w", err)
	}
	return h, nil
}
