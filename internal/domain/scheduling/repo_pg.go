package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/majdamija123/medconnect-backend/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Window Repository ===========

type windowRepoPG struct{ pool *pgxpool.Pool }

func NewWindowRepoPG(pool *pgxpool.Pool) WindowRepository { return &windowRepoPG{pool: pool} }

func (r *windowRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const windowCols = `id, doctor_id, day_of_week, start_minute, end_minute, created_at`

func (r *windowRepoPG) scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow
	err := row.Scan(&w.ID, &w.DoctorID, &w.DayOfWeek, &w.StartTime, &w.EndTime, &w.CreatedAt)
	return &w, err
}

func (r *windowRepoPG) Create(ctx context.Context, w *AvailabilityWindow) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO availability_window (id, doctor_id, day_of_week, start_minute, end_minute)
		VALUES ($1,$2,$3,$4,$5)`,
		w.ID, w.DoctorID, w.DayOfWeek, w.StartTime, w.EndTime)
	return err
}

func (r *windowRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	return r.scanWindow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+windowCols+` FROM availability_window WHERE id = $1`, id))
}

func (r *windowRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_window WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *windowRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM availability_window
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_minute`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()
	return collectWindows(rows, r.scanWindow)
}

func (r *windowRepoPG) ListByDoctorAndDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM availability_window
		WHERE doctor_id = $1 AND day_of_week = $2
		ORDER BY start_minute`, doctorID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("list windows for day: %w", err)
	}
	defer rows.Close()
	return collectWindows(rows, r.scanWindow)
}

func collectWindows(rows pgx.Rows, scan func(pgx.Row) (*AvailabilityWindow, error)) ([]*AvailabilityWindow, error) {
	var list []*AvailabilityWindow
	for rows.Next() {
		w, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// =========== Holiday Repository ===========

type holidayRepoPG struct{ pool *pgxpool.Pool }

func NewHolidayRepoPG(pool *pgxpool.Pool) HolidayRepository { return &holidayRepoPG{pool: pool} }

func (r *holidayRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const holidayCols = `id, doctor_id, date, reason, created_at`

func (r *holidayRepoPG) scanHoliday(row pgx.Row) (*HolidayException, error) {
	var h HolidayException
	err := row.Scan(&h.ID, &h.DoctorID, &h.Date, &h.Reason, &h.CreatedAt)
	return &h, err
}

func (r *holidayRepoPG) Create(ctx context.Context, h *HolidayException) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO holiday_exception (id, doctor_id, date, reason)
		VALUES ($1,$2,$3,$4)`,
		h.ID, h.DoctorID, h.Date, h.Reason)
	return err
}

func (r *holidayRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*HolidayException, error) {
	return r.scanHoliday(r.conn(ctx).QueryRow(ctx,
		`SELECT `+holidayCols+` FROM holiday_exception WHERE id = $1`, id))
}

func (r *holidayRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM holiday_exception WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *holidayRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*HolidayException, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+holidayCols+` FROM holiday_exception
		WHERE doctor_id = $1
		ORDER BY date`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var list []*HolidayException
	for rows.Next() {
		h, err := r.scanHoliday(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}

func (r *holidayRepoPG) ExistsOn(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM holiday_exception WHERE doctor_id = $1 AND date = $2
		)`, doctorID, date).Scan(&exists)
	return exists, err
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, doctor_id, patient_id, start_time, end_time, status,
	reason, doctor_notes, patient_notes, created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.StartTime, &a.EndTime, &a.Status,
		&a.Reason, &a.DoctorNotes, &a.PatientNotes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, start_time, end_time, status, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.StartTime, a.EndTime, a.Status, a.Reason).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment
		SET start_time=$2, end_time=$3, status=$4, doctor_notes=$5, patient_notes=$6, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.StartTime, a.EndTime, a.Status, a.DoctorNotes, a.PatientNotes)
	return err
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "doctor_id", doctorID, status, limit, offset)
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(ctx, "patient_id", patientID, status, limit, offset)
}

func (r *appointmentRepoPG) list(ctx context.Context, ownerCol string, ownerID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	where := fmt.Sprintf(" WHERE %s = $1", ownerCol)
	args := []interface{}{ownerID}
	if status != "" {
		where += " AND status = $2"
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := `SELECT ` + apptCols + ` FROM appointment` + where +
		fmt.Sprintf(" ORDER BY start_time DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var list []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, a)
	}
	return list, total, rows.Err()
}

func (r *appointmentRepoPG) ListActiveOnDate(ctx context.Context, doctorID uuid.UUID, date time.Time, excludeID *uuid.UUID) ([]*Appointment, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
		SELECT ` + apptCols + ` FROM appointment
		WHERE doctor_id = $1
		  AND status IN ('PENDING','CONFIRMED')
		  AND start_time < $3 AND end_time > $2`
	args := []interface{}{doctorID, dayStart, dayEnd}
	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}
	query += " ORDER BY start_time"

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	defer rows.Close()

	var list []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (r *appointmentRepoPG) LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) error {
	key := fmt.Sprintf("%s:%s", doctorID, date.Format("2006-01-02"))
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}
