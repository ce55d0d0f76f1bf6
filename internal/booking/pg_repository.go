package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgLockNotAvailable is the SQLSTATE raised when lock_timeout expires
// while waiting on a row lock.
const pgLockNotAvailable = "55P03"

// DBTX is the query surface shared by pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is what NewPgRepository needs from a pool. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type PgxPool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db          DBTX
	pool        PgxPool // nil when this repository wraps an open transaction
	lockTimeout time.Duration
}

// NewPgRepository creates a Postgres-backed repository. lockTimeout bounds
// how long a transaction waits on a slot row lock before failing with
// ErrLockTimeout; zero disables the bound.
func NewPgRepository(pool PgxPool, lockTimeout time.Duration) *PgRepository {
	return &PgRepository{db: pool, pool: pool, lockTimeout: lockTimeout}
}

// WithTx runs fn against a transaction-scoped repository. Any error from
// fn rolls the transaction back entirely; nil commits it.
func (r *PgRepository) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if r.pool == nil {
		// Already transactional, run in place.
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(&PgRepository{db: tx, lockTimeout: r.lockTimeout}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Scan helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Email, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.StartTime, &s.EndTime, &s.IsBooked, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.SlotID, &a.PatientID, &a.DoctorID, &a.Reason, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const slotColumns = "id, doctor_id, slot_date, start_time, end_time, is_booked, created_at, updated_at"
const appointmentColumns = "id, slot_id, patient_id, doctor_id, reason, notes, status, created_at, updated_at"

// Doctors and patients

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, email, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// Slots

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlotsForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1 AND slot_date = $2
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1
		ORDER BY slot_date, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1 AND is_booked = false AND slot_date >= $2
		ORDER BY slot_date, start_time
	`, doctorID, from)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) (*Slot, error) {
	id := s.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO availability_slots (id, doctor_id, slot_date, start_time, end_time, is_booked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, now(), now())
		RETURNING `+slotColumns+`
	`, id, s.DoctorID, s.Date, s.StartTime, s.EndTime)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlotTimes(ctx context.Context, id uuid.UUID, date, start, end time.Time) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE availability_slots
		SET slot_date = $2,
		    start_time = $3,
		    end_time = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id, date, start, end)
	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM availability_slots
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) LockSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
		FOR UPDATE
	`, id)

	s, err := scanSlot(row)
	if err != nil {
		if isLockTimeout(err) {
			return nil, ErrLockTimeout
		}
		return nil, err
	}
	return s, nil
}

func (r *PgRepository) MarkSlotBooked(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE availability_slots
		SET is_booked = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, patient_id, doctor_id, reason, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.SlotID, a.PatientID, a.DoctorID, a.Reason, a.Notes)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

const detailQuery = `
	SELECT a.id, a.slot_id, a.patient_id, a.doctor_id, a.reason, a.notes, a.status, a.created_at, a.updated_at,
	       s.id, s.doctor_id, s.slot_date, s.start_time, s.end_time, s.is_booked, s.created_at, s.updated_at,
	       p.id, p.name, p.email, p.created_at, p.updated_at,
	       d.id, d.name, d.specialty, d.email, d.created_at, d.updated_at
	FROM appointments a
	JOIN availability_slots s ON s.id = a.slot_id
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var det AppointmentDetail
	var s Slot
	var p Patient
	var d Doctor

	err := row.Scan(
		&det.ID, &det.SlotID, &det.PatientID, &det.DoctorID, &det.Reason, &det.Notes, &det.Status, &det.CreatedAt, &det.UpdatedAt,
		&s.ID, &s.DoctorID, &s.Date, &s.StartTime, &s.EndTime, &s.IsBooked, &s.CreatedAt, &s.UpdatedAt,
		&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt,
		&d.ID, &d.Name, &d.Specialty, &d.Email, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	det.Slot = &s
	det.Patient = &p
	det.Doctor = &d
	return &det, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.db.QueryRow(ctx, detailQuery+`
	WHERE a.id = $1
	`, id)
	return scanDetail(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, detailQuery+`
	WHERE a.patient_id = $1
	ORDER BY s.slot_date DESC, s.start_time DESC
	LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, detailQuery+`
	WHERE a.doctor_id = $1
	ORDER BY s.slot_date DESC, s.start_time DESC
	LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) FindUpcoming(ctx context.Context, from, until time.Time) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, detailQuery+`
	WHERE a.status = 'scheduled'
	  AND s.start_time >= $1
	  AND s.start_time < $2
	ORDER BY s.start_time
	`, from, until)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		det, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *det)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
