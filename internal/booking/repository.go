package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Store contains the DB interactions needed by the service. The same
// interface is implemented by the pool-backed repository and by an open
// transaction, so service code reads identically in both contexts.
type Store interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListSlotsForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error)
	ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Slot, error)
	ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]Slot, error)

	CreateSlot(ctx context.Context, s *Slot) (*Slot, error)
	UpdateSlotTimes(ctx context.Context, id uuid.UUID, date, start, end time.Time) (*Slot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	// LockSlot acquires an exclusive row lock on the slot and returns its
	// current state. Only meaningful inside WithTx; the lock is held until
	// the transaction ends.
	LockSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	MarkSlotBooked(ctx context.Context, id uuid.UUID) error

	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// FindUpcoming returns scheduled appointments whose slot starts within
	// [from, until), hydrated for reminder rendering.
	FindUpcoming(ctx context.Context, from, until time.Time) ([]AppointmentDetail, error)
}

// Repository is a Store that can open transactions. fn runs against a
// transaction-scoped Store; any error aborts the transaction entirely.
type Repository interface {
	Store
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
