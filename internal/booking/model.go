package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a doctor-published, bookable interval on a calendar day.
// StartTime and EndTime are instants on Date; the interval is half-open,
// [StartTime, EndTime).
type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
	IsBooked  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment references exactly one slot. A row exists iff its slot has
// is_booked = true; both are written in the same transaction.
type Appointment struct {
	ID        uuid.UUID
	SlotID    uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Reason    string
	Notes     string
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AppointmentDetail struct {
	Appointment
	Slot    *Slot
	Patient *Patient
	Doctor  *Doctor
}
