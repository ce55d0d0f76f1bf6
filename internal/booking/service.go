package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/hospital-booking/internal/observability/metrics"
	"github.com/careslot/hospital-booking/pkg/logging"
)

var (
	ErrInvalidInterval         = errors.New("slot start must be before end")
	ErrPastDate                = errors.New("slot date is in the past")
	ErrSlotOverlap             = errors.New("slot overlaps an existing slot")
	ErrSlotBooked              = errors.New("slot is already booked")
	ErrAlreadyBooked           = errors.New("slot already has an appointment")
	ErrLockTimeout             = errors.New("timed out waiting for slot lock")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrStorage marks transient datastore failures; the transaction was
	// rolled back and the caller may retry.
	ErrStorage = errors.New("storage failure")
)

// Notifier delivers post-commit confirmations. Failures are logged, never
// propagated into booking outcomes.
type Notifier interface {
	BookingConfirmed(ctx context.Context, det *AppointmentDetail) error
	AppointmentReminder(ctx context.Context, det *AppointmentDetail) error
}

// CalendarSync mirrors a committed appointment into external calendars.
// Same fire-and-forget contract as Notifier.
type CalendarSync interface {
	CreateEvent(ctx context.Context, det *AppointmentDetail) error
}

// SlotCache caches open-slot listings per doctor. Implementations swallow
// their own failures; a miss is always acceptable.
type SlotCache interface {
	GetOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, bool)
	SetOpenSlots(ctx context.Context, doctorID uuid.UUID, slots []Slot)
	Invalidate(ctx context.Context, doctorID uuid.UUID)
}

type Service struct {
	repo     Repository
	notifier Notifier
	calendar CalendarSync
	cache    SlotCache
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger

	now func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option       { return func(s *Service) { s.notifier = n } }
func WithCalendar(c CalendarSync) Option   { return func(s *Service) { s.calendar = c } }
func WithSlotCache(c SlotCache) Option     { return func(s *Service) { s.cache = c } }
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dayOf truncates an instant to its UTC calendar date.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) validateInterval(date, start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidInterval
	}
	day := dayOf(date)
	if day.Before(dayOf(s.now())) {
		return ErrPastDate
	}
	// The overlap check is keyed on the slot's date, so the instants must
	// actually lie on it; otherwise a slot filed under the wrong date key
	// could slip past the check and double-commit the doctor in real time.
	// End may land exactly on the next midnight (half-open interval).
	if !dayOf(start).Equal(day) {
		return ErrInvalidInterval
	}
	if !dayOf(end).Equal(day) && !end.Equal(day.AddDate(0, 0, 1)) {
		return ErrInvalidInterval
	}
	return nil
}

// CreateSlot publishes a new availability slot for a doctor. The doctor is
// the single writer of their own schedule, so no row lock is taken; the
// overlap check runs against the current state of that day.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, date, start, end time.Time) (*Slot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, storageFail("load doctor", err)
	}

	if err := s.validateInterval(date, start, end); err != nil {
		return nil, err
	}

	day := dayOf(date)
	existing, err := s.repo.ListSlotsForDay(ctx, doctorID, day)
	if err != nil {
		return nil, storageFail("list slots for day", err)
	}
	if HasOverlap(existing, start, end, uuid.Nil) {
		return nil, ErrSlotOverlap
	}

	created, err := s.repo.CreateSlot(ctx, &Slot{
		DoctorID:  doctorID,
		Date:      day,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, storageFail("create slot", err)
	}

	s.invalidateCache(ctx, doctorID)
	s.logger.Info("slot created", "slot_id", created.ID, "doctor_id", doctorID, "date", day.Format("2006-01-02"))
	return created, nil
}

// EditSlot changes an unbooked slot's interval. The row lock is held while
// checking is_booked so an in-flight booking on the same slot cannot
// interleave with the edit.
func (s *Service) EditSlot(ctx context.Context, slotID uuid.UUID, date, start, end time.Time) (*Slot, error) {
	if err := s.validateInterval(date, start, end); err != nil {
		return nil, err
	}

	var updated *Slot
	err := s.repo.WithTx(ctx, func(tx Store) error {
		locked, err := tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if locked.IsBooked {
			return ErrSlotBooked
		}

		day := dayOf(date)
		existing, err := tx.ListSlotsForDay(ctx, locked.DoctorID, day)
		if err != nil {
			return err
		}
		if HasOverlap(existing, start, end, slotID) {
			return ErrSlotOverlap
		}

		updated, err = tx.UpdateSlotTimes(ctx, slotID, day, start, end)
		return err
	})
	if err != nil {
		return nil, s.mapSlotWriteErr("edit slot", err)
	}

	s.invalidateCache(ctx, updated.DoctorID)
	s.logger.Info("slot updated", "slot_id", slotID)
	return updated, nil
}

// DeleteSlot removes an unbooked slot, under the same lock policy as EditSlot.
func (s *Service) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	var doctorID uuid.UUID
	err := s.repo.WithTx(ctx, func(tx Store) error {
		locked, err := tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		if locked.IsBooked {
			return ErrSlotBooked
		}
		doctorID = locked.DoctorID
		return tx.DeleteSlot(ctx, slotID)
	})
	if err != nil {
		return s.mapSlotWriteErr("delete slot", err)
	}

	s.invalidateCache(ctx, doctorID)
	s.logger.Info("slot deleted", "slot_id", slotID)
	return nil
}

// Book atomically claims a slot for a patient and creates the appointment.
// Exactly one concurrent attempt per slot can succeed; the rest observe
// ErrAlreadyBooked once the winner's transaction commits.
func (s *Service) Book(ctx context.Context, patientID, slotID uuid.UUID, reason, notes string) (*AppointmentDetail, error) {
	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, storageFail("load patient", err)
	}

	// Optimistic pre-check: cheap rejection of a slot we can already see
	// is booked. The authoritative check happens under the row lock.
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, err
		}
		return nil, storageFail("load slot", err)
	}
	if slot.IsBooked {
		s.metrics.ObserveAttempt("already_booked")
		return nil, ErrAlreadyBooked
	}

	doctor, err := s.repo.GetDoctorByID(ctx, slot.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, storageFail("load doctor", err)
	}

	var (
		appt      *Appointment
		lockedNow *Slot
	)
	lockStart := s.now()
	err = s.repo.WithTx(ctx, func(tx Store) error {
		locked, err := tx.LockSlot(ctx, slotID)
		if err != nil {
			return err
		}
		s.metrics.ObserveLockWait(s.now().Sub(lockStart).Seconds())

		// Re-check under the lock: the pre-check above can be stale.
		if locked.IsBooked {
			return ErrAlreadyBooked
		}

		appt, err = tx.CreateAppointment(ctx, &Appointment{
			SlotID:    slotID,
			PatientID: patientID,
			DoctorID:  locked.DoctorID,
			Reason:    reason,
			Notes:     notes,
		})
		if err != nil {
			return err
		}

		if err := tx.MarkSlotBooked(ctx, slotID); err != nil {
			return err
		}

		locked.IsBooked = true
		lockedNow = locked
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyBooked):
			s.metrics.ObserveAttempt("already_booked")
			return nil, ErrAlreadyBooked
		case errors.Is(err, ErrLockTimeout):
			s.metrics.ObserveAttempt("lock_timeout")
			return nil, ErrLockTimeout
		case errors.Is(err, ErrSlotNotFound):
			s.metrics.ObserveAttempt("not_found")
			return nil, err
		default:
			s.metrics.ObserveAttempt("storage_error")
			return nil, storageFail("book slot", err)
		}
	}

	s.metrics.ObserveAttempt("committed")
	s.invalidateCache(ctx, lockedNow.DoctorID)
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID, "slot_id", slotID, "patient_id", patientID, "doctor_id", lockedNow.DoctorID)

	det := &AppointmentDetail{
		Appointment: *appt,
		Slot:        lockedNow,
		Patient:     patient,
		Doctor:      doctor,
	}

	// Post-commit side effects. The booking is durable at this point; a
	// failure here is logged and never unwinds it.
	s.dispatchBooked(ctx, det)

	return det, nil
}

func (s *Service) dispatchBooked(ctx context.Context, det *AppointmentDetail) {
	// The booking is already durable; a client disconnect must not cancel
	// its confirmation. Dispatch gets its own deadline instead.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if s.notifier != nil {
		err := s.notifier.BookingConfirmed(ctx, det)
		s.metrics.ObserveDispatch("email", err)
		if err != nil {
			s.logger.Error("booking confirmation dispatch failed",
				"appointment_id", det.ID, "error", err)
		}
	}
	if s.calendar != nil {
		err := s.calendar.CreateEvent(ctx, det)
		s.metrics.ObserveDispatch("calendar", err)
		if err != nil {
			s.logger.Error("calendar sync failed",
				"appointment_id", det.ID, "error", err)
		}
	}
}

// mapSlotWriteErr classifies errors from lock-protected slot writes.
func (s *Service) mapSlotWriteErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrSlotBooked),
		errors.Is(err, ErrSlotOverlap),
		errors.Is(err, ErrLockTimeout):
		return err
	default:
		return storageFail(op, err)
	}
}

// ListDoctorSlots returns the doctor's full schedule, booked or not.
func (s *Service) ListDoctorSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	slots, err := s.repo.ListSlotsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, storageFail("list doctor slots", err)
	}
	return slots, nil
}

// ListOpenSlots returns the doctor's bookable slots from today onward,
// served through the cache when one is wired.
func (s *Service) ListOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	if s.cache != nil {
		if slots, ok := s.cache.GetOpenSlots(ctx, doctorID); ok {
			return slots, nil
		}
	}

	slots, err := s.repo.ListOpenSlots(ctx, doctorID, dayOf(s.now()))
	if err != nil {
		return nil, storageFail("list open slots", err)
	}

	if s.cache != nil {
		s.cache.SetOpenSlots(ctx, doctorID, slots)
	}
	return slots, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	det, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storageFail("get appointment", err)
	}
	return det, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	limit, offset = clampPage(limit, offset)
	dets, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, storageFail("list appointments by patient", err)
	}
	return dets, nil
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	limit, offset = clampPage(limit, offset)
	dets, err := s.repo.ListAppointmentsByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, storageFail("list appointments by doctor", err)
	}
	return dets, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// UpdateAppointmentStatus moves a scheduled appointment to completed or
// cancelled. The slot's is_booked flag is permanent and is never reverted
// by a status change.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	if to != StatusCompleted && to != StatusCancelled {
		return nil, ErrInvalidStatusTransition
	}

	appt, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusScheduled, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Distinguish a missing row from one that already left the
			// scheduled state.
			if _, getErr := s.repo.GetAppointmentByID(ctx, id); getErr == nil {
				return nil, ErrInvalidStatusTransition
			}
			return nil, ErrAppointmentNotFound
		}
		return nil, storageFail("update appointment status", err)
	}

	s.logger.Info("appointment status updated", "appointment_id", id, "status", to)
	return appt, nil
}

// SendReminders dispatches a reminder for every scheduled appointment whose
// slot starts within [from, until). Dispatch failures are logged and the
// run continues.
func (s *Service) SendReminders(ctx context.Context, from, until time.Time) error {
	if s.notifier == nil {
		return nil
	}

	dets, err := s.repo.FindUpcoming(ctx, from, until)
	if err != nil {
		return storageFail("find upcoming appointments", err)
	}

	for i := range dets {
		det := &dets[i]
		err := s.notifier.AppointmentReminder(ctx, det)
		s.metrics.ObserveDispatch("reminder", err)
		if err != nil {
			s.logger.Error("reminder dispatch failed", "appointment_id", det.ID, "error", err)
			continue
		}
	}
	return nil
}

func (s *Service) invalidateCache(ctx context.Context, doctorID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, doctorID)
	}
}

func storageFail(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStorage, err))
}
