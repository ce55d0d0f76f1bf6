package notify

import (
	"context"
	"fmt"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/pkg/logging"
)

// Dispatcher renders booking emails and hands them to an EmailSender.
// It implements booking.Notifier; callers invoke it after commit only.
type Dispatcher struct {
	sender EmailSender
	logger *logging.Logger
}

func NewDispatcher(sender EmailSender, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// BookingConfirmed emails the patient that their appointment is booked.
// Patients without an email address are skipped, not failed.
func (d *Dispatcher) BookingConfirmed(ctx context.Context, det *booking.AppointmentDetail) error {
	addr, name, ok := recipient(det)
	if !ok {
		d.logger.Debug("booking confirmation skipped, patient has no email", "appointment_id", det.ID)
		return nil
	}

	msg := EmailMessage{
		To:      addr,
		ToName:  name,
		Subject: "Your appointment is confirmed",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour appointment with Dr. %s is confirmed for %s from %s to %s.\n\nReason: %s\n\nIf you need to reschedule, please contact the clinic.\n",
			name,
			det.Doctor.Name,
			det.Slot.Date.Format("Monday, January 2, 2006"),
			det.Slot.StartTime.Format(timeOfDay),
			det.Slot.EndTime.Format(timeOfDay),
			det.Reason,
		),
	}
	return d.sender.Send(ctx, msg)
}

// AppointmentReminder emails the patient ahead of an upcoming appointment.
func (d *Dispatcher) AppointmentReminder(ctx context.Context, det *booking.AppointmentDetail) error {
	addr, name, ok := recipient(det)
	if !ok {
		d.logger.Debug("reminder skipped, patient has no email", "appointment_id", det.ID)
		return nil
	}

	msg := EmailMessage{
		To:      addr,
		ToName:  name,
		Subject: "Upcoming appointment reminder",
		Body: fmt.Sprintf(
			"Hi %s,\n\nThis is a reminder of your appointment with Dr. %s on %s at %s.\n\nSee you soon.\n",
			name,
			det.Doctor.Name,
			det.Slot.Date.Format("Monday, January 2, 2006"),
			det.Slot.StartTime.Format(timeOfDay),
		),
	}
	return d.sender.Send(ctx, msg)
}

const timeOfDay = "3:04 PM"

func recipient(det *booking.AppointmentDetail) (addr, name string, ok bool) {
	if det == nil || det.Patient == nil || det.Patient.Email == nil || *det.Patient.Email == "" {
		return "", "", false
	}
	return *det.Patient.Email, det.Patient.Name, true
}

var _ booking.Notifier = (*Dispatcher)(nil)
