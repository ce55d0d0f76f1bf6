package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/pkg/logging"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func detailFixture(email string) *booking.AppointmentDetail {
	var addr *string
	if email != "" {
		addr = &email
	}
	return &booking.AppointmentDetail{
		Appointment: booking.Appointment{
			ID:     uuid.New(),
			Reason: "annual checkup",
			Status: booking.StatusScheduled,
		},
		Slot: &booking.Slot{
			Date:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			StartTime: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		},
		Patient: &booking.Patient{Name: "Ada Vance", Email: addr},
		Doctor:  &booking.Doctor{Name: "Okafor"},
	}
}

func TestBookingConfirmed(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, logging.New("error"))

	require.NoError(t, d.BookingConfirmed(context.Background(), detailFixture("ada@example.com")))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Ada Vance", msg.ToName)
	assert.Equal(t, "Your appointment is confirmed", msg.Subject)
	assert.Contains(t, msg.Body, "Dr. Okafor")
	assert.Contains(t, msg.Body, "Monday, June 2, 2025")
	assert.Contains(t, msg.Body, "9:00 AM")
	assert.Contains(t, msg.Body, "annual checkup")
}

func TestBookingConfirmedNoEmail(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, logging.New("error"))

	require.NoError(t, d.BookingConfirmed(context.Background(), detailFixture("")))
	assert.Empty(t, sender.sent, "patients without email are skipped")
}

func TestBookingConfirmedSendError(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp down")}
	d := NewDispatcher(sender, logging.New("error"))

	err := d.BookingConfirmed(context.Background(), detailFixture("ada@example.com"))
	assert.Error(t, err)
}

func TestAppointmentReminder(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, logging.New("error"))

	require.NoError(t, d.AppointmentReminder(context.Background(), detailFixture("ada@example.com")))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "Upcoming appointment reminder", msg.Subject)
	assert.Contains(t, msg.Body, "Dr. Okafor")
	assert.Contains(t, msg.Body, "9:00 AM")
}
