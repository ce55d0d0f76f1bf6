package calendar

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/pkg/logging"
)

// GoogleSync mirrors booked appointments into a Google Calendar using a
// service account. It implements booking.CalendarSync.
type GoogleSync struct {
	svc        *gcal.Service
	calendarID string
	logger     *logging.Logger
}

// NewGoogleSync builds a calendar client from a service-account key file.
// Returns nil when no credentials file is configured so callers can skip
// calendar sync entirely.
func NewGoogleSync(ctx context.Context, credentialsFile, calendarID string, logger *logging.Logger) (*GoogleSync, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("calendar: read credentials: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(key, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("calendar: parse credentials: %w", err)
	}

	svc, err := gcal.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}

	return &GoogleSync{svc: svc, calendarID: calendarID, logger: logger}, nil
}

// CreateEvent inserts one event for a committed appointment. Event times
// reuse the slot's interval; the appointment id rides along as an extended
// property so repeated syncs can be reconciled later.
func (g *GoogleSync) CreateEvent(ctx context.Context, det *booking.AppointmentDetail) error {
	summary := fmt.Sprintf("Appointment: %s with Dr. %s", det.Patient.Name, det.Doctor.Name)

	event := &gcal.Event{
		Summary:     summary,
		Description: det.Reason,
		Start:       &gcal.EventDateTime{DateTime: det.Slot.StartTime.Format("2006-01-02T15:04:05Z07:00")},
		End:         &gcal.EventDateTime{DateTime: det.Slot.EndTime.Format("2006-01-02T15:04:05Z07:00")},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{"appointment_id": det.ID.String()},
		},
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("calendar: insert event: %w", err)
	}

	g.logger.Info("calendar event created", "appointment_id", det.ID, "event_id", created.Id)
	return nil
}

var _ booking.CalendarSync = (*GoogleSync)(nil)
