package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/pkg/logging"
)

// stubService returns canned results per method so handler mapping can be
// tested without a datastore.
type stubService struct {
	slot      *booking.Slot
	slots     []booking.Slot
	openSlots []booking.Slot
	detail    *booking.AppointmentDetail
	details   []booking.AppointmentDetail
	appt      *booking.Appointment
	err       error

	gotLimit  int
	gotOffset int
}

func (s *stubService) CreateSlot(context.Context, uuid.UUID, time.Time, time.Time, time.Time) (*booking.Slot, error) {
	return s.slot, s.err
}

func (s *stubService) EditSlot(context.Context, uuid.UUID, time.Time, time.Time, time.Time) (*booking.Slot, error) {
	return s.slot, s.err
}

func (s *stubService) DeleteSlot(context.Context, uuid.UUID) error { return s.err }

func (s *stubService) ListDoctorSlots(context.Context, uuid.UUID) ([]booking.Slot, error) {
	return s.slots, s.err
}

func (s *stubService) ListOpenSlots(context.Context, uuid.UUID) ([]booking.Slot, error) {
	return s.openSlots, s.err
}

func (s *stubService) Book(context.Context, uuid.UUID, uuid.UUID, string, string) (*booking.AppointmentDetail, error) {
	return s.detail, s.err
}

func (s *stubService) GetAppointment(context.Context, uuid.UUID) (*booking.AppointmentDetail, error) {
	return s.detail, s.err
}

func (s *stubService) ListAppointmentsByPatient(_ context.Context, _ uuid.UUID, limit, offset int) ([]booking.AppointmentDetail, error) {
	s.gotLimit, s.gotOffset = limit, offset
	return s.details, s.err
}

func (s *stubService) ListAppointmentsByDoctor(_ context.Context, _ uuid.UUID, limit, offset int) ([]booking.AppointmentDetail, error) {
	s.gotLimit, s.gotOffset = limit, offset
	return s.details, s.err
}

func (s *stubService) UpdateAppointmentStatus(context.Context, uuid.UUID, booking.AppointmentStatus) (*booking.Appointment, error) {
	return s.appt, s.err
}

func newTestRouter(svc BookingService) http.Handler {
	return NewRouter(RouterConfig{
		Service: svc,
		Logger:  logging.New("error"),
		Env:     "test",
		Version: "test",
	})
}

func fixtureSlot() *booking.Slot {
	return &booking.Slot{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		Date:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		StartTime: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
	}
}

func fixtureDetail() *booking.AppointmentDetail {
	slot := fixtureSlot()
	slot.IsBooked = true
	return &booking.AppointmentDetail{
		Appointment: booking.Appointment{
			ID:        uuid.New(),
			SlotID:    slot.ID,
			PatientID: uuid.New(),
			DoctorID:  slot.DoctorID,
			Reason:    "checkup",
			Status:    booking.StatusScheduled,
		},
		Slot:    slot,
		Patient: &booking.Patient{ID: uuid.New(), Name: "Ada Vance"},
		Doctor:  &booking.Doctor{ID: slot.DoctorID, Name: "Okafor"},
	}
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateSlot(t *testing.T) {
	slot := fixtureSlot()
	svc := &stubService{slot: slot}
	router := newTestRouter(svc)

	body := `{"doctor_id":"` + slot.DoctorID.String() + `","date":"2025-06-02","start_time":"2025-06-02T09:00:00Z","end_time":"2025-06-02T09:30:00Z"}`
	rec := doRequest(t, router, http.MethodPost, "/slots", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, slot.ID, resp.ID)
	assert.Equal(t, "2025-06-02", resp.Date)
}

func TestCreateSlotBadBody(t *testing.T) {
	router := newTestRouter(&stubService{})
	rec := doRequest(t, router, http.MethodPost, "/slots", "{nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSlotBadDate(t *testing.T) {
	router := newTestRouter(&stubService{})
	body := `{"doctor_id":"` + uuid.NewString() + `","date":"junk","start_time":"2025-06-02T09:00:00Z","end_time":"2025-06-02T09:30:00Z"}`
	rec := doRequest(t, router, http.MethodPost, "/slots", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlotErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"overlap", booking.ErrSlotOverlap, http.StatusConflict, "slot_overlap"},
		{"past date", booking.ErrPastDate, http.StatusBadRequest, "invalid_slot"},
		{"bad interval", booking.ErrInvalidInterval, http.StatusBadRequest, "invalid_slot"},
		{"booked", booking.ErrSlotBooked, http.StatusConflict, "slot_booked"},
		{"missing doctor", booking.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
		{"lock timeout", booking.ErrLockTimeout, http.StatusServiceUnavailable, "lock_timeout"},
		{"storage", booking.ErrStorage, http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubService{err: tc.err})
			body := `{"doctor_id":"` + uuid.NewString() + `","date":"2025-06-02","start_time":"2025-06-02T09:00:00Z","end_time":"2025-06-02T09:30:00Z"}`
			rec := doRequest(t, router, http.MethodPost, "/slots", body)

			assert.Equal(t, tc.want, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error)
		})
	}
}

func TestUpdateSlot(t *testing.T) {
	slot := fixtureSlot()
	router := newTestRouter(&stubService{slot: slot})

	body := `{"date":"2025-06-02","start_time":"2025-06-02T10:00:00Z","end_time":"2025-06-02T10:30:00Z"}`
	rec := doRequest(t, router, http.MethodPut, "/slots/"+slot.ID.String(), body)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateSlotBadID(t *testing.T) {
	router := newTestRouter(&stubService{})
	rec := doRequest(t, router, http.MethodPut, "/slots/not-a-uuid", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSlot(t *testing.T) {
	router := newTestRouter(&stubService{})
	rec := doRequest(t, router, http.MethodDelete, "/slots/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteBookedSlot(t *testing.T) {
	router := newTestRouter(&stubService{err: booking.ErrSlotBooked})
	rec := doRequest(t, router, http.MethodDelete, "/slots/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListDoctorSlots(t *testing.T) {
	all := []booking.Slot{*fixtureSlot(), *fixtureSlot()}
	open := all[:1]
	svc := &stubService{slots: all, openSlots: open}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/doctors/"+uuid.NewString()+"/slots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)

	rec = doRequest(t, router, http.MethodGet, "/doctors/"+uuid.NewString()+"/slots?open=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}

func TestBookAppointment(t *testing.T) {
	det := fixtureDetail()
	router := newTestRouter(&stubService{detail: det})

	body := `{"slot_id":"` + det.SlotID.String() + `","patient_id":"` + det.PatientID.String() + `","reason":"checkup"}`
	rec := doRequest(t, router, http.MethodPost, "/appointments", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, det.ID, resp.ID)
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, "Ada Vance", resp.Patient)
	require.NotNil(t, resp.Slot)
	assert.True(t, resp.Slot.IsBooked)
}

func TestBookErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"already booked", booking.ErrAlreadyBooked, http.StatusConflict, "slot_already_booked"},
		{"lock timeout", booking.ErrLockTimeout, http.StatusServiceUnavailable, "lock_timeout"},
		{"missing patient", booking.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{"missing slot", booking.ErrSlotNotFound, http.StatusNotFound, "slot_not_found"},
		{"storage", booking.ErrStorage, http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubService{err: tc.err})
			body := `{"slot_id":"` + uuid.NewString() + `","patient_id":"` + uuid.NewString() + `","reason":"x"}`
			rec := doRequest(t, router, http.MethodPost, "/appointments", body)

			assert.Equal(t, tc.want, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error)
		})
	}
}

func TestGetAppointment(t *testing.T) {
	det := fixtureDetail()
	router := newTestRouter(&stubService{detail: det})

	rec := doRequest(t, router, http.MethodGet, "/appointments/"+det.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, det.ID, resp.ID)
	assert.Equal(t, "Okafor", resp.Doctor)
}

func TestGetAppointmentNotFound(t *testing.T) {
	router := newTestRouter(&stubService{err: booking.ErrAppointmentNotFound})
	rec := doRequest(t, router, http.MethodGet, "/appointments/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	appt := &booking.Appointment{ID: uuid.New(), Status: booking.StatusCancelled}
	router := newTestRouter(&stubService{appt: appt})

	rec := doRequest(t, router, http.MethodPost, "/appointments/"+appt.ID.String()+"/status", `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Status)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	router := newTestRouter(&stubService{err: booking.ErrInvalidStatusTransition})
	rec := doRequest(t, router, http.MethodPost, "/appointments/"+uuid.NewString()+"/status", `{"status":"scheduled"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListPatientAppointmentsPaging(t *testing.T) {
	svc := &stubService{details: []booking.AppointmentDetail{*fixtureDetail()}}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/patients/"+uuid.NewString()+"/appointments?limit=5&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.gotLimit)
	assert.Equal(t, 10, svc.gotOffset)
}

func TestRequestIDPropagation(t *testing.T) {
	router := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}
