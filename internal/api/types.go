package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/hospital-booking/internal/booking"
)

type CreateSlotRequest struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`       // 2006-01-02
	StartTime string `json:"start_time"` // RFC 3339
	EndTime   string `json:"end_time"`   // RFC 3339
}

type UpdateSlotRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsBooked  bool      `json:"is_booked"`
}

type BookAppointmentRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID        uuid.UUID     `json:"id"`
	SlotID    uuid.UUID     `json:"slot_id"`
	PatientID uuid.UUID     `json:"patient_id"`
	DoctorID  uuid.UUID     `json:"doctor_id"`
	Reason    string        `json:"reason"`
	Notes     string        `json:"notes,omitempty"`
	Status    string        `json:"status"`
	Slot      *SlotResponse `json:"slot,omitempty"`
	Patient   string        `json:"patient_name,omitempty"`
	Doctor    string        `json:"doctor_name,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func slotResponse(s *booking.Slot) *SlotResponse {
	if s == nil {
		return nil
	}
	return &SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      s.Date.Format("2006-01-02"),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		IsBooked:  s.IsBooked,
	}
}

func slotResponses(slots []booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, *slotResponse(&slots[i]))
	}
	return out
}

func appointmentResponse(det *booking.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        det.ID,
		SlotID:    det.SlotID,
		PatientID: det.PatientID,
		DoctorID:  det.DoctorID,
		Reason:    det.Reason,
		Notes:     det.Notes,
		Status:    string(det.Status),
		Slot:      slotResponse(det.Slot),
		CreatedAt: det.CreatedAt,
	}
	if det.Patient != nil {
		resp.Patient = det.Patient.Name
	}
	if det.Doctor != nil {
		resp.Doctor = det.Doctor.Name
	}
	return resp
}

func appointmentResponses(dets []booking.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(dets))
	for i := range dets {
		out = append(out, appointmentResponse(&dets[i]))
	}
	return out
}
