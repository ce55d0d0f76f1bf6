package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveAttempt("committed")
	m.ObserveAttempt("committed")
	m.ObserveAttempt("already_booked")

	if got := testutil.ToFloat64(m.attempts.WithLabelValues("committed")); got != 2 {
		t.Fatalf("committed attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues("already_booked")); got != 1 {
		t.Fatalf("already_booked attempts = %v, want 1", got)
	}
}

func TestObserveDispatchStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveDispatch("email", nil)
	m.ObserveDispatch("email", errors.New("smtp down"))

	if got := testutil.ToFloat64(m.notifications.WithLabelValues("email", "ok")); got != 1 {
		t.Fatalf("email ok dispatches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("email", "error")); got != 1 {
		t.Fatalf("email error dispatches = %v, want 1", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveAttempt("committed")
	m.ObserveLockWait(0.1)
	m.ObserveDispatch("calendar", nil)
}
