package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 1, hour, min, 0, 0, time.UTC)
}

func TestIntersects(t *testing.T) {
	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"partial overlap", at(9, 0), at(10, 0), at(9, 30), at(10, 30), true},
		{"contained", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"containing", at(10, 0), at(11, 0), at(9, 0), at(12, 0), true},
		{"touching end-to-start", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"touching start-to-end", at(10, 0), at(11, 0), at(9, 0), at(10, 0), false},
		{"disjoint", at(9, 0), at(10, 0), at(13, 0), at(14, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersects(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Fatalf("Intersects = %v, want %v", got, tt.want)
			}
			// The predicate is symmetric in its two intervals.
			if got := Intersects(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
				t.Fatalf("Intersects (swapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasOverlap(t *testing.T) {
	doctorID := uuid.New()
	existing := []Slot{
		{ID: uuid.New(), DoctorID: doctorID, StartTime: at(9, 0), EndTime: at(9, 30)},
		{ID: uuid.New(), DoctorID: doctorID, StartTime: at(11, 0), EndTime: at(12, 0)},
	}

	if !HasOverlap(existing, at(9, 15), at(9, 45), uuid.Nil) {
		t.Fatal("expected overlap with 09:00-09:30")
	}
	if HasOverlap(existing, at(9, 30), at(10, 0), uuid.Nil) {
		t.Fatal("slot starting exactly at another's end must not overlap")
	}
	if HasOverlap(existing, at(10, 0), at(11, 0), uuid.Nil) {
		t.Fatal("slot ending exactly at another's start must not overlap")
	}
}

func TestHasOverlapExcludesSelf(t *testing.T) {
	slotID := uuid.New()
	existing := []Slot{
		{ID: slotID, StartTime: at(9, 0), EndTime: at(10, 0)},
	}

	// An edit keeping (or shifting within) its own window conflicts only
	// with other slots.
	if HasOverlap(existing, at(9, 15), at(9, 45), slotID) {
		t.Fatal("overlap check must skip the excluded slot")
	}
	if !HasOverlap(existing, at(9, 15), at(9, 45), uuid.Nil) {
		t.Fatal("without exclusion the same interval must conflict")
	}
}

func TestHasOverlapEmptySet(t *testing.T) {
	if HasOverlap(nil, at(9, 0), at(10, 0), uuid.Nil) {
		t.Fatal("a doctor with no slots has no conflicts")
	}
}
