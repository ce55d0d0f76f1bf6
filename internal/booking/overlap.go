package booking

import (
	"time"

	"github.com/google/uuid"
)

// Intersects reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. A slot ending exactly when another
// begins does not intersect it.
func Intersects(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HasOverlap checks a candidate interval against every slot in the given
// set, skipping excludeID (used when re-validating an edited slot against
// itself). The set is expected to already be filtered to one doctor and
// one calendar day.
func HasOverlap(slots []Slot, start, end time.Time, excludeID uuid.UUID) bool {
	for _, s := range slots {
		if s.ID == excludeID {
			continue
		}
		if Intersects(start, end, s.StartTime, s.EndTime) {
			return true
		}
	}
	return false
}
