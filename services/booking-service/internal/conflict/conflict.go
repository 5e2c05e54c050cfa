// Package conflict holds the minimum-separation rule for a doctor's
// schedule. It is pure time arithmetic so it can be tested exhaustively
// without a database.
package conflict

import (
	"time"

	"github.com/clinicbook-io/clinicbook/services/booking-service/internal/model"
)

// MinSeparation is the smallest allowed gap between two scheduled
// appointments for the same doctor. Two starts exactly MinSeparation apart
// do NOT conflict; only a strictly smaller gap does. Callers rely on that
// boundary, so keep it closed/open.
const MinSeparation = 30 * time.Minute

// DayWindow returns the UTC calendar-day bounds [start, end) containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// TooClose reports whether two start times are strictly within
// MinSeparation of each other.
func TooClose(a, b time.Time) bool {
	return a.Sub(b).Abs() < MinSeparation
}

// FirstViolation returns the first existing appointment whose start time is
// strictly within MinSeparation of requested, or nil when the slot is clear.
// Only scheduled appointments block; anything else is skipped.
func FirstViolation(requested time.Time, existing []model.Appointment) *model.Appointment {
	for i := range existing {
		if existing[i].Status != model.StatusScheduled {
			continue
		}
		if TooClose(requested, existing[i].StartTime) {
			return &existing[i]
		}
	}
	return nil
}

// OpenStarts returns candidate start times on step boundaries within
// [windowStart, windowEnd) that would not violate MinSeparation against the
// existing appointments. Starts before now are skipped.
func OpenStarts(windowStart, windowEnd time.Time, step time.Duration, existing []model.Appointment, now time.Time) []time.Time {
	if step <= 0 || !windowEnd.After(windowStart) {
		return nil
	}

	var starts []time.Time
	for t := windowStart; t.Before(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if FirstViolation(t, existing) == nil {
			starts = append(starts, t)
		}
	}
	return starts
}
