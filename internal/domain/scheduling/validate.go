package scheduling

import "time"

// checkBookable verifies that an appointment interval can be taken. The
// windows must already be filtered to the start's weekday, and busy to the
// start's date.
//
// The window check is deliberately start-only: a booking whose start falls
// inside a window is accepted even if its end runs past the window's edge.
// Slot listing is stricter and only offers fully fitting slots, so the two
// agree for starts the engine itself produced.
func checkBookable(start, end time.Time, windows []*AvailabilityWindow, busy []*Appointment) error {
	startOfDay := FromClock(start)
	inWindow := false
	for _, w := range windows {
		if w.StartTime <= startOfDay && startOfDay < w.EndTime {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return validationf("requested time %s is outside the doctor's availability", start.Format(time.RFC3339))
	}

	for _, a := range busy {
		if a.Overlaps(start, end) {
			return conflictf("requested time %s conflicts with an existing appointment", start.Format(time.RFC3339))
		}
	}
	return nil
}
