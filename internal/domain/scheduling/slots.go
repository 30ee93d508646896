package scheduling

import "time"

// buildDaySlots generates the bookable slots for a single calendar date from
// the doctor's recurring windows and the day's active appointments.
//
// A slot is emitted at every slotLen step inside a window, but only when the
// full slot fits before the window's end. Slots whose interval intersects an
// active appointment are dropped, as are slots that do not start strictly
// after now. Overlapping windows may yield duplicate starts; callers get them
// as stored, in window order.
func buildDaySlots(date time.Time, windows []*AvailabilityWindow, busy []*Appointment, now time.Time, slotLen time.Duration) []Slot {
	slots := []Slot{}
	if slotLen <= 0 {
		// A non-positive step would never advance past the window start.
		return slots
	}
	for _, w := range windows {
		windowEnd := w.EndTime.At(date)
		for start := w.StartTime.At(date); !start.Add(slotLen).After(windowEnd); start = start.Add(slotLen) {
			end := start.Add(slotLen)
			if !start.After(now) {
				continue
			}
			if overlapsAny(start, end, busy) {
				continue
			}
			slots = append(slots, Slot{Start: start, End: end})
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []*Appointment) bool {
	for _, a := range busy {
		if a.Overlaps(start, end) {
			return true
		}
	}
	return false
}
