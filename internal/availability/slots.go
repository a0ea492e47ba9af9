package availability

import "time"

// Candidates returns the start times of all slots that fit within
// [windowStart, windowEnd): it walks forward from windowStart in step
// increments while start+duration+buffer stays inside the window, then
// emits the final feasible start when the stride does not land on it, so
// the last bookable slot before closing is never lost. Starts before now
// are skipped. The generator knows nothing about existing appointments.
//
// All times are expected to be in the same location (timezone).
func Candidates(windowStart, windowEnd time.Time, duration, buffer, step time.Duration, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 || buffer < 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	latest := windowEnd.Add(-duration - buffer)
	if latest.Before(windowStart) {
		return nil
	}

	var starts []time.Time
	last := time.Time{}
	for t := windowStart; !t.After(latest); t = t.Add(step) {
		last = t
		if t.Before(now) {
			continue
		}
		starts = append(starts, t)
	}
	if latest.After(last) && !latest.Before(now) {
		starts = append(starts, latest)
	}
	return starts
}
