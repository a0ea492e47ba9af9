package availability

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether two half-open intervals intersect. An
// interval ending exactly when another begins does not conflict. This is
// the single overlap definition shared by the availability read path and
// the booking write path.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// ConflictsAny reports whether the candidate overlaps any busy interval.
func ConflictsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}
