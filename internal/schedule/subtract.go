package schedule

import "sort"

// Subtract removes the blocked spans from the base window, yielding zero
// or more residual open sub-windows. Blocked spans may overlap each
// other; their union is applied.
func Subtract(base Window, blocked []Window) []Window {
	if !base.End.After(base.Start) {
		return nil
	}

	var clipped []Window
	for _, b := range blocked {
		s, e := b.Start, b.End
		if e.Before(base.Start) || !s.Before(base.End) {
			continue
		}
		if s.Before(base.Start) {
			s = base.Start
		}
		if e.After(base.End) {
			e = base.End
		}
		if e.After(s) {
			clipped = append(clipped, Window{Start: s, End: e})
		}
	}
	if len(clipped) == 0 {
		return []Window{base}
	}

	sort.Slice(clipped, func(i, j int) bool {
		if clipped[i].Start.Equal(clipped[j].Start) {
			return clipped[i].End.Before(clipped[j].End)
		}
		return clipped[i].Start.Before(clipped[j].Start)
	})

	merged := make([]Window, 0, len(clipped))
	for _, cur := range clipped {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}

	var out []Window
	cursor := base.Start
	for _, m := range merged {
		if m.Start.After(cursor) {
			out = append(out, Window{Start: cursor, End: m.Start})
		}
		if m.End.After(cursor) {
			cursor = m.End
		}
	}
	if base.End.After(cursor) {
		out = append(out, Window{Start: cursor, End: base.End})
	}
	return out
}
