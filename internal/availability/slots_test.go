package availability

import (
	"testing"
	"time"
)

func TestCandidates_FullDayGrid(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(9 * time.Hour)
	windowEnd := day.Add(17 * time.Hour)

	// 30 minute service with a 10 minute buffer: grid starts 09:00,
	// 09:15, ... 16:15, then the final feasible start 16:20 is emitted
	// off-grid so the last slot before closing is not lost.
	starts := Candidates(windowStart, windowEnd, 30*time.Minute, 10*time.Minute, 15*time.Minute, day)
	if len(starts) != 31 {
		t.Fatalf("expected 31 candidates, got %d", len(starts))
	}
	if !starts[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first candidate 09:00, got %s", starts[0].Format(time.RFC3339))
	}
	if !starts[29].Equal(day.Add(16*time.Hour + 15*time.Minute)) {
		t.Fatalf("expected 16:15 on the grid, got %s", starts[29].Format(time.RFC3339))
	}
	if !starts[30].Equal(day.Add(16*time.Hour + 20*time.Minute)) {
		t.Fatalf("expected tail candidate 16:20, got %s", starts[30].Format(time.RFC3339))
	}
}

func TestCandidates_ExactFit(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// 60 minute window, 30+15 minute footprint: 09:00 and the tail
	// 09:15 both fit; 09:15 already lies on the grid so no duplicate.
	starts := Candidates(day.Add(9*time.Hour), day.Add(10*time.Hour), 30*time.Minute, 15*time.Minute, 15*time.Minute, day)
	if len(starts) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(starts))
	}
	if !starts[1].Equal(day.Add(9*time.Hour + 15*time.Minute)) {
		t.Fatalf("expected last candidate 09:15, got %s", starts[1].Format(time.RFC3339))
	}
}

func TestCandidates_SkipsPast(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)
	starts := Candidates(day.Add(9*time.Hour), day.Add(11*time.Hour), 30*time.Minute, 0, 15*time.Minute, now)
	if len(starts) == 0 {
		t.Fatal("expected candidates after now")
	}
	if !starts[0].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected first candidate 09:45, got %s", starts[0].Format(time.RFC3339))
	}
}

func TestCandidates_WindowTooSmall(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	starts := Candidates(day.Add(9*time.Hour), day.Add(9*time.Hour+20*time.Minute), 30*time.Minute, 0, 15*time.Minute, day)
	if starts != nil {
		t.Fatalf("expected no candidates, got %v", starts)
	}
}

func TestCandidates_InvalidInputs(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := Candidates(day.Add(10*time.Hour), day.Add(9*time.Hour), 30*time.Minute, 0, 15*time.Minute, day); got != nil {
		t.Fatalf("inverted window: expected nil, got %v", got)
	}
	if got := Candidates(day, day.Add(time.Hour), 0, 0, 15*time.Minute, day); got != nil {
		t.Fatalf("zero duration: expected nil, got %v", got)
	}
}
