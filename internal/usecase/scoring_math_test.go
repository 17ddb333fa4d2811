package usecase

import (
	"testing"
	"time"
)

func TestTournamentWindow_MidWeek(t *testing.T) {
	// Thursday 2026-03-05.
	ts := time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC)
	start, end := TournamentWindow(ts)

	wantStart := time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 9, 5, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("expected window start %v, got %v", wantStart, start)
	}
	if !end.Equal(wantEnd) {
		t.Fatalf("expected window end %v, got %v", wantEnd, end)
	}
	if start.Weekday() != time.Tuesday || end.Weekday() != time.Monday {
		t.Fatalf("expected Tuesday..Monday window, got %v..%v", start.Weekday(), end.Weekday())
	}
}

func TestTournamentWindow_TuesdayBoundary(t *testing.T) {
	// Tuesday 2026-03-03 04:59 still belongs to the prior week.
	before := time.Date(2026, 3, 3, 4, 59, 0, 0, time.UTC)
	start, _ := TournamentWindow(before)
	if want := time.Date(2026, 2, 24, 5, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected prior week start %v, got %v", want, start)
	}

	// One minute later the new week begins.
	after := time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC)
	start, _ = TournamentWindow(after)
	if want := time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected new week start %v, got %v", want, start)
	}
}

func TestTournamentWindow_IsStableAcrossTheWeek(t *testing.T) {
	anchor := time.Date(2026, 3, 3, 5, 0, 0, 0, time.UTC)
	wantStart, wantEnd := TournamentWindow(anchor)

	for hours := 0; hours < 7*24; hours += 7 {
		start, end := TournamentWindow(anchor.Add(time.Duration(hours) * time.Hour))
		if !start.Equal(wantStart) || !end.Equal(wantEnd) {
			t.Fatalf("window drifted at +%dh: got %v..%v", hours, start, end)
		}
	}
}

func TestShrinkSignal_DampensSmallSamples(t *testing.T) {
	if got := shrinkSignal(1.0, 0, 4); got != 0 {
		t.Fatalf("expected zero-sample signal to be 0, got %v", got)
	}

	small := shrinkSignal(1.0, 2, 4)
	large := shrinkSignal(1.0, 40, 4)
	if small >= large {
		t.Fatalf("expected larger samples to retain more signal: small=%v large=%v", small, large)
	}
	if large >= 1.0 {
		t.Fatalf("expected shrinkage to never amplify, got %v", large)
	}
}

func TestLogisticSquash_Bounds(t *testing.T) {
	if got := logisticSquash(0, 2.5); got != 0.5 {
		t.Fatalf("expected neutral core to squash to 0.5, got %v", got)
	}
	if got := logisticSquash(1000, 2.5); got > 1 {
		t.Fatalf("expected squash <= 1, got %v", got)
	}
	if got := logisticSquash(-1000, 2.5); got < 0 {
		t.Fatalf("expected squash >= 0, got %v", got)
	}
}

func TestAvailabilityMultiplier_Bounds(t *testing.T) {
	cases := []int{-5, 0, 1, 15, 30, 90}
	for _, days := range cases {
		got := availabilityMultiplier(days)
		if got < 0.85 || got > 1.0 {
			t.Fatalf("multiplier out of range for %d days: %v", days, got)
		}
	}
	if availabilityMultiplier(0) != 0.85 {
		t.Fatalf("expected floor at 0 observed days, got %v", availabilityMultiplier(0))
	}
	if availabilityMultiplier(30) != 1.0 {
		t.Fatalf("expected ceiling at 30 observed days, got %v", availabilityMultiplier(30))
	}
}
