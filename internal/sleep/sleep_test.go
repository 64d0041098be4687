package sleep

import (
	"testing"
	"time"

	"github.com/lumaframe/frame/internal/clock"
	"github.com/lumaframe/frame/internal/config"
)

type recordingSetter struct {
	calls []bool
}

func (r *recordingSetter) SetSleep(asleep bool, reason string) {
	r.calls = append(r.calls, asleep)
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata for %s not available: %v", name, err)
	}
	return loc
}

func TestScheduledStateWithinWindow(t *testing.T) {
	loc := mustLoc(t, "UTC")
	cfg := config.SleepModeConfig{
		Timezone: "UTC",
		OnHours:  config.DayWindow{Start: "08:00", End: "22:00"},
	}
	setter := &recordingSetter{}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, loc)
	s, err := New(cfg, clock.Frozen{At: now}, setter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Tick()
	if s.Current() != Awake {
		t.Fatalf("Current() = %v, want Awake at midday within on-hours", s.Current())
	}
}

func TestScheduledStateOutsideWindow(t *testing.T) {
	loc := mustLoc(t, "UTC")
	cfg := config.SleepModeConfig{
		Timezone: "UTC",
		OnHours:  config.DayWindow{Start: "08:00", End: "22:00"},
	}
	setter := &recordingSetter{}
	now := time.Date(2026, 7, 31, 23, 0, 0, 0, loc)
	s, err := New(cfg, clock.Frozen{At: now}, setter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Tick()
	if s.Current() != Asleep {
		t.Fatalf("Current() = %v, want Asleep at 23:00 outside on-hours", s.Current())
	}
}

func TestWrappingWindowAroundMidnight(t *testing.T) {
	loc := mustLoc(t, "UTC")
	cfg := config.SleepModeConfig{
		Timezone: "UTC",
		OnHours:  config.DayWindow{Start: "22:00", End: "06:00"},
	}
	setter := &recordingSetter{}
	now := time.Date(2026, 7, 31, 1, 0, 0, 0, loc) // 1am, within wrapped window
	s, err := New(cfg, clock.Frozen{At: now}, setter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Tick()
	if s.Current() != Awake {
		t.Fatalf("Current() = %v, want Awake inside wrapped window", s.Current())
	}
}

func TestToggleStateOverridesUntilBoundary(t *testing.T) {
	loc := mustLoc(t, "UTC")
	cfg := config.SleepModeConfig{
		Timezone: "UTC",
		OnHours:  config.DayWindow{Start: "08:00", End: "22:00"},
	}
	setter := &recordingSetter{}
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, loc)
	fc := &frozenMutable{t: start}
	s, err := New(cfg, fc, setter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Tick() // initial: Awake

	s.ToggleState()
	s.Tick()
	if s.Current() != Asleep {
		t.Fatalf("Current() = %v, want Asleep after ToggleState override", s.Current())
	}

	// Still mid-day, not at a boundary: override should hold.
	fc.t = start.Add(time.Hour)
	s.Tick()
	if s.Current() != Asleep {
		t.Fatalf("Current() = %v, want override to persist before boundary", s.Current())
	}

	// Advance to the 22:00 boundary: schedule should reclaim control.
	fc.t = time.Date(2026, 7, 31, 22, 0, 0, 0, loc)
	s.Tick()
	if s.Current() != Asleep {
		t.Fatalf("Current() = %v, want Asleep from schedule at boundary", s.Current())
	}
}

type frozenMutable struct{ t time.Time }

func (f *frozenMutable) Now() time.Time { return f.t }
