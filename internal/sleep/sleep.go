// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package sleep implements Component F: it computes SleepState from a
// timezone-aware on-hours schedule, recomputed from wall-clock on every
// tick so DST transitions and clock jumps never accumulate drift
// (spec.md §4.6).
package sleep

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lumaframe/frame/internal/clock"
	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/logging"
)

// State is SleepState (spec.md §3): {Awake, Asleep}.
type State int

const (
	Awake State = iota
	Asleep
)

func (s State) String() string {
	if s == Asleep {
		return "asleep"
	}
	return "awake"
}

// Setter is the subset of the viewer the scheduler drives (spec.md
// §4.6: "On change, F calls Viewer.set_sleep(...)").
type Setter interface {
	SetSleep(asleep bool, reason string)
}

// Scheduler computes and drives SleepState transitions.
type Scheduler struct {
	cfg    config.SleepModeConfig
	loc    *time.Location
	clock  clock.Clock
	setter Setter
	logger *slog.Logger

	mu          sync.Mutex
	current     State
	initialized bool
	override    *State // one-shot manual flip, cleared at the next scheduled boundary
}

// New constructs a Scheduler. cfg.Timezone must already have been
// validated by config.Load via time.LoadLocation.
func New(cfg config.SleepModeConfig, c clock.Clock, setter Setter) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, errs.New(errs.ConfigInvalid, "", fmt.Errorf("sleep: load timezone %q: %w", cfg.Timezone, err))
		}
		loc = l
	}
	return &Scheduler{
		cfg:    cfg,
		loc:    loc,
		clock:  c,
		setter: setter,
		logger: logging.Logger(),
	}, nil
}

// Tick recomputes SleepState from the current wall-clock time and
// drives the viewer + display-power command on any change (spec.md
// §4.6). Call this once per scheduler tick; it is cheap and idempotent
// when nothing has changed.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().In(s.loc)
	scheduled := s.scheduledState(now)

	want := scheduled
	boundary := s.atBoundary(now)
	if s.override != nil {
		if boundary {
			// The next scheduled boundary reclaims control (spec.md §4.6).
			s.override = nil
			want = scheduled
		} else {
			want = *s.override
		}
	}

	if !s.initialized {
		s.initialized = true
		s.current = want
		s.setter.SetSleep(want == Asleep, "startup")
		return
	}

	if want == s.current {
		return
	}

	reason := "schedule"
	if s.override != nil {
		reason = "override"
	}
	s.current = want
	s.setter.SetSleep(want == Asleep, reason)
	s.runDisplayPower(want)
}

// ToggleState records a one-shot override to the opposite of the current
// SleepState, regardless of schedule; the next scheduled boundary
// reclaims control (spec.md §4.7 ToggleState). The state itself, and the
// viewer, change on the next Tick, not inside this call.
func (s *Scheduler) ToggleState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	flipped := Awake
	if s.current == Awake {
		flipped = Asleep
	}
	s.override = &flipped
}

// SetState forces an explicit state via the control channel's
// set-state command; treated the same as a one-shot override.
func (s *Scheduler) SetState(asleep bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Awake
	if asleep {
		st = Asleep
	}
	s.override = &st
}

// Current returns the last-computed SleepState.
func (s *Scheduler) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// atBoundary reports whether now sits on a scheduled on/off transition
// minute, the trigger for clearing a one-shot override.
func (s *Scheduler) atBoundary(now time.Time) bool {
	if s.override == nil {
		return false
	}
	win := s.windowFor(now)
	return sameMinute(now, atClock(now, win.Start)) || sameMinute(now, atClock(now, win.End))
}

func sameMinute(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay() && a.Hour() == b.Hour() && a.Minute() == b.Minute()
}

// scheduledState reports Awake/Asleep per the configured schedule,
// checking both today's and yesterday's window to handle windows that
// wrap past midnight (spec.md §4.6: "computes the active window for
// today and yesterday").
func (s *Scheduler) scheduledState(now time.Time) State {
	todayWin := s.windowFor(now)
	if inWindow(now, todayWin, now) {
		return Awake
	}
	yesterday := now.AddDate(0, 0, -1)
	yesterdayWin := s.windowFor(yesterday)
	if inWindow(now, yesterdayWin, yesterday) {
		return Awake
	}
	return Asleep
}

// windowFor resolves the on-hours window in effect for the given day,
// honoring precedence day-of-week > weekend/weekday > default (spec.md
// §4.6).
func (s *Scheduler) windowFor(day time.Time) config.DayWindow {
	name := strings.ToLower(day.Weekday().String())
	if s.cfg.Days != nil {
		if w, ok := s.cfg.Days[name]; ok {
			return w
		}
	}
	isWeekend := day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
	if isWeekend && s.cfg.WeekendOverride != nil {
		return *s.cfg.WeekendOverride
	}
	if !isWeekend && s.cfg.WeekdayOverride != nil {
		return *s.cfg.WeekdayOverride
	}
	return s.cfg.OnHours
}

// inWindow reports whether now falls within win anchored to day,
// wrapping past midnight when win.Start > win.End.
func inWindow(now time.Time, win config.DayWindow, day time.Time) bool {
	start := atClock(day, win.Start)
	end := atClock(day, win.End)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return !now.Before(start) && now.Before(end)
}

// atClock returns the instant on day's calendar date at the "HH:MM"
// clock string, in day's location.
func atClock(day time.Time, hhmm string) time.Time {
	h, m := parseClock(hhmm)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func parseClock(hhmm string) (int, int) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}

// runDisplayPower runs the sleep/wake shell command for the new state,
// if configured. Failures are logged as DisplayPowerFailed and never
// fatal (spec.md §4.6, §7).
func (s *Scheduler) runDisplayPower(want State) {
	cmdline := s.cfg.DisplayPower.WakeCommand
	if want == Asleep {
		cmdline = s.cfg.DisplayPower.SleepCommand
	}
	if cmdline == "" {
		return
	}
	cmd := exec.Command("sh", "-c", cmdline)
	if err := cmd.Run(); err != nil {
		s.logger.Warn("sleep: display-power command failed",
			"state", want, "error", errs.New(errs.DisplayPowerFailed, "", err))
	}
}

// NextTransitions returns up to n scheduled awake/asleep boundaries
// starting from now, for --verbose-sleep (spec.md §6). Only the next 48
// hours are searched, so fewer than n may be returned.
func (s *Scheduler) NextTransitions(now time.Time, n int) []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Transition, 0, n)
	cursor := now.In(s.loc)
	last := s.scheduledState(cursor)
	for len(out) < n && cursor.Sub(now) < 48*time.Hour {
		cursor = cursor.Add(time.Minute)
		st := s.scheduledState(cursor)
		if st != last {
			out = append(out, Transition{At: cursor, State: st})
			last = st
		}
	}
	return out
}

// Transition is one scheduled boundary, for --verbose-sleep output.
type Transition struct {
	At    time.Time
	State State
}
