// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package transition implements the Viewer's slide-to-slide transition
// sub-pipeline (spec.md §4.5 step 4): a progress function driven by
// wall-clock time rather than frame count, selecting among configured
// transition kinds with the same tagged-variant dispatch pattern
// internal/effect and internal/viewer/mat use.
package transition

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lumaframe/frame/internal/config"
)

// Kind names a transition variant understood by the dispatch table.
type Kind string

const (
	KindNone  Kind = "none"
	KindFade  Kind = "fade"
	KindWipe  Kind = "wipe"
	KindPush  Kind = "push"
	KindEInk  Kind = "e-ink"
	KindIris  Kind = "iris"
)

// defaultDuration is the fade fallback's duration (spec.md §4.5:
// "Invalid transition parameters: fall back to fade with a default
// duration").
const defaultDuration = 600 * time.Millisecond

// Params is the fully-resolved parameter set for one in-flight
// transition, captured at selection time so a running transition is
// unaffected by a later config reload.
type Params struct {
	Kind         Kind
	Duration     time.Duration
	ThroughBlack bool

	AngleDegrees float64
	Softness     float64

	FlashCount    int
	StripeCount   int
	FlashColor    string
	RevealPortion float64

	Blades    int
	OpenScale float64
}

// Selector picks and resolves transition.active entries (spec.md §6
// transition.active/transition.selection), the same selection
// semantics internal/viewer/mat.Pool uses for matting.active.
type Selector struct {
	entries   []config.TransitionEntry
	selection config.Selection

	mu     sync.Mutex
	cursor int
}

// NewSelector builds a Selector. An empty entries list resolves to
// KindNone: "transition.active empty" is equivalent to disabling
// transitions entirely (spec.md §9). An entry with invalid parameters
// resolves to the default fade fallback instead.
func NewSelector(entries []config.TransitionEntry, selection config.Selection) *Selector {
	return &Selector{entries: entries, selection: selection}
}

// Next resolves the next transition to run for photoID.
func (s *Selector) Next(photoID string) Params {
	entry, ok := s.pick(photoID)
	if !ok {
		return Params{Kind: KindNone}
	}
	p, err := resolve(entry, photoID)
	if err != nil {
		return Params{Kind: KindFade, Duration: defaultDuration, ThroughBlack: true}
	}
	return p
}

func (s *Selector) pick(photoID string) (config.TransitionEntry, bool) {
	if len(s.entries) == 0 {
		return config.TransitionEntry{}, false
	}
	if s.selection == config.SelectionRandom {
		idx := int(rngForPhoto(photoID).Uint64() % uint64(len(s.entries)))
		return s.entries[idx], true
	}

	s.mu.Lock()
	idx := s.cursor % len(s.entries)
	s.cursor++
	s.mu.Unlock()
	return s.entries[idx], true
}

// resolve validates and converts a config entry into Params, returning
// an error for any invalid parameter combination so the caller can
// apply the fade fallback.
func resolve(e config.TransitionEntry, photoID string) (Params, error) {
	if e.DurationMS <= 0 && Kind(e.Kind) != KindNone {
		return Params{}, errInvalid("duration-ms must be positive")
	}
	dur := time.Duration(e.DurationMS) * time.Millisecond

	switch Kind(e.Kind) {
	case KindNone:
		return Params{Kind: KindNone}, nil

	case KindFade:
		return Params{Kind: KindFade, Duration: dur, ThroughBlack: e.ThroughBlack}, nil

	case KindWipe:
		if e.Softness < 0 || e.Softness > 1 {
			return Params{}, errInvalid("wipe softness out of range")
		}
		return Params{
			Kind:         KindWipe,
			Duration:     dur,
			AngleDegrees: pickAngle(e, photoID),
			Softness:     e.Softness,
		}, nil

	case KindPush:
		return Params{
			Kind:         KindPush,
			Duration:     dur,
			AngleDegrees: pickAngle(e, photoID),
		}, nil

	case KindEInk:
		if e.FlashCount < 0 || e.StripeCount <= 0 {
			return Params{}, errInvalid("e-ink flash-count/stripe-count out of range")
		}
		if e.RevealPortion <= 0 || e.RevealPortion > 1 {
			return Params{}, errInvalid("e-ink reveal-portion out of range")
		}
		return Params{
			Kind:          KindEInk,
			Duration:      dur,
			FlashCount:    e.FlashCount,
			StripeCount:   e.StripeCount,
			FlashColor:    e.FlashColor,
			RevealPortion: e.RevealPortion,
		}, nil

	case KindIris:
		if e.Blades < 3 {
			return Params{}, errInvalid("iris blades must be >= 3")
		}
		if e.OpenScale <= 0 {
			return Params{}, errInvalid("iris open-scale must be positive")
		}
		return Params{
			Kind:      KindIris,
			Duration:  dur,
			Blades:    e.Blades,
			OpenScale: e.OpenScale,
		}, nil

	default:
		return Params{}, errInvalid("unknown transition kind " + e.Kind)
	}
}

func pickAngle(e config.TransitionEntry, photoID string) float64 {
	if len(e.AngleListDegrees) == 0 {
		return 0
	}
	var idx int
	if e.AngleSelection == config.SelectionRandom {
		idx = int(rngForPhoto(photoID).Uint64() % uint64(len(e.AngleListDegrees)))
	} else {
		h := fnv.New32a()
		_, _ = h.Write([]byte(photoID))
		idx = int(h.Sum32()) % len(e.AngleListDegrees)
	}
	angle := e.AngleListDegrees[idx]
	if e.AngleJitterDegrees > 0 {
		jitter := (rngForPhoto(photoID).Float64()*2 - 1) * e.AngleJitterDegrees
		angle += jitter
	}
	return angle
}

func rngForPhoto(id string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
}

type invalidParamsError string

func (e invalidParamsError) Error() string { return string(e) }

func errInvalid(msg string) error { return invalidParamsError(msg) }

// Run is a single in-flight transition's progress tracker. Progress is
// computed from elapsed wall-clock time against a start instant, never
// from a frame counter (spec.md §4.5: "progress must be computed from
// elapsed wall-clock time, not frame count, so a stalled render loop
// does not change the perceived transition speed once it resumes").
type Run struct {
	Params Params
	start  time.Time
	now    func() time.Time
}

// NewRun starts a transition run. now defaults to time.Now; tests
// inject a deterministic clock.
func NewRun(p Params, now func() time.Time) *Run {
	if now == nil {
		now = time.Now
	}
	return &Run{Params: p, start: now(), now: now}
}

// Progress returns the current position in [0,1]. A zero or negative
// Duration (KindNone) is always complete.
func (r *Run) Progress() float64 {
	if r.Params.Duration <= 0 {
		return 1
	}
	elapsed := r.now().Sub(r.start)
	p := float64(elapsed) / float64(r.Params.Duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Done reports whether the transition has reached full progress.
func (r *Run) Done() bool { return r.Progress() >= 1 }
