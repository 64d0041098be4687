package transition

import (
	"testing"
	"time"

	"github.com/lumaframe/frame/internal/config"
)

func TestEmptyActiveIsNone(t *testing.T) {
	s := NewSelector(nil, config.SelectionSequential)
	p := s.Next("photo-a")
	if p.Kind != KindNone {
		t.Fatalf("Kind = %v, want none", p.Kind)
	}
}

func TestSequentialSelectionCyclesDeterministically(t *testing.T) {
	entries := []config.TransitionEntry{
		{Kind: "fade", DurationMS: 500},
		{Kind: "none", DurationMS: 1},
	}
	s := NewSelector(entries, config.SelectionSequential)
	first := s.Next("a")
	second := s.Next("a")
	third := s.Next("a")
	if first.Kind != KindFade || second.Kind != KindNone || third.Kind != KindFade {
		t.Fatalf("cycle = %v %v %v, want fade none fade", first.Kind, second.Kind, third.Kind)
	}
}

func TestRandomSelectionDeterministicPerPhotoID(t *testing.T) {
	entries := []config.TransitionEntry{
		{Kind: "fade", DurationMS: 500},
		{Kind: "push", DurationMS: 300},
		{Kind: "iris", DurationMS: 400, Blades: 6, OpenScale: 1.2},
	}
	s := NewSelector(entries, config.SelectionRandom)
	a1 := s.Next("photo-a")
	a2 := s.Next("photo-a")
	if a1.Kind != a2.Kind {
		t.Fatalf("random selection not deterministic for same photo id: %v vs %v", a1.Kind, a2.Kind)
	}
}

func TestInvalidParamsFallsBackToFade(t *testing.T) {
	entries := []config.TransitionEntry{
		{Kind: "iris", DurationMS: 400, Blades: 2, OpenScale: 1}, // blades < 3 invalid
	}
	s := NewSelector(entries, config.SelectionSequential)
	p := s.Next("a")
	if p.Kind != KindFade {
		t.Fatalf("Kind = %v, want fade fallback", p.Kind)
	}
	if p.Duration != defaultDuration {
		t.Fatalf("Duration = %v, want default %v", p.Duration, defaultDuration)
	}
}

func TestZeroDurationIsInvalid(t *testing.T) {
	entries := []config.TransitionEntry{{Kind: "fade", DurationMS: 0}}
	s := NewSelector(entries, config.SelectionSequential)
	p := s.Next("a")
	if p.Kind != KindFade || p.Duration != defaultDuration {
		t.Fatalf("expected fallback fade for zero duration, got %v %v", p.Kind, p.Duration)
	}
}

func TestRunProgressFollowsWallClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cur := start
	now := func() time.Time { return cur }

	r := NewRun(Params{Kind: KindFade, Duration: 1 * time.Second}, now)
	if p := r.Progress(); p != 0 {
		t.Fatalf("initial progress = %v, want 0", p)
	}

	cur = start.Add(500 * time.Millisecond)
	if p := r.Progress(); p < 0.49 || p > 0.51 {
		t.Fatalf("progress at 500ms = %v, want ~0.5", p)
	}

	cur = start.Add(2 * time.Second)
	if !r.Done() {
		t.Fatal("expected Done() true past duration")
	}
	if p := r.Progress(); p != 1 {
		t.Fatalf("progress past duration = %v, want clamped to 1", p)
	}
}

func TestNoneKindAlwaysDone(t *testing.T) {
	r := NewRun(Params{Kind: KindNone}, nil)
	if !r.Done() {
		t.Fatal("expected KindNone to be immediately done")
	}
}
