package loader

import "testing"

func TestComputeTargetSizeDownscalesPreservingAspect(t *testing.T) {
	w, h := computeTargetSize(4000, 2000, 1000, 1.0)
	if w != 1000 || h != 500 {
		t.Fatalf("got %dx%d, want 1000x500", w, h)
	}
}

func TestComputeTargetSizeNoUpscaleBeyondFactor(t *testing.T) {
	w, h := computeTargetSize(100, 50, 1000, 1.5)
	if w != 150 || h != 75 {
		t.Fatalf("got %dx%d, want 150x75 (capped at 1.5x)", w, h)
	}
}

func TestComputeTargetSizeNoUpscaleWhenFactorIsOne(t *testing.T) {
	w, h := computeTargetSize(100, 50, 1000, 1.0)
	if w != 100 || h != 50 {
		t.Fatalf("got %dx%d, want unchanged 100x50", w, h)
	}
}

func TestComputeTargetSizePortraitAspectPreserved(t *testing.T) {
	w, h := computeTargetSize(1000, 3000, 900, 1.0)
	if h != 900 {
		t.Fatalf("max dimension not bounded: got %dx%d", w, h)
	}
	if w != 300 {
		t.Fatalf("aspect not preserved: got %dx%d, want 300x900", w, h)
	}
}
