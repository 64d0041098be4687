package effect

import (
	"image"
	"image/color"
	"testing"

	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/loader"
)

func solidImage(w, h int, c color.RGBA) loader.PreparedImage {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return loader.PreparedImage{PhotoID: "p", Pixels: img, Width: w, Height: h, ColorSpace: "srgb"}
}

func TestEmptyActiveIsPassthrough(t *testing.T) {
	s := New(config.EffectConfig{})
	in := solidImage(4, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	out := s.Apply(in)
	if out.Pixels != in.Pixels {
		t.Fatal("expected zero-copy pass-through for empty active list")
	}
}

func TestSequentialSelectionCyclesDeterministically(t *testing.T) {
	s := New(config.EffectConfig{Active: []string{"grayscale", "sepia"}, Selection: config.SelectionSequential})
	img := solidImage(2, 2, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	first := s.pick("a")
	second := s.pick("a")
	third := s.pick("a")
	if first != "grayscale" || second != "sepia" || third != "grayscale" {
		t.Fatalf("sequential cycle = %v %v %v, want grayscale sepia grayscale", first, second, third)
	}
	_ = img
}

func TestRandomSelectionDeterministicPerPhotoID(t *testing.T) {
	s := New(config.EffectConfig{Active: []string{"grayscale", "sepia", "vignette"}, Selection: config.SelectionRandom})
	a1 := s.pick("photo-a")
	a2 := s.pick("photo-a")
	if a1 != a2 {
		t.Fatalf("random selection not deterministic for same photo id: %q vs %q", a1, a2)
	}
}

func TestUnknownKindPassesThrough(t *testing.T) {
	s := New(config.EffectConfig{Active: []string{"not-a-real-effect"}, Selection: config.SelectionSequential})
	in := solidImage(2, 2, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	out := s.Apply(in)
	if out.Pixels != in.Pixels {
		t.Fatal("unknown effect kind should pass through unchanged")
	}
}

func TestGrayscalePreservesDimensionsAndID(t *testing.T) {
	s := New(config.EffectConfig{Active: []string{"grayscale"}, Selection: config.SelectionSequential})
	in := solidImage(5, 3, color.RGBA{R: 100, G: 150, B: 200, A: 255})
	out := s.Apply(in)
	if out.PhotoID != in.PhotoID {
		t.Fatalf("PhotoID changed: %q vs %q", out.PhotoID, in.PhotoID)
	}
	if out.Pixels.Bounds() != in.Pixels.Bounds() {
		t.Fatalf("bounds changed: %v vs %v", out.Pixels.Bounds(), in.Pixels.Bounds())
	}
}
