// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package effect implements Component D: an optional, per-slide pixel
// transform stage between the loader and the viewer (spec.md §4.4).
//
// Effects are modelled as a tagged variant plus a small dispatch table
// (spec.md §9), avoiding an interface-per-effect hierarchy.
package effect

import (
	"hash/fnv"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/loader"
	"github.com/lumaframe/frame/internal/logging"
)

// kindFunc applies a named effect to img using a per-photo seeded RNG.
// It never returns an error: failure is "return the input unchanged."
type kindFunc func(img loader.PreparedImage, rng *rand.Rand) loader.PreparedImage

var dispatch = map[string]kindFunc{
	"grayscale": applyGrayscale,
	"sepia":     applySepia,
	"vignette":  applyVignette,
}

// Stage is D: zero-copy pass-through when Active is empty.
type Stage struct {
	active    []string
	selection config.Selection
	logger    *slog.Logger

	mu   sync.Mutex
	next int // sequential cursor
}

// New constructs a Stage from the configured photo-effect block.
func New(cfg config.EffectConfig) *Stage {
	return &Stage{
		active:    cfg.Active,
		selection: cfg.Selection,
		logger:    logging.Logger(),
	}
}

// Apply transforms img per the configured selection policy. Unknown or
// panicking effects log a warning on each call and return the input
// unchanged; D never
// blocks the pipeline on a bad effect (spec.md §4.4).
func (s *Stage) Apply(img loader.PreparedImage) (result loader.PreparedImage) {
	if len(s.active) == 0 {
		return img
	}

	kind := s.pick(img.PhotoID)
	fn, ok := dispatch[kind]
	if !ok {
		s.logger.Warn("effect: unknown kind, passing through", "kind", kind, "photo", img.PhotoID)
		return img
	}

	result = img
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("effect: panic, passing through", "kind", kind, "photo", img.PhotoID, "panic", r)
			result = img
		}
	}()
	return fn(img, rngForPhoto(img.PhotoID))
}

func (s *Stage) pick(photoID string) string {
	if s.selection == config.SelectionRandom {
		rng := rngForPhoto(photoID)
		return s.active[rng.IntN(len(s.active))]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kind := s.active[s.next%len(s.active)]
	s.next++
	return kind
}

// rngForPhoto derives a deterministic seed from a PhotoRef.id, so effect
// randomness is reproducible for the same photo (spec.md §4.4).
func rngForPhoto(id string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func applyGrayscale(img loader.PreparedImage, _ *rand.Rand) loader.PreparedImage {
	out := image.NewRGBA(img.Pixels.Bounds())
	b := img.Pixels.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.Pixels.At(x, y)))
		}
	}
	img.Pixels = out
	return img
}

func applySepia(img loader.PreparedImage, _ *rand.Rand) loader.PreparedImage {
	src := img.Pixels
	out := image.NewRGBA(src.Bounds())
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.At(x, y).RGBA()
			rf, gf, bf := float64(r>>8), float64(g>>8), float64(bl>>8)
			tr := clampByte(0.393*rf + 0.769*gf + 0.189*bf)
			tg := clampByte(0.349*rf + 0.686*gf + 0.168*bf)
			tb := clampByte(0.272*rf + 0.534*gf + 0.131*bf)
			out.Set(x, y, color.RGBA{R: tr, G: tg, B: tb, A: uint8(a >> 8)})
		}
	}
	img.Pixels = out
	return img
}

// applyVignette darkens the corners by a seeded random intensity, kept
// deterministic per-photo per spec.md §4.4's randomness requirement.
func applyVignette(img loader.PreparedImage, rng *rand.Rand) loader.PreparedImage {
	src := img.Pixels
	b := src.Bounds()
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	maxDist := cx*cx + cy*cy
	intensity := 0.2 + 0.3*rng.Float64()

	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			dist := (dx*dx + dy*dy) / maxDist
			factor := 1 - intensity*dist
			r, g, bl, a := src.At(x, y).RGBA()
			out.Set(x, y, color.RGBA{
				R: clampByte(float64(r>>8) * factor),
				G: clampByte(float64(g>>8) * factor),
				B: clampByte(float64(bl>>8) * factor),
				A: uint8(a >> 8),
			})
		}
	}
	img.Pixels = out
	return img
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
