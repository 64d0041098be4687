// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package mat implements the Viewer's matting sub-pipeline (spec.md
// §4.5 step 2): a pool of CPU workers that compose a full-screen
// MatCanvas from a PreparedImage, selecting among configured mat styles
// via the same tagged-variant dispatch pattern internal/effect uses.
package mat

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/lumaframe/frame/internal/loader"
)

// Canvas is a full-screen RGBA buffer, the viewer's MatCanvas
// (spec.md §3), owned solely by the viewer once composed.
type Canvas struct {
	Pixels []byte // RGBA8, row-major, stride = Width*4
	Width  int
	Height int
}

// newCanvas allocates a zeroed canvas of the given size.
func newCanvas(w, h int) *Canvas {
	return &Canvas{Pixels: make([]byte, w*h*4), Width: w, Height: h}
}

func (c *Canvas) asRGBA() *image.RGBA {
	return &image.RGBA{Pix: c.Pixels, Stride: c.Width * 4, Rect: image.Rect(0, 0, c.Width, c.Height)}
}

func (c *Canvas) fill(col color.RGBA) {
	draw.Draw(c.asRGBA(), c.asRGBA().Bounds(), &image.Uniform{C: col}, image.Point{}, draw.Src)
}

// drawCenteredFit draws src into dst, scaled to fit within the mat-inset
// rectangle while preserving aspect ratio (minimum_mat_percentage border
// on every side, spec.md §4.5 step 2).
func drawCenteredFit(dst *Canvas, src *loader.PreparedImage, minMatPercent, maxUpscale float64) {
	canvas := dst.asRGBA()
	inset := minMatPercent / 100
	availW := float64(dst.Width) * (1 - 2*inset)
	availH := float64(dst.Height) * (1 - 2*inset)

	scale := minFloat(availW/float64(src.Width), availH/float64(src.Height))
	if scale > maxUpscale && maxUpscale > 0 {
		scale = maxUpscale
	}
	outW := int(float64(src.Width) * scale)
	outH := int(float64(src.Height) * scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	x0 := (dst.Width - outW) / 2
	y0 := (dst.Height - outH) / 2
	destRect := image.Rect(x0, y0, x0+outW, y0+outH)

	nearestScaleDraw(canvas, destRect, src.Pixels)
}

// nearestScaleDraw performs a simple nearest-neighbor scaled blit. Mat
// composition's visual fidelity is out of this repo's scope (spec.md §1
// excludes "exact visual formulas of specific mat/effect/transition
// variants"); this just needs to place real pixels at the right
// position and size so upload/transition code has real data to move.
func nearestScaleDraw(dst *image.RGBA, destRect image.Rectangle, src *image.RGBA) {
	srcB := src.Bounds()
	sw, sh := srcB.Dx(), srcB.Dy()
	dw, dh := destRect.Dx(), destRect.Dy()
	if dw <= 0 || dh <= 0 || sw <= 0 || sh <= 0 {
		return
	}
	for y := 0; y < dh; y++ {
		sy := srcB.Min.Y + y*sh/dh
		for x := 0; x < dw; x++ {
			sx := srcB.Min.X + x*sw/dw
			dst.Set(destRect.Min.X+x, destRect.Min.Y+y, src.At(sx, sy))
		}
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// boxBlurBackdrop produces a full-canvas backdrop from a heavily
// downsampled, box-blurred copy of src: shrink to sampleScale of the
// canvas size, box-blur by sigma, then scale back up to fill the
// canvas. This is the CPU path for matting.blur.backend: cpu|neon
// (spec.md §6); exact blur visuals are out of this repo's scope
// (spec.md §1).
func boxBlurBackdrop(src *loader.PreparedImage, canvasW, canvasH int, sigma, sampleScale float64) *Canvas {
	sw := maxInt(1, int(float64(canvasW)*sampleScale))
	sh := maxInt(1, int(float64(canvasH)*sampleScale))

	small := image.NewRGBA(image.Rect(0, 0, sw, sh))
	nearestScaleDraw(small, small.Bounds(), src.Pixels)

	radius := maxInt(1, int(sigma*sampleScale))
	blurred := boxBlur(small, radius)

	out := newCanvas(canvasW, canvasH)
	nearestScaleDraw(out.asRGBA(), out.asRGBA().Bounds(), blurred)
	return out
}

// boxBlur runs a separable box blur of the given radius over img.
func boxBlur(img *image.RGBA, radius int) *image.RGBA {
	b := img.Bounds()
	tmp := image.NewRGBA(b)
	out := image.NewRGBA(b)

	boxBlurPass(img, tmp, radius, true)
	boxBlurPass(tmp, out, radius, false)
	return out
}

func boxBlurPass(src, dst *image.RGBA, radius int, horizontal bool) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var rs, gs, bs, as, n int
			if horizontal {
				for k := -radius; k <= radius; k++ {
					sx := clampInt(x+k, b.Min.X, b.Max.X-1)
					r, g, bl, a := src.At(sx, y).RGBA()
					rs += int(r >> 8)
					gs += int(g >> 8)
					bs += int(bl >> 8)
					as += int(a >> 8)
					n++
				}
			} else {
				for k := -radius; k <= radius; k++ {
					sy := clampInt(y+k, b.Min.Y, b.Max.Y-1)
					r, g, bl, a := src.At(x, sy).RGBA()
					rs += int(r >> 8)
					gs += int(g >> 8)
					bs += int(bl >> 8)
					as += int(a >> 8)
					n++
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8(rs / n), G: uint8(gs / n), B: uint8(bs / n), A: uint8(as / n),
			})
		}
	}
}

// drawBevel draws a simple raised-edge border of width px around the
// canvas edge in col, approximating the "studio" mat's bevel (spec.md
// §6 matting.studio.bevel-width-px/bevel-color). The weave texture
// (texture-strength, warp/weft-period-px) is a rendering refinement out
// of this repo's scope (spec.md §1).
func drawBevel(c *Canvas, widthPx float64, col color.RGBA) {
	w := int(widthPx)
	if w <= 0 {
		return
	}
	img := c.asRGBA()
	b := img.Bounds()
	for i := 0; i < w; i++ {
		drawRect(img, image.Rect(b.Min.X+i, b.Min.Y+i, b.Max.X-i, b.Max.Y-i), col)
	}
}

// drawRect strokes the 1px border of r in col.
func drawRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, col)
		img.SetRGBA(x, r.Max.Y-1, col)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, col)
		img.SetRGBA(r.Max.X-1, y, col)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
