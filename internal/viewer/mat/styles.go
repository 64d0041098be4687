package mat

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"math/rand/v2"

	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/loader"
)

// styleFunc composes a Canvas for one slide. Errors trigger the
// black-mat fallback (spec.md §4.5 failure semantics: "Matting
// failure... fall back to a black fixed-color mat, log once per id").
type styleFunc func(img *loader.PreparedImage, canvasW, canvasH int, entry config.MattingEntry, backdrops *BackdropCache, rng *rand.Rand) (*Canvas, error)

var styleDispatch = map[string]styleFunc{
	"fixed-color": composeFixedColor,
	"blur":        composeBlur,
	"studio":      composeStudio,
	"fixed-image": composeFixedImage,
}

func composeFixedColor(img *loader.PreparedImage, canvasW, canvasH int, entry config.MattingEntry, _ *BackdropCache, rng *rand.Rand) (*Canvas, error) {
	c := newCanvas(canvasW, canvasH)
	col := pickColor(entry.Colors, entry.ColorSelection, rng, img.PhotoID)
	c.fill(col)
	drawCenteredFit(c, img, entry.MinimumMatPercentage, entry.MaxUpscaleFactor)
	return c, nil
}

// composeBlur uses a heavily downsampled, blurred copy of the photo
// itself as the backdrop — a common photo-frame mat treatment — then
// draws the sharp photo centered on top.
func composeBlur(img *loader.PreparedImage, canvasW, canvasH int, entry config.MattingEntry, _ *BackdropCache, _ *rand.Rand) (*Canvas, error) {
	c := newCanvas(canvasW, canvasH)
	sampleScale := entry.SampleScale
	if sampleScale <= 0 || sampleScale > 1 {
		sampleScale = 0.1
	}
	backdrop := boxBlurBackdrop(img, canvasW, canvasH, entry.Sigma, sampleScale)
	copy(c.Pixels, backdrop.Pixels)
	drawCenteredFit(c, img, entry.MinimumMatPercentage, entry.MaxUpscaleFactor)
	return c, nil
}

func composeStudio(img *loader.PreparedImage, canvasW, canvasH int, entry config.MattingEntry, _ *BackdropCache, rng *rand.Rand) (*Canvas, error) {
	c := newCanvas(canvasW, canvasH)
	var base color.RGBA
	if entry.PhotoAverage {
		// spec.md §9 open question: recompute per slide, not cached per id,
		// so library swaps never show a stale average color.
		base = averageColor(img)
	} else {
		base = pickColor(entry.Colors, entry.ColorSelection, rng, img.PhotoID)
	}
	c.fill(base)
	drawCenteredFit(c, img, entry.MinimumMatPercentage, entry.MaxUpscaleFactor)
	drawBevel(c, entry.BevelWidthPx, parseColorOrDefault(entry.BevelColor, color.RGBA{A: 255}))
	return c, nil
}

func composeFixedImage(img *loader.PreparedImage, canvasW, canvasH int, entry config.MattingEntry, backdrops *BackdropCache, rng *rand.Rand) (*Canvas, error) {
	if len(entry.Paths) == 0 {
		return nil, fmt.Errorf("mat: fixed-image style has no configured paths")
	}
	path := pickPath(entry.Paths, entry.PathSelection, rng, img.PhotoID)
	backdrop, ok := backdrops.get(path)
	if !ok {
		return nil, fmt.Errorf("mat: backdrop %s not found in cache", path)
	}
	c := newCanvas(canvasW, canvasH)
	copy(c.Pixels, backdrop.Pix)
	drawCenteredFit(c, img, entry.MinimumMatPercentage, entry.MaxUpscaleFactor)
	return c, nil
}

// blackFallback is the mat-failure fallback: a solid black canvas with
// the photo still centered so the slide remains legible.
func blackFallback(img *loader.PreparedImage, canvasW, canvasH int) *Canvas {
	c := newCanvas(canvasW, canvasH)
	c.fill(color.RGBA{A: 255})
	drawCenteredFit(c, img, 0, 1)
	return c
}

func pickColor(colors []string, sel config.Selection, rng *rand.Rand, photoID string) color.RGBA {
	if len(colors) == 0 {
		return color.RGBA{A: 255}
	}
	idx := pickIndex(len(colors), sel, rng, photoID)
	return parseColorOrDefault(colors[idx], color.RGBA{A: 255})
}

func pickPath(paths []string, sel config.Selection, rng *rand.Rand, photoID string) string {
	idx := pickIndex(len(paths), sel, rng, photoID)
	return paths[idx]
}

func pickIndex(n int, sel config.Selection, rng *rand.Rand, photoID string) int {
	if n <= 1 {
		return 0
	}
	if sel == config.SelectionRandom {
		r := rngForPhoto(photoID)
		if rng != nil {
			r = rng
		}
		return r.IntN(n)
	}
	// Sequential selection here is a per-photo deterministic pick (a hash
	// of the photo id); colors and paths are not cycled in order. The
	// Pool's cursor only chooses among matting.active entries.
	h := fnv.New32a()
	_, _ = h.Write([]byte(photoID))
	return int(h.Sum32()) % n
}

func rngForPhoto(id string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func parseColorOrDefault(hex string, fallback color.RGBA) color.RGBA {
	c, ok := parseHexColor(hex)
	if !ok {
		return fallback
	}
	return c
}

// parseHexColor parses "#rrggbb" or "rrggbb"; anything else is rejected.
func parseHexColor(s string) (color.RGBA, bool) {
	if len(s) == 7 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	var r, g, b int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}, true
}

func averageColor(img *loader.PreparedImage) color.RGBA {
	b := img.Pixels.Bounds()
	var rs, gs, bs, n uint64
	step := 4 // sample every 4th pixel; exact color accuracy is out of scope
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.Pixels.At(x, y).RGBA()
			rs += uint64(r >> 8)
			gs += uint64(g >> 8)
			bs += uint64(bl >> 8)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(rs / n), G: uint8(gs / n), B: uint8(bs / n), A: 255}
}
