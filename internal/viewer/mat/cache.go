package mat

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// BackdropCache holds fixed-image mat backdrops, decoded once at startup
// at canvas resolution and treated as immutable afterward (spec.md §4.5
// memory budgeting: "Fixed-image backdrops are decoded once at startup
// at canvas resolution and cached indefinitely").
type BackdropCache struct {
	images map[string]*image.RGBA
}

// LoadBackdrops decodes each path at canvasW×canvasH using the
// requested fit mode ("cover", "contain", or "stretch"). Grounded on
// github.com/disintegration/imaging's Fill/Fit helpers, the same
// library internal/loader uses for photo decoding.
func LoadBackdrops(paths []string, canvasW, canvasH int, fit string) (*BackdropCache, error) {
	cache := &BackdropCache{images: make(map[string]*image.RGBA, len(paths))}
	for _, p := range paths {
		img, err := imaging.Open(p, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("mat: load backdrop %s: %w", p, err)
		}

		var fitted *image.NRGBA
		switch fit {
		case "contain":
			fitted = imaging.Fit(img, canvasW, canvasH, imaging.Lanczos)
		case "stretch":
			fitted = imaging.Resize(img, canvasW, canvasH, imaging.Lanczos)
		default: // "cover"
			fitted = imaging.Fill(img, canvasW, canvasH, imaging.Center, imaging.Lanczos)
		}
		cache.images[p] = nrgbaToRGBA(fitted)
	}
	return cache, nil
}

func (c *BackdropCache) get(path string) (*image.RGBA, bool) {
	img, ok := c.images[path]
	return img, ok
}

func nrgbaToRGBA(img *image.NRGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

var emptyCache = &BackdropCache{images: map[string]*image.RGBA{}}

// noBackdrops returns a read-only, empty cache for configurations that
// don't use the fixed-image mat style.
func noBackdrops() *BackdropCache { return emptyCache }
