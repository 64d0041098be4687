// Package loader implements Component C: it converts a PhotoRef into a
// PreparedImage with bounded concurrency (spec.md §4.3).
package loader

import "image"

// PreparedImage is C's output: a decoded, oriented, size-bounded RGBA8
// buffer, optionally rewritten in place by Component D (spec.md §3).
type PreparedImage struct {
	PhotoID    string
	Pixels     *image.RGBA
	Width      int
	Height     int
	ColorSpace string
}
