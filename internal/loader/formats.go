package loader

// Blank-import every decoder spec.md §4.1 lists as a supported library
// extension. JPEG, PNG, and GIF register via the standard library;
// WebP, BMP, and TIFF are filled in from golang.org/x/image, the same
// package awused-aw-man, dixieflatline76-Spice, and gioverse-chat pull
// in for exactly this purpose.
import (
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)
