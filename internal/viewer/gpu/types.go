// Package gpu is the viewer's GPU device abstraction: Device, Queue,
// Texture, Buffer, and Fence, plus the staging-buffer alignment rule
// upload.go builds on.
//
// A CPU-backed software backend is the default, driver-free
// implementation. Real hardware backends (Vulkan/DX12/GLES/Metal) are
// out of this repo's scope: spec.md §1 excludes "the exact visual
// formulas of specific mat/effect/transition variants" and
// multi-display/networked rendering, and a kiosk's GPU init failure
// path only needs to be exercised, not driven against real silicon. See
// DESIGN.md for the drop rationale.
package gpu

// TextureFormat enumerates the pixel formats the viewer deals in. The
// pipeline only ever produces RGBA8 (spec.md §3, PreparedImage), so this
// is a narrow format table.
type TextureFormat int

const (
	FormatRGBA8Unorm TextureFormat = iota
	FormatRGBA8UnormSRGB
)

// Origin3D is a 3D origin point (hal/command.go Origin3D).
type Origin3D struct {
	X, Y, Z uint32
}

// Extent3D is a 3D extent (hal/command.go Extent3D).
type Extent3D struct {
	Width              uint32
	Height             uint32
	DepthOrArrayLayers uint32
}

// ImageDataLayout describes the layout of image data in a buffer
// (hal/command.go ImageDataLayout). BytesPerRow must be a multiple of
// RowAlignment for texture copies; spec.md §4.5 step 3 calls this
// "aligned_row_bytes".
type ImageDataLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// ImageCopyTexture specifies a texture location for a copy
// (hal/command.go ImageCopyTexture).
type ImageCopyTexture struct {
	Texture  Texture
	MipLevel uint32
	Origin   Origin3D
}

// TextureDescriptor configures texture creation.
type TextureDescriptor struct {
	Label  string
	Size   Extent3D
	Format TextureFormat
}

// BufferDescriptor configures buffer creation.
type BufferDescriptor struct {
	Label            string
	Size             uint64
	MappedAtCreation bool
}

// RowAlignment is the GPU row-stride alignment rule: BytesPerRow must
// be a multiple of 256.
const RowAlignment = 256

// AlignRowBytes rounds width*bytesPerPixel up to the next multiple of
// RowAlignment, the size upload.go allocates each staging buffer row to.
func AlignRowBytes(width int, bytesPerPixel int) uint32 {
	raw := width * bytesPerPixel
	if raw <= 0 {
		return 0
	}
	aligned := ((raw + RowAlignment - 1) / RowAlignment) * RowAlignment
	return uint32(aligned)
}
