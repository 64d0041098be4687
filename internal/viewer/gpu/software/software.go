// Package software is the default GPU backend: a CPU-backed
// implementation of gpu.Device with real pixel storage and fence/queue
// bookkeeping.
//
// It exists for testability without a physical GPU driver, and a safe,
// always-available path when a real backend can't be opened. On kiosk
// hardware with no usable GPU at all, Open still returns a Device
// successfully here — the "safe error" spec.md §1 requires is instead
// surfaced by gpu.Open's ErrNoBackends when an unrecognized or
// unavailable backend NAME is requested.
package software

import (
	"sync/atomic"
	"time"

	"github.com/lumaframe/frame/internal/viewer/gpu"
)

func init() {
	gpu.Register("software", func() (gpu.Device, error) {
		return &Device{queue: &Queue{}}, nil
	})
}

// Device implements gpu.Device with real pixel storage.
type Device struct {
	queue *Queue
}

// CreateBuffer allocates real backing storage.
func (d *Device) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	return &Buffer{data: make([]byte, desc.Size)}, nil
}

// CreateTexture allocates real pixel storage sized for RGBA8.
func (d *Device) CreateTexture(desc *gpu.TextureDescriptor) (gpu.Texture, error) {
	const bytesPerPixel = 4
	size := uint64(desc.Size.Width) * uint64(desc.Size.Height) * uint64(desc.Size.DepthOrArrayLayers) * bytesPerPixel
	return &Texture{
		data:   make([]byte, size),
		size:   desc.Size,
		format: desc.Format,
	}, nil
}

// CreateFence creates an atomic-counter fence (hal/noop.Fence).
func (d *Device) CreateFence() (gpu.Fence, error) {
	return &Fence{}, nil
}

// Queue returns the device's single queue.
func (d *Device) Queue() gpu.Queue { return d.queue }

// Destroy is a no-op; Go's GC reclaims the backing slices.
func (d *Device) Destroy() {}

// Buffer implements gpu.Buffer with a plain byte slice.
type Buffer struct {
	data []byte
}

// Destroy is a no-op.
func (b *Buffer) Destroy() {}

// Texture implements gpu.Texture with a plain byte slice, addressable by
// row so upload.go's row-by-row staging copy can be read back in tests.
type Texture struct {
	data   []byte
	size   gpu.Extent3D
	format gpu.TextureFormat
}

// Destroy is a no-op.
func (t *Texture) Destroy() {}

// Size returns the texture's dimensions.
func (t *Texture) Size() gpu.Extent3D { return t.size }

// Pixels exposes the raw RGBA8 storage for readback (tests only; the
// viewer never reads a texture back after upload).
func (t *Texture) Pixels() []byte { return t.data }

// Fence implements gpu.Fence with an atomic counter (hal/noop.Fence).
type Fence struct {
	value atomic.Uint64
}

// Destroy is a no-op.
func (f *Fence) Destroy() {}

// Wait reports whether the fence has reached value; the software
// backend completes work synchronously, so this never actually blocks.
func (f *Fence) Wait(value uint64, _ time.Duration) bool {
	return f.value.Load() >= value
}

// Signal sets the fence's reached value.
func (f *Fence) Signal(value uint64) { f.value.Store(value) }

// Queue implements gpu.Queue with an immediate, synchronous copy into
// the destination texture's backing storage.
type Queue struct{}

// WriteTexture copies data into dst row by row, honoring BytesPerRow
// (spec.md §4.5 step 3: "copies per row").
func (q *Queue) WriteTexture(dst *gpu.ImageCopyTexture, data []byte, layout *gpu.ImageDataLayout, size *gpu.Extent3D) error {
	tex, ok := dst.Texture.(*Texture)
	if !ok {
		return nil
	}
	const bytesPerPixel = 4
	dstStride := int(tex.size.Width) * bytesPerPixel
	srcStride := int(layout.BytesPerRow)
	rowBytes := int(size.Width) * bytesPerPixel

	for row := 0; row < int(size.Height); row++ {
		srcOff := int(layout.Offset) + row*srcStride
		dstY := int(dst.Origin.Y) + row
		dstOff := dstY*dstStride + int(dst.Origin.X)*bytesPerPixel
		if srcOff+rowBytes > len(data) || dstOff+rowBytes > len(tex.data) {
			continue
		}
		copy(tex.data[dstOff:dstOff+rowBytes], data[srcOff:srcOff+rowBytes])
	}
	return nil
}

// Submit signals fence immediately: the software backend has no
// asynchronous GPU queue to wait on.
func (q *Queue) Submit(fence gpu.Fence, value uint64) error {
	if fence != nil {
		fence.Signal(value)
	}
	return nil
}
