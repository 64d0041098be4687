package gpu

import (
	"errors"
	"time"
)

// Resource is the base lifetime contract every GPU-owned object shares
// (hal's Resource pattern).
type Resource interface {
	Destroy()
}

// Texture is a GPU texture resource (hal.Texture, narrowed).
type Texture interface {
	Resource
	Size() Extent3D
}

// Buffer is a GPU buffer resource (hal.Buffer, narrowed).
type Buffer interface {
	Resource
}

// Fence synchronizes CPU/GPU completion (hal.Fence).
type Fence interface {
	Resource
	// Wait blocks until the fence reaches value or timeout elapses,
	// returning whether it reached that value.
	Wait(value uint64, timeout time.Duration) bool
	Signal(value uint64)
}

// Queue submits work and performs immediate writes (hal.Queue, narrowed
// to what the viewer's upload path needs).
type Queue interface {
	// WriteTexture copies data into dst per layout/size, honoring
	// BytesPerRow alignment (spec.md §4.5 step 3).
	WriteTexture(dst *ImageCopyTexture, data []byte, layout *ImageDataLayout, size *Extent3D) error
	// Submit signals fence with value once submitted work completes.
	Submit(fence Fence, value uint64) error
}

// Device creates GPU resources (hal.Device, narrowed).
type Device interface {
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateFence() (Fence, error)
	Queue() Queue
	Destroy()
}

// ErrNoBackends is returned when Open is asked for a backend that was
// never registered.
var ErrNoBackends = errors.New("gpu: no backend registered with that name")

type factory func() (Device, error)

var registry = map[string]factory{}

// Register adds a named backend factory. Backend packages call this
// from an init(), keeping gpu free of an import on any specific backend.
func Register(name string, f factory) {
	registry[name] = f
}

// Open opens the named backend, returning ErrNoBackends if it was never
// registered. The error is unclassified here; internal/runtime wraps it
// as GPUInitFailure (spec.md §6 exit code 4).
func Open(name string) (Device, error) {
	f, ok := registry[name]
	if !ok {
		return nil, ErrNoBackends
	}
	return f()
}
