package software

import (
	"testing"
	"time"

	"github.com/lumaframe/frame/internal/viewer/gpu"
)

func openDevice(t *testing.T) *Device {
	t.Helper()
	d, err := gpu.Open("software")
	if err != nil {
		t.Fatalf("Open(software): %v", err)
	}
	dev, ok := d.(*Device)
	if !ok {
		t.Fatalf("Open(software) returned %T, want *Device", d)
	}
	return dev
}

func TestWriteTextureCopiesRowByRow(t *testing.T) {
	dev := openDevice(t)
	tex, err := dev.CreateTexture(&gpu.TextureDescriptor{
		Size:   gpu.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 1},
		Format: gpu.FormatRGBA8Unorm,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	bytesPerRow := gpu.AlignRowBytes(4, 4)
	data := make([]byte, bytesPerRow*2)
	for row := 0; row < 2; row++ {
		for px := 0; px < 4; px++ {
			off := int(bytesPerRow)*row + px*4
			data[off] = byte(row*10 + px) // R channel marks position
			data[off+3] = 255
		}
	}

	err = dev.Queue().WriteTexture(
		&gpu.ImageCopyTexture{Texture: tex},
		data,
		&gpu.ImageDataLayout{BytesPerRow: bytesPerRow},
		&gpu.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 1},
	)
	if err != nil {
		t.Fatalf("WriteTexture: %v", err)
	}

	pixels := tex.(*Texture).Pixels()
	if got := pixels[0]; got != 0 {
		t.Errorf("pixel (0,0).R = %d, want 0", got)
	}
	if got := pixels[1*16+0]; got != 10 { // row 1, px 0, dstStride=4*4=16
		t.Errorf("pixel (0,1).R = %d, want 10", got)
	}
}

func TestFenceWaitReflectsSignal(t *testing.T) {
	dev := openDevice(t)
	fence, err := dev.CreateFence()
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	if fence.Wait(1, time.Millisecond) {
		t.Fatal("fence reports reached before Submit")
	}
	if err := dev.Queue().Submit(fence, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !fence.Wait(1, time.Millisecond) {
		t.Fatal("fence does not report reached after Submit")
	}
}

func TestOpenUnknownBackendFails(t *testing.T) {
	_, err := gpu.Open("nonexistent-backend")
	if err == nil {
		t.Fatal("expected an error opening an unregistered backend")
	}
}
