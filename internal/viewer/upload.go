// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

package viewer

import (
	"fmt"
	"time"

	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/viewer/gpu"
)

// uploadTimeout bounds how long a submission is awaited before the
// transfer is treated as an UploadTransient failure (spec.md §7).
const uploadTimeout = 2 * time.Second

// uploadMatCanvas runs the full upload sub-pipeline step 3 of spec.md
// §4.5 on the GPU thread: allocate a staging buffer sized to
// aligned_row_bytes × height, copy the MatCanvas into it row by row,
// submit the transfer, and only release the staging buffer once the
// GPU queue has signalled completion.
func uploadMatCanvas(th *gpuThread, dev gpu.Device, tex gpu.Texture, width, height int, pixels []byte) error {
	var uploadErr error

	th.call(func() {
		const bytesPerPixel = 4
		bytesPerRow := gpu.AlignRowBytes(width, bytesPerPixel)
		staging := make([]byte, int(bytesPerRow)*height)

		srcStride := width * bytesPerPixel
		for row := 0; row < height; row++ {
			srcOff := row * srcStride
			dstOff := row * int(bytesPerRow)
			if srcOff+srcStride > len(pixels) {
				break
			}
			copy(staging[dstOff:dstOff+srcStride], pixels[srcOff:srcOff+srcStride])
		}

		queue := dev.Queue()
		err := queue.WriteTexture(
			&gpu.ImageCopyTexture{Texture: tex},
			staging,
			&gpu.ImageDataLayout{BytesPerRow: bytesPerRow},
			&gpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		)
		if err != nil {
			uploadErr = errs.New(errs.UploadTransient, "", fmt.Errorf("write texture: %w", err))
			return
		}

		fence, err := dev.CreateFence()
		if err != nil {
			uploadErr = errs.New(errs.UploadTransient, "", fmt.Errorf("create fence: %w", err))
			return
		}
		defer fence.Destroy()

		if err := queue.Submit(fence, 1); err != nil {
			uploadErr = errs.New(errs.UploadTransient, "", fmt.Errorf("submit: %w", err))
			return
		}
		if !fence.Wait(1, uploadTimeout) {
			uploadErr = errs.New(errs.UploadTransient, "", fmt.Errorf("gpu: texture upload did not complete before timeout"))
			return
		}
		// staging goes out of scope (and is GC-eligible) only now that the
		// fence confirms the GPU queue has consumed it.
	})

	return uploadErr
}
