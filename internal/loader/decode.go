// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

package loader

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"

	"github.com/lumaframe/frame/internal/errs"
)

// decode loads path, corrects orientation, and scales it so neither
// dimension exceeds canvasMax, never upscaling by more than maxUpscale
// (spec.md §4.3). Orientation correction is grounded on
// github.com/disintegration/imaging, which auto-rotates on Open based on
// embedded EXIF orientation.
func decode(path string, canvasMax int, maxUpscale float64) (PreparedImage, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return PreparedImage{}, classify(err)
	}

	bounds := img.Bounds()
	w, h := computeTargetSize(bounds.Dx(), bounds.Dy(), canvasMax, maxUpscale)
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	rgba := imageToRGBA(img)
	return PreparedImage{
		Pixels:     rgba,
		Width:      rgba.Bounds().Dx(),
		Height:     rgba.Bounds().Dy(),
		ColorSpace: "srgb",
	}, nil
}

// computeTargetSize returns the output dimensions for a decode, preserving
// aspect ratio: scaled down so max(width, height) <= canvasMax, never
// scaled up past maxUpscale times the source size.
func computeTargetSize(srcW, srcH, canvasMax int, maxUpscale float64) (int, int) {
	if srcW <= 0 || srcH <= 0 || canvasMax <= 0 {
		return srcW, srcH
	}
	if maxUpscale < 1 {
		maxUpscale = 1
	}

	maxSrc := srcW
	if srcH > maxSrc {
		maxSrc = srcH
	}

	scale := float64(canvasMax) / float64(maxSrc)
	if scale > maxUpscale {
		scale = maxUpscale
	}
	if scale <= 0 {
		scale = 1
	}

	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func imageToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.RGBAModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// classify maps a decode failure to DecodePermanent or DecodeTransient
// (spec.md §4.3, §7).
func classify(err error) *errs.Error {
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrDeadlineExceeded) {
		return errs.New(errs.DecodeTransient, "", err)
	}
	return errs.New(errs.DecodePermanent, "", fmt.Errorf("decode: %w", err))
}
