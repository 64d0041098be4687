// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

package loader

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/inventory"
	"github.com/lumaframe/frame/internal/logging"
)

// PlaylistSource is the subset of playlist.Manager the loader depends on.
type PlaylistSource interface {
	RequestNext(ctx context.Context) (inventory.PhotoRef, error)
	IsLive(id string) bool
	Invalidate(id string, kind errs.Kind)
}

// Loader implements Component C.
type Loader struct {
	MaxConcurrent int
	CanvasMax     int
	MaxUpscale    float64
	Logger        *slog.Logger

	sem *semaphore.Weighted
}

// New constructs a Loader bounded to spec.md's
// loader-max-concurrent-decodes.
func New(maxConcurrent, canvasMax int, maxUpscale float64) *Loader {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Loader{
		MaxConcurrent: maxConcurrent,
		CanvasMax:     canvasMax,
		MaxUpscale:    maxUpscale,
		Logger:        logging.Logger(),
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Run pulls photo requests from src, decodes them with bounded
// concurrency, and sends completed PreparedImages to out. It returns
// when ctx is cancelled or src stops producing requests.
//
// Backpressure: decodes in flight never block new requests from being
// accepted beyond MaxConcurrent; a completed image instead waits on the
// send to out (spec.md §4.3).
func (l *Loader) Run(ctx context.Context, src PlaylistSource, out chan<- PreparedImage) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		ref, err := src.RequestNext(ctx)
		if err != nil {
			return // shutdown: ctx cancelled
		}

		if err := l.sem.Acquire(ctx, 1); err != nil {
			return
		}

		wg.Add(1)
		go func(id, path string) {
			defer wg.Done()
			defer l.sem.Release(1)

			img, err := decode(path, l.CanvasMax, l.MaxUpscale)
			if err != nil {
				kind := errs.DecodePermanent
				if e, ok := asClassified(err); ok {
					kind = e.Kind
				}
				l.Logger.Warn("loader: decode failed", "photo", id, "error", err)
				src.Invalidate(id, kind)
				return
			}
			img.PhotoID = id

			if !src.IsLive(id) {
				return // removed while decoding: drop without delivery
			}

			select {
			case out <- img:
			case <-ctx.Done():
			}
		}(ref.ID, ref.Path)
	}
}

func asClassified(err error) (*errs.Error, bool) {
	e, ok := err.(*errs.Error)
	return e, ok
}
