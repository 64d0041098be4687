// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

package mat

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/loader"
	"github.com/lumaframe/frame/internal/logging"
)

// Pool is the Viewer's matting worker pool (spec.md §4.5 step 2): a
// fixed number of CPU workers, one per logical core, each composing a
// MatCanvas from a PreparedImage. Bounding is done the way
// internal/loader bounds decode concurrency, but with a plain
// semaphore channel rather than golang.org/x/sync/semaphore since the
// unit of work here is never cancelled mid-flight — a mat is either
// composed or it isn't.
type Pool struct {
	canvasW, canvasH int
	entries          []config.MattingEntry
	selection        config.Selection
	backdrops        *BackdropCache

	sem    chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	cursor int // next index for sequential mat-style selection
	warned map[string]bool
}

// NewPool constructs a pool sized to runtime.NumCPU() that reads
// fixed-image backdrops from the already-loaded backdrops cache (an
// empty cache when backdrops is nil).
func NewPool(canvasW, canvasH int, entries []config.MattingEntry, selection config.Selection, backdrops *BackdropCache) *Pool {
	if backdrops == nil {
		backdrops = noBackdrops()
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		canvasW:   canvasW,
		canvasH:   canvasH,
		entries:   entries,
		selection: selection,
		backdrops: backdrops,
		sem:       make(chan struct{}, workers),
		logger:    logging.Logger(),
		warned:    make(map[string]bool),
	}
}

// Compose blocks until a worker slot is free (or ctx is cancelled),
// then composes a MatCanvas for img. On any style failure it falls back
// to a solid black mat and logs the failure once per photo id (spec.md
// §4.5: "Matting failure for a given photo: fall back to a black
// fixed-color mat; log the failure once per photo id, not on every
// redisplay").
func (p *Pool) Compose(ctx context.Context, img *loader.PreparedImage) (*Canvas, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.sem }()

	entry, ok := p.pickEntry(img.PhotoID)
	if !ok {
		return blackFallback(img, p.canvasW, p.canvasH), nil
	}

	canvas, err := p.applyStyle(entry, img)
	if err != nil {
		p.warnOnce(img.PhotoID, entry.Kind, err)
		return blackFallback(img, p.canvasW, p.canvasH), nil
	}
	return canvas, nil
}

// applyStyle runs the dispatched style func, recovering from any panic
// the same way internal/effect recovers from effect panics: the
// pipeline must never block or crash on a single bad photo.
func (p *Pool) applyStyle(entry config.MattingEntry, img *loader.PreparedImage) (canvas *Canvas, err error) {
	fn, ok := styleDispatch[entry.Kind]
	if !ok {
		return nil, fmt.Errorf("mat: unknown style kind %q", entry.Kind)
	}

	defer func() {
		if r := recover(); r != nil {
			canvas = nil
			err = fmt.Errorf("mat: style %q panicked: %v", entry.Kind, r)
		}
	}()

	var rng *rand.Rand
	if p.selection == config.SelectionRandom {
		rng = rngForPhoto(img.PhotoID)
	}
	return fn(img, p.canvasW, p.canvasH, entry, p.backdrops, rng)
}

// pickEntry selects among matting.active by matting.selection:
// sequential advances a shared round-robin cursor; random draws a
// per-photo deterministic choice so redisplaying the same photo
// without a config change keeps its mat stable.
func (p *Pool) pickEntry(photoID string) (config.MattingEntry, bool) {
	if len(p.entries) == 0 {
		return config.MattingEntry{}, false
	}
	if p.selection == config.SelectionRandom {
		idx := int(rngForPhoto(photoID).Uint64() % uint64(len(p.entries)))
		return p.entries[idx], true
	}

	p.mu.Lock()
	idx := p.cursor % len(p.entries)
	p.cursor++
	p.mu.Unlock()
	return p.entries[idx], true
}

func (p *Pool) warnOnce(photoID, kind string, err error) {
	p.mu.Lock()
	already := p.warned[photoID]
	p.warned[photoID] = true
	p.mu.Unlock()
	if already {
		return
	}
	p.logger.Warn("matting failed, falling back to black mat",
		"photo_id", photoID, "style", kind, "error", err)
}
