// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package runtime wires Components A through G into the running
// process: inventory deltas flow into the playlist, the playlist feeds
// the loader, the loader feeds the effect stage and then the viewer,
// the sleep scheduler drives the viewer's awake/asleep state, and the
// control channel drives the sleep scheduler (spec.md §5 data-flow
// diagram). It also owns the shutdown sequencing every goroutine group
// participates in.
package runtime

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumaframe/frame/internal/clock"
	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/control"
	"github.com/lumaframe/frame/internal/effect"
	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/inventory"
	"github.com/lumaframe/frame/internal/loader"
	"github.com/lumaframe/frame/internal/logging"
	"github.com/lumaframe/frame/internal/playlist"
	"github.com/lumaframe/frame/internal/sleep"
	"github.com/lumaframe/frame/internal/viewer"
	"github.com/lumaframe/frame/internal/viewer/gpu"
	_ "github.com/lumaframe/frame/internal/viewer/gpu/software"
	"github.com/lumaframe/frame/internal/viewer/mat"
)

// tickInterval is how often the sleep scheduler recomputes its state
// from wall-clock time (spec.md §4.6: "at each wall-clock tick").
const tickInterval = 10 * time.Second

// Options configures a Run beyond what Settings alone carries, for CLI
// flags that override or augment normal startup (spec.md §6 CLI).
type Options struct {
	GPUBackend   string // defaults to "software"
	PlaylistSeed *uint64
	ShowGreeting bool
}

// Run constructs the full pipeline from cfg and blocks until ctx is
// cancelled or a fatal component error occurs. The returned error, if
// any, carries an errs.Kind suitable for errs.Kind.ExitCode().
func Run(ctx context.Context, cfg config.Settings, opts Options) error {
	logger := logging.Logger()

	inv := inventory.New(cfg.PhotoLibraryPath)

	var playlistOpts []playlist.Option
	seed := cfg.StartupShuffleSeed
	if opts.PlaylistSeed != nil {
		seed = opts.PlaylistSeed
	}
	if seed != nil {
		playlistOpts = append(playlistOpts, playlist.WithSeed(*seed))
	}
	pl := playlist.New(cfg.NewMultiplicity, cfg.HalfLife, playlistOpts...)

	canvasMax := int(float64(maxInt(cfg.Display.WidthPx, cfg.Display.HeightPx)) * cfg.Oversample)
	maxUpscale := 1.0
	if len(cfg.Matting.Active) > 0 {
		maxUpscale = cfg.Matting.Active[0].MaxUpscaleFactor
	}
	ld := loader.New(cfg.LoaderMaxConcurrentDecodes, canvasMax, maxUpscale)

	effectStage := effect.New(cfg.PhotoEffect)

	backend := opts.GPUBackend
	if backend == "" {
		backend = "software"
	}
	dev, err := gpu.Open(backend)
	if err != nil {
		return errs.New(errs.GPUInitFailure, "", fmt.Errorf("open gpu backend %q: %w", backend, err))
	}
	defer dev.Destroy()

	backdrops, err := loadConfiguredBackdrops(cfg)
	if err != nil {
		logger.Warn("runtime: fixed-image backdrop preload failed, continuing without it", "error", err)
		backdrops = nil
	}

	invalidatingAdapter := playlistInvalidator{pl}
	vw := viewer.New(cfg, dev, invalidatingAdapter, backdrops)

	sleepSched, err := sleep.New(cfg.SleepMode, clock.System{}, vw)
	if err != nil {
		return err
	}

	var ctl *control.Server
	if cfg.ControlSocketPath != "" {
		ctl, err = control.Listen(cfg.ControlSocketPath, sleepSched)
		if err != nil {
			logger.Warn("runtime: control channel unavailable, continuing without it",
				"path", cfg.ControlSocketPath, "error", err)
			ctl = nil
		}
	}

	deltas := make(chan inventory.Delta, 64)
	prepared := make(chan loader.PreparedImage, cfg.ViewerPreloadCount)
	effected := make(chan loader.PreparedImage, cfg.ViewerPreloadCount)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return inv.Run(gctx, deltas)
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case d, ok := <-deltas:
				if !ok {
					return nil
				}
				pl.ApplyDelta(d)
			}
		}
	})

	g.Go(func() error {
		ld.Run(gctx, pl, prepared)
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case img, ok := <-prepared:
				if !ok {
					return nil
				}
				out := effectStage.Apply(img)
				select {
				case effected <- out:
				case <-gctx.Done():
					return nil
				}
			}
		}
	})

	if opts.ShowGreeting {
		vw.ShowGreeting()
	}
	g.Go(func() error {
		vw.Run(gctx, effected, pl.MarkDisplayed)
		return nil
	})

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				sleepSched.Tick()
			}
		}
	})

	if ctl != nil {
		g.Go(func() error {
			ctl.Serve()
			return nil
		})
		defer ctl.Close()
	}

	return g.Wait()
}

// loadConfiguredBackdrops preloads every fixed-image mat style's
// backdrop paths at canvas resolution (spec.md §4.5 memory budgeting:
// "Fixed-image backdrops are decoded once at startup").
func loadConfiguredBackdrops(cfg config.Settings) (*mat.BackdropCache, error) {
	var paths []string
	fit := "cover"
	for _, m := range cfg.Matting.Active {
		if m.Kind == "fixed-image" {
			paths = append(paths, m.Paths...)
			if m.Fit != "" {
				fit = m.Fit
			}
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return mat.LoadBackdrops(paths, cfg.Display.WidthPx, cfg.Display.HeightPx, fit)
}

// playlistInvalidator adapts *playlist.Manager to viewer.Invalidator.
type playlistInvalidator struct{ pl *playlist.Manager }

func (p playlistInvalidator) Invalidate(id string, kind errs.Kind) { p.pl.Invalidate(id, kind) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
