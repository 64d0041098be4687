// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package viewer implements Component E (spec.md §4.5): it accepts
// PreparedImages, composes full-screen MatCanvases, uploads them to the
// GPU, runs transitions between slides, and exposes the small public
// contract internal/runtime drives (enqueue/on_displayed/set_sleep/
// show_greeting).
package viewer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/loader"
	"github.com/lumaframe/frame/internal/logging"
	"github.com/lumaframe/frame/internal/viewer/gpu"
	"github.com/lumaframe/frame/internal/viewer/mat"
	"github.com/lumaframe/frame/internal/viewer/transition"
)

// State is the Viewer's top-level mode (spec.md §4.5).
type State int

const (
	StateGreeting State = iota
	StateAwakeIdle
	StateAwakeTransitioning
	StateAsleep
)

// Invalidator lets the viewer push a failure back to the playlist the
// way internal/loader does (spec.md §4.5 failure semantics: "Upload
// failure: discard the MatCanvas, emit DecodeTransient for id, bounded
// retry via B, continue").
type Invalidator interface {
	Invalidate(id string, kind errs.Kind)
}

// slide is one prepared entry sitting in the preload queue or holding
// the current/next position.
type slide struct {
	img    loader.PreparedImage
	canvas *mat.Canvas
	tex    gpu.Texture
}

// Viewer drives Component E.
type Viewer struct {
	cfg    config.Settings
	dev    gpu.Device
	thread *gpuThread
	mats   *mat.Pool
	trans  *transition.Selector
	inv    Invalidator
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	preload     []slide
	current     *slide
	next        *slide
	overlay     *slide // greeting/sleep card, staged over current without destroying it
	run         *transition.Run
	currentSeen time.Time
	asleep      bool
	greetingAt  time.Time
	greetingMin time.Duration
	firstReady  bool

	wake chan struct{}
}

// New constructs a Viewer. dev must already be open (internal/runtime
// owns GPUInitFailure classification at startup, spec.md §6 exit 4).
func New(cfg config.Settings, dev gpu.Device, inv Invalidator, backdrops *mat.BackdropCache) *Viewer {
	canvasW, canvasH := cfg.Display.WidthPx, cfg.Display.HeightPx
	v := &Viewer{
		cfg:    cfg,
		dev:    dev,
		thread: newGPUThread(),
		mats:   mat.NewPool(canvasW, canvasH, cfg.Matting.Active, cfg.Matting.Selection, backdrops),
		trans:  transition.NewSelector(cfg.Transition.Active, cfg.Transition.Selection),
		inv:    inv,
		logger: logging.Logger(),
		state:  StateGreeting,
		wake:   make(chan struct{}, 1),
	}
	v.greetingMin = time.Duration(cfg.GreetingScreen.DurationSeconds * float64(time.Second))
	v.greetingAt = time.Now()
	return v
}

// ShowGreeting marks the greeting card visible; the first real slide is
// suppressed until both minimum_seconds has elapsed and a MatCanvas is
// ready (spec.md §4.5 show_greeting contract). The card is composed
// from greeting-screen's message/colors/font and staged as an overlay
// over whatever is already current.
func (v *Viewer) ShowGreeting() {
	canvas := mat.ComposeCard(v.cfg.Display.WidthPx, v.cfg.Display.HeightPx, v.cfg.GreetingScreen)
	ov := v.buildOverlaySlide(canvas)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateGreeting
	v.greetingAt = time.Now()
	v.firstReady = false
	v.swapOverlayLocked(ov)
}

// SetSleep transitions to/from Asleep (spec.md §4.5 set_sleep(state,
// reason) contract). Entering sleep does not drop the current slide;
// it stages a dimmed sleep card as an overlay and suppresses rendering
// beneath it (display power shell commands are internal/sleep's
// concern, not the viewer's). Waking clears the overlay, resuming the
// last real photo rather than losing it to the card. reason is carried
// only for logging — "startup", "schedule" or "override".
func (v *Viewer) SetSleep(asleep bool, reason string) {
	var ov *slide
	if asleep {
		canvas := mat.ComposeCard(v.cfg.Display.WidthPx, v.cfg.Display.HeightPx, v.cfg.SleepScreen)
		mat.DimCanvas(canvas, v.cfg.SleepMode.DimBrightness)
		ov = v.buildOverlaySlide(canvas)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.asleep == asleep {
		if ov != nil {
			ov.tex.Destroy()
		}
		return
	}
	v.asleep = asleep
	if asleep {
		v.state = StateAsleep
		if v.next != nil {
			v.next.tex.Destroy()
			v.next = nil
		}
		v.run = nil
		v.swapOverlayLocked(ov)
	} else {
		v.clearOverlayLocked()
		if v.current != nil {
			v.state = StateAwakeIdle
		}
	}
	v.logger.Info("viewer: sleep state changed", "asleep", asleep, "reason", reason)
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// buildOverlaySlide composes a GPU texture for a greeting/sleep card.
// It does GPU work without holding v.mu, mirroring stage()'s pattern of
// composing/uploading outside the lock and only swapping state under
// it. Returns nil on texture creation or upload failure, logged and
// otherwise non-fatal (the previous overlay, if any, stays in place).
func (v *Viewer) buildOverlaySlide(canvas *mat.Canvas) *slide {
	tex, err := v.dev.CreateTexture(&gpu.TextureDescriptor{
		Label:  "overlay",
		Size:   gpu.Extent3D{Width: uint32(canvas.Width), Height: uint32(canvas.Height), DepthOrArrayLayers: 1},
		Format: gpu.FormatRGBA8Unorm,
	})
	if err != nil {
		v.logger.Warn("viewer: overlay texture creation failed", "error", err)
		return nil
	}
	if err := uploadMatCanvas(v.thread, v.dev, tex, canvas.Width, canvas.Height, canvas.Pixels); err != nil {
		v.logger.Warn("viewer: overlay upload failed", "error", err)
		tex.Destroy()
		return nil
	}
	return &slide{canvas: canvas, tex: tex}
}

// swapOverlayLocked destroys any previously staged overlay and installs
// s (which may be nil) in its place. Caller must hold v.mu.
func (v *Viewer) swapOverlayLocked(s *slide) {
	if v.overlay != nil {
		v.overlay.tex.Destroy()
	}
	v.overlay = s
}

// clearOverlayLocked removes the staged overlay, if any. Caller must
// hold v.mu.
func (v *Viewer) clearOverlayLocked() {
	v.swapOverlayLocked(nil)
}

// OnDisplayed reports that a slide became fully visible at the end of
// the transition that revealed it, so the playlist can advance its
// bookkeeping (spec.md §4.5: "on_displayed(id): notifies B").
type OnDisplayed func(id string)

// Run pulls PreparedImages from in, composes and stages slides, and
// drives transitions until ctx is cancelled. onDisplayed is called once
// per slide when the transition that reveals it completes; the first
// slide shown after the greeting is promoted without a transition and
// is not reported.
func (v *Viewer) Run(ctx context.Context, in <-chan loader.PreparedImage, onDisplayed OnDisplayed) {
	defer v.thread.stop()

	dwell := time.Duration(v.cfg.DwellMS) * time.Millisecond
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case img, ok := <-in:
			if !ok {
				in = nil // input drained: keep ticking until ctx is cancelled
				continue
			}
			v.stage(ctx, img)

		case <-ticker.C:
			v.tick(dwell, onDisplayed)
		}
	}
}

// stage composes a MatCanvas and uploads it, enqueueing the result
// (spec.md §4.5 "Memory budgeting": preload queue bounded to
// viewer_preload_count).
func (v *Viewer) stage(ctx context.Context, img loader.PreparedImage) {
	canvas, err := v.mats.Compose(ctx, &img)
	if err != nil {
		// Compose itself only returns an error on ctx cancellation; style
		// failures are already folded into a black-mat canvas internally.
		return
	}

	tex, err := v.dev.CreateTexture(&gpu.TextureDescriptor{
		Label:  "slide-" + img.PhotoID,
		Size:   gpu.Extent3D{Width: uint32(canvas.Width), Height: uint32(canvas.Height), DepthOrArrayLayers: 1},
		Format: gpu.FormatRGBA8Unorm,
	})
	if err != nil {
		v.logger.Warn("viewer: texture creation failed, dropping slide", "photo", img.PhotoID, "error", err)
		v.inv.Invalidate(img.PhotoID, errs.UploadTransient)
		return
	}

	if err := uploadMatCanvas(v.thread, v.dev, tex, canvas.Width, canvas.Height, canvas.Pixels); err != nil {
		v.logger.Warn("viewer: upload failed, dropping slide", "photo", img.PhotoID, "error", err)
		tex.Destroy()
		v.inv.Invalidate(img.PhotoID, errs.UploadTransient)
		return
	}

	v.enqueue(slide{img: img, canvas: canvas, tex: tex})
}

// enqueue appends a ready slide to the preload queue, dropping the
// oldest entry if the queue is already at capacity (spec.md §4.5
// memory budgeting: "preload queue ≤ viewer_preload_count").
func (v *Viewer) enqueue(s slide) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.preload) >= v.cfg.ViewerPreloadCount {
		dropped := v.preload[0]
		dropped.tex.Destroy()
		v.preload = v.preload[1:]
	}
	v.preload = append(v.preload, s)

	if !v.firstReady {
		v.firstReady = true
	}
	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// tick advances the state machine: greeting suppression, transition
// progress (wall-clock driven, never frame-indexed), and dwell-based
// advancement to the next preloaded slide.
func (v *Viewer) tick(dwell time.Duration, onDisplayed OnDisplayed) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.asleep {
		return
	}

	switch v.state {
	case StateGreeting:
		if time.Since(v.greetingAt) >= v.greetingMin && v.firstReady && len(v.preload) > 0 {
			v.advanceLocked(onDisplayed)
			v.clearOverlayLocked()
			v.state = StateAwakeIdle
		}
		return

	case StateAwakeTransitioning:
		if v.run != nil && v.run.Done() {
			v.finishTransitionLocked(onDisplayed)
		}
		return

	case StateAwakeIdle:
		if v.current != nil && time.Since(v.currentSeen) < dwell {
			return
		}
		if len(v.preload) == 0 {
			return
		}
		v.startTransitionLocked()
	}
}

func (v *Viewer) startTransitionLocked() {
	n := v.preload[0]
	v.preload = v.preload[1:]
	v.next = &n
	params := v.trans.Next(n.img.PhotoID)
	v.run = transition.NewRun(params, nil)
	v.state = StateAwakeTransitioning
}

func (v *Viewer) finishTransitionLocked(onDisplayed OnDisplayed) {
	if v.current != nil {
		v.current.tex.Destroy()
	}
	v.current = v.next
	v.next = nil
	v.run = nil
	v.currentSeen = time.Now()
	v.state = StateAwakeIdle
	if onDisplayed != nil && v.current != nil {
		onDisplayed(v.current.img.PhotoID)
	}
}

// advanceLocked promotes the first preloaded slide directly to current,
// used only for the greeting->first-slide transition (no cross-fade:
// the greeting card simply stops being rendered).
func (v *Viewer) advanceLocked(onDisplayed OnDisplayed) {
	s := v.preload[0]
	v.preload = v.preload[1:]
	v.current = &s
	v.currentSeen = time.Now()
}

// CurrentTexture returns the texture the presentation surface should
// currently display, or nil if nothing has been staged yet. A staged
// greeting/sleep overlay takes priority over the underlying photo slide
// without destroying it.
func (v *Viewer) CurrentTexture() gpu.Texture {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.overlay != nil {
		return v.overlay.tex
	}
	if v.current == nil {
		return nil
	}
	return v.current.tex
}

// TransitionProgress returns the in-flight transition's progress in
// [0,1], or (0, false) when no transition is running.
func (v *Viewer) TransitionProgress() (transition.Params, float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.run == nil {
		return transition.Params{}, 0, false
	}
	return v.run.Params, v.run.Progress(), true
}
