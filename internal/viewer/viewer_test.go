package viewer

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/lumaframe/frame/internal/config"
	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/loader"
	"github.com/lumaframe/frame/internal/viewer/gpu"
	_ "github.com/lumaframe/frame/internal/viewer/gpu/software"
)

type noopInvalidator struct{ calls []string }

func (n *noopInvalidator) Invalidate(id string, kind errs.Kind) { n.calls = append(n.calls, id) }

func solidPrepared(id string, w, h int) loader.PreparedImage {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 64, B: 32, A: 255})
		}
	}
	return loader.PreparedImage{PhotoID: id, Pixels: img, Width: w, Height: h, ColorSpace: "srgb"}
}

func testSettings() config.Settings {
	return config.Settings{
		DwellMS:            20,
		ViewerPreloadCount: 3,
		Display:            config.DisplayConfig{WidthPx: 16, HeightPx: 16},
		Matting: config.MattingConfig{
			Active:    []config.MattingEntry{{Kind: "fixed-color", Colors: []string{"#112233"}}},
			Selection: config.SelectionSequential,
		},
		Transition: config.TransitionConfig{
			Active:    []config.TransitionEntry{{Kind: "fade", DurationMS: 10}},
			Selection: config.SelectionSequential,
		},
		GreetingScreen: config.ScreenConfig{DurationSeconds: 0},
	}
}

func TestViewerStagesAndAdvancesPastGreeting(t *testing.T) {
	dev, err := gpu.Open("software")
	if err != nil {
		t.Fatalf("open software backend: %v", err)
	}
	defer dev.Destroy()

	inv := &noopInvalidator{}
	v := New(testSettings(), dev, inv, nil)

	in := make(chan loader.PreparedImage, 4)
	in <- solidPrepared("a", 16, 16)
	in <- solidPrepared("b", 16, 16)
	close(in)

	onDisplayed := func(id string) {}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		v.Run(ctx, in, onDisplayed)
		close(done)
	}()

	deadline := time.After(1500 * time.Millisecond)
	for {
		if v.CurrentTexture() != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("viewer never staged a current texture")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if len(inv.calls) != 0 {
		t.Fatalf("unexpected invalidations: %v", inv.calls)
	}
}

func TestShowGreetingResetsState(t *testing.T) {
	dev, _ := gpu.Open("software")
	defer dev.Destroy()
	v := New(testSettings(), dev, &noopInvalidator{}, nil)
	v.state = StateAwakeIdle
	v.ShowGreeting()
	if v.state != StateGreeting {
		t.Fatalf("state = %v, want StateGreeting", v.state)
	}
}

func TestSetSleepTogglesState(t *testing.T) {
	dev, _ := gpu.Open("software")
	defer dev.Destroy()
	v := New(testSettings(), dev, &noopInvalidator{}, nil)
	v.current = &slide{}
	v.SetSleep(true, "schedule")
	if v.state != StateAsleep {
		t.Fatalf("state = %v, want StateAsleep", v.state)
	}
	v.SetSleep(false, "schedule")
	if v.state != StateAwakeIdle {
		t.Fatalf("state = %v, want StateAwakeIdle", v.state)
	}
}
