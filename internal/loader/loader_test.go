// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

package loader

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/inventory"
)

type fakeSource struct {
	mu          sync.Mutex
	refs        []inventory.PhotoRef
	live        map[string]bool
	invalidated []string
}

func newFakeSource(refs ...inventory.PhotoRef) *fakeSource {
	live := make(map[string]bool, len(refs))
	for _, r := range refs {
		live[r.ID] = true
	}
	return &fakeSource{refs: refs, live: live}
}

func (f *fakeSource) RequestNext(ctx context.Context) (inventory.PhotoRef, error) {
	f.mu.Lock()
	if len(f.refs) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return inventory.PhotoRef{}, ctx.Err()
	}
	ref := f.refs[0]
	f.refs = f.refs[1:]
	f.mu.Unlock()
	return ref, nil
}

func (f *fakeSource) IsLive(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[id]
}

func (f *fakeSource) Invalidate(id string, kind errs.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
	delete(f.live, id)
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

func TestRunDecodesAndDeliversPreparedImage(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 200, 100)

	src := newFakeSource(inventory.PhotoRef{ID: "a", Path: path})
	l := New(2, 100, 1.0)

	out := make(chan PreparedImage, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { l.Run(ctx, src, out); close(done) }()

	select {
	case img := <-out:
		if img.PhotoID != "a" {
			t.Fatalf("PhotoID = %q, want a", img.PhotoID)
		}
		if img.Width != 100 {
			t.Fatalf("Width = %d, want 100 (bounded by canvasMax)", img.Width)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for prepared image")
	}
	cancel()
	<-done
}

func TestRunInvalidatesUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	src := newFakeSource(inventory.PhotoRef{ID: "bad", Path: path})
	l := New(2, 100, 1.0)

	out := make(chan PreparedImage, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { l.Run(ctx, src, out); close(done) }()

	deadline := time.After(1500 * time.Millisecond)
	for {
		src.mu.Lock()
		n := len(src.invalidated)
		src.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("corrupt file was never invalidated")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestRunDropsRemovedPhotoWithoutDelivery(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "gone.png", 50, 50)

	src := newFakeSource(inventory.PhotoRef{ID: "gone", Path: path})
	src.live["gone"] = false // simulate removal that raced the decode

	l := New(1, 100, 1.0)
	out := make(chan PreparedImage, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { l.Run(ctx, src, out); close(done) }()

	select {
	case img := <-out:
		t.Fatalf("expected no delivery for removed photo, got %+v", img)
	case <-time.After(300 * time.Millisecond):
	}
	cancel()
	<-done
}
