// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumaframe/frame/internal/clock"
)

func TestRunEmitsRescannedFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg")
	writeFile(t, dir, "b.txt") // unsupported extension, must be skipped

	w := New(dir)
	w.Mode = ModePoll
	w.PollInterval = time.Hour // never fires during this test

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Delta, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx, out) }()

	select {
	case d := <-out:
		if d.Kind != Rescanned {
			t.Fatalf("first delta kind = %v, want Rescanned", d.Kind)
		}
		if len(d.Snapshot) != 1 {
			t.Fatalf("snapshot len = %d, want 1 (only a.jpg)", len(d.Snapshot))
		}
		if d.Snapshot[0].Path != filepath.Join(dir, "a.jpg") {
			t.Fatalf("unexpected snapshot entry: %+v", d.Snapshot[0])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Rescanned delta")
	}
}

func TestRunFatalOnMissingRoot(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "does-not-exist"))
	err := w.Run(context.Background(), make(chan Delta, 1))
	if err == nil {
		t.Fatal("expected an error for a missing root")
	}
}

func TestIDIsStableForSamePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "photo.png")
	path := filepath.Join(dir, "photo.png")

	fixed := clock.Frozen{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ref1, err := refForPath(path, fixed.Now())
	if err != nil {
		t.Fatalf("refForPath: %v", err)
	}
	ref2, err := refForPath(path, fixed.Now())
	if err != nil {
		t.Fatalf("refForPath: %v", err)
	}
	if ref1.ID != ref2.ID {
		t.Fatalf("ID not stable: %s vs %s", ref1.ID, ref2.ID)
	}
}

func TestCreatedAtNeverFutureDated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "photo.jpg")
	path := filepath.Join(dir, "photo.jpg")

	past := time.Now().Add(-time.Hour)
	ref, err := refForPath(path, past)
	if err != nil {
		t.Fatalf("refForPath: %v", err)
	}
	if ref.CreatedAt.After(past) {
		t.Fatalf("CreatedAt %v is after clamp point %v", ref.CreatedAt, past)
	}
}

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
