// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package inventory implements Component A: it walks a photo library
// root, emits add/remove deltas, and supplies best-effort creation
// timestamps for each file (spec.md §4.1).
//
// The initial scan is grounded on github.com/karrick/godirwalk, the
// fast recursive walker ghjramos-aistore uses for its own object
// inventory scans. The optional incremental mode is grounded on
// github.com/fsnotify/fsnotify, used the same way by
// dixieflatline76-Spice and k-kohey-axe-cli in the retrieval pack.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"

	"github.com/lumaframe/frame/internal/clock"
	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/logging"
)

// PhotoRef is a stable identifier for a library file (spec.md §3).
type PhotoRef struct {
	ID        string
	Path      string
	CreatedAt time.Time
}

// DeltaKind discriminates a Delta.
type DeltaKind int

const (
	Added DeltaKind = iota
	Removed
	Rescanned
)

// Delta is one inventory event, see spec.md §4.1.
type Delta struct {
	Kind      DeltaKind
	Photo     PhotoRef   // valid when Kind == Added
	RemovedID string     // valid when Kind == Removed
	Snapshot  []PhotoRef // valid when Kind == Rescanned
}

var supportedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".tif": true,
}

// Mode selects how the Watcher detects changes after the initial scan.
type Mode int

const (
	// ModeNotify subscribes to OS file-change notifications via fsnotify.
	ModeNotify Mode = iota
	// ModePoll re-walks the tree on a fixed interval.
	ModePoll
)

// Watcher implements Component A.
type Watcher struct {
	Root         string
	Mode         Mode
	PollInterval time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger

	mu       sync.Mutex
	snapshot map[string]PhotoRef // keyed by path
}

// New constructs a Watcher with spec.md defaults applied.
func New(root string) *Watcher {
	return &Watcher{
		Root:         root,
		Mode:         ModeNotify,
		PollInterval: 5 * time.Second,
		Clock:        clock.System{},
		Logger:       logging.Logger(),
		snapshot:     make(map[string]PhotoRef),
	}
}

// Run scans the library and streams deltas to out until ctx is cancelled.
// The first delta sent is always Rescanned (spec.md §4.1 contract).
func (w *Watcher) Run(ctx context.Context, out chan<- Delta) error {
	snap, err := w.scan()
	if err != nil {
		return errs.New(errs.InventoryFatal, "", fmt.Errorf("initial scan of %s: %w", w.Root, err))
	}
	w.mu.Lock()
	w.snapshot = snap
	w.mu.Unlock()

	select {
	case out <- Delta{Kind: Rescanned, Snapshot: snapshotValues(snap)}:
	case <-ctx.Done():
		return nil
	}

	switch w.Mode {
	case ModeNotify:
		return w.runNotify(ctx, out)
	default:
		return w.runPoll(ctx, out)
	}
}

func (w *Watcher) runPoll(ctx context.Context, out chan<- Delta) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.rescanAndEmit(out)
		}
	}
}

func (w *Watcher) runNotify(ctx context.Context, out chan<- Delta) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.Logger.Warn("inventory: fsnotify unavailable, falling back to polling", "error", err)
		return w.runPoll(ctx, out)
	}
	defer fw.Close()

	if err := addRecursive(fw, w.Root); err != nil {
		w.Logger.Warn("inventory: could not watch all directories, falling back to polling", "error", err)
		return w.runPoll(ctx, out)
	}

	// Coalesce bursts of filesystem events into a single rescan, matching
	// the same set-difference algorithm the polling path uses.
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !supportedExt[strings.ToLower(filepath.Ext(ev.Name))] {
				// Still worth a rescan on directory creation; otherwise skip
				// events for unsupported file types to avoid needless churn.
				if ev.Op&fsnotify.Create == 0 {
					continue
				}
				if fi, statErr := os.Stat(ev.Name); statErr != nil || !fi.IsDir() {
					continue
				}
			}
			if !pending {
				pending = true
				debounce.Reset(200 * time.Millisecond)
			}
		case <-debounce.C:
			pending = false
			w.rescanAndEmit(out)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("inventory: fsnotify error", "error", err)
		}
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) rescanAndEmit(out chan<- Delta) {
	next, err := w.scan()
	if err != nil {
		w.Logger.Warn("inventory: rescan failed, keeping previous snapshot", "error", err)
		return
	}

	w.mu.Lock()
	prev := w.snapshot
	w.snapshot = next
	w.mu.Unlock()

	for path, ref := range next {
		if _, existed := prev[path]; !existed {
			out <- Delta{Kind: Added, Photo: ref}
		}
	}
	for path, ref := range prev {
		if _, stillThere := next[path]; !stillThere {
			out <- Delta{Kind: Removed, RemovedID: ref.ID}
		}
	}
}

// scan performs one full walk of Root and returns a path-keyed snapshot.
func (w *Watcher) scan() (map[string]PhotoRef, error) {
	snap := make(map[string]PhotoRef)
	now := w.Clock.Now()

	err := godirwalk.Walk(w.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil {
				w.Logger.Warn("inventory: skipping unreadable entry", "path", path, "error", err)
				return godirwalk.SkipNode
			}
			if isDir {
				return nil
			}
			if !supportedExt[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			ref, err := refForPath(path, now)
			if err != nil {
				w.Logger.Warn("inventory: skipping unreadable file", "path", path, "error", err)
				return nil
			}
			snap[path] = ref
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			w.Logger.Warn("inventory: transient walk error", "path", path, "error", err)
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, err
		}
		return nil, err
	}
	return snap, nil
}

func refForPath(path string, now time.Time) (PhotoRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return PhotoRef{}, err
	}

	created := info.ModTime()
	var inode uint64
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		inode = uint64(st.Ino)
		// Linux's stat(2) has no portable birth-time field; Ctim (the
		// inode change time) is the closest available proxy and is what
		// most Go tools fall back to when real btime isn't exposed.
		if ctimeBefore(st, created) {
			created = ctimeToTime(st)
		}
	}
	if created.After(now) {
		created = now
	}

	return PhotoRef{
		ID:        idFor(path, inode),
		Path:      path,
		CreatedAt: created,
	}, nil
}

func idFor(path string, inode uint64) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	if inode != 0 {
		_, _ = fmt.Fprintf(h, ":%d", inode)
	}
	return fmt.Sprintf("%x", h.Sum64())
}

func snapshotValues(m map[string]PhotoRef) []PhotoRef {
	out := make([]PhotoRef, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
