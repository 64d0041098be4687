// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

package viewer

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// gpuThread is the viewer's single dedicated GPU thread: all texture
// uploads and queue submissions are serialized onto it (spec.md §5,
// "GPU command submission runs on a single dedicated thread driving an
// event loop"), based on Ebiten's render-thread architecture. GPU
// operations must never run on whatever goroutine happens to call into
// the viewer; this serves mat uploads and transitions instead of window
// presentation.
type gpuThread struct {
	funcs   chan func()
	done    chan struct{}
	running atomic.Bool
}

// newGPUThread starts the thread and locks it to an OS thread, the way
// Vulkan/GLES contexts require.
func newGPUThread() *gpuThread {
	t := &gpuThread{
		funcs: make(chan func(), 16),
		done:  make(chan struct{}),
	}
	t.running.Store(true)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		wg.Done()

		for {
			select {
			case f := <-t.funcs:
				f()
			case <-t.done:
				return
			}
		}
	}()
	wg.Wait()
	return t
}

// call runs f on the GPU thread and waits for it to finish. Once the
// thread has been stopped, call returns at once without running f.
func (t *gpuThread) call(f func()) {
	if !t.running.Load() {
		return
	}
	done := make(chan struct{})
	t.funcs <- func() {
		f()
		close(done)
	}
	<-done
}

// stop halts the thread. Safe to call more than once.
func (t *gpuThread) stop() {
	if t.running.Swap(false) {
		close(t.done)
	}
}
