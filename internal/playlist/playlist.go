// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package playlist implements Component B: it owns the Library, builds
// newness-biased cycles, dispenses photo requests to the loader, and
// absorbs displayed/invalidation feedback from downstream (spec.md
// §4.2).
package playlist

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/lumaframe/frame/internal/clock"
	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/inventory"
)

const maxTransientRetries = 3

// Manager owns the Library and the current PlaylistCycle (spec.md §3, §4.2).
type Manager struct {
	clock           clock.Clock
	newMultiplicity float64
	halfLife        time.Duration
	rng             *rand.Rand

	mu      sync.Mutex
	cond    *sync.Cond
	library map[string]inventory.PhotoRef
	arrival []string // ids, in first-seen order
	shown   map[string]bool
	retries map[string]int
	cycle   []string // remaining ids to dispense this cycle
	dirty   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the default system clock (used for age computation and
// frozen-clock determinism via --playlist-now).
func WithClock(c clock.Clock) Option { return func(m *Manager) { m.clock = c } }

// WithSeed makes cycle shuffling deterministic.
func WithSeed(seed uint64) Option {
	return func(m *Manager) { m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// New constructs a Manager per spec.md §4.2's weighting algorithm inputs.
func New(newMultiplicity float64, halfLife time.Duration, opts ...Option) *Manager {
	m := &Manager{
		newMultiplicity: math.Max(1, newMultiplicity),
		halfLife:        halfLife,
		clock:           clock.System{},
		library:         make(map[string]inventory.PhotoRef),
		shown:           make(map[string]bool),
		retries:         make(map[string]int),
		dirty:           true,
	}
	for _, o := range opts {
		o(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// ApplyDelta merges an inventory delta into the Library (spec.md §4.2).
// Added is idempotent on duplicate paths/ids; Removed drops the entry
// before any subsequent cycle is built.
func (m *Manager) ApplyDelta(d inventory.Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch d.Kind {
	case inventory.Rescanned:
		m.library = make(map[string]inventory.PhotoRef, len(d.Snapshot))
		for _, ref := range d.Snapshot {
			m.addLocked(ref)
		}
	case inventory.Added:
		m.addLocked(d.Photo)
	case inventory.Removed:
		m.removeLocked(d.RemovedID)
	}

	m.dirty = true
	m.cond.Broadcast()
}

func (m *Manager) addLocked(ref inventory.PhotoRef) {
	if _, exists := m.library[ref.ID]; exists {
		m.library[ref.ID] = ref // idempotent refresh, e.g. updated timestamp
		return
	}
	m.library[ref.ID] = ref
	m.arrival = append(m.arrival, ref.ID)
}

func (m *Manager) removeLocked(id string) {
	if _, exists := m.library[id]; !exists {
		return
	}
	delete(m.library, id)
	delete(m.shown, id)
	delete(m.retries, id)
	for i, a := range m.arrival {
		if a == id {
			m.arrival = append(m.arrival[:i], m.arrival[i+1:]...)
			break
		}
	}
}

// RequestNext returns the next id to decode, rebuilding the cycle if dirty
// or exhausted (spec.md §4.2). It blocks while the Library is empty, until
// ctx is cancelled.
func (m *Manager) RequestNext(ctx context.Context) (inventory.PhotoRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if len(m.library) == 0 {
			if !m.waitLocked(ctx) {
				return inventory.PhotoRef{}, ctx.Err()
			}
			continue
		}
		if m.dirty || len(m.cycle) == 0 {
			m.rebuildLocked()
		}
		for len(m.cycle) > 0 {
			id := m.cycle[0]
			m.cycle = m.cycle[1:]
			if ref, ok := m.library[id]; ok {
				return ref, nil
			}
			// Removed mid-cycle: remaining scheduled copies are skipped silently.
		}
		// Every scheduled id got removed mid-cycle; rebuild and retry.
	}
}

// waitLocked blocks on m.cond until the library is non-empty or ctx is done.
// Reports whether it woke because the library became non-empty.
func (m *Manager) waitLocked(ctx context.Context) bool {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		close(done)
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	for len(m.library) == 0 {
		select {
		case <-done:
			return false
		default:
		}
		m.cond.Wait()
	}
	return true
}

// MarkDisplayed advances the "recently shown" cursor: once a photo has
// been displayed it is no longer eligible for head-of-cycle pinning.
func (m *Manager) MarkDisplayed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown[id] = true
}

// Invalidate reports a downstream decode/upload failure. Permanent
// failures remove the PhotoRef; transient failures are counted and
// escalated to permanent after maxTransientRetries (spec.md §4.2, §7).
// No delay or backoff is applied: a transiently failed photo stays in
// the cycle and is requested again on its next scheduled turn.
func (m *Manager) Invalidate(id string, kind errs.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	permanent := kind == errs.DecodePermanent
	if !permanent {
		m.retries[id]++
		if m.retries[id] > maxTransientRetries {
			permanent = true
		}
	}
	if permanent {
		m.removeLocked(id)
		m.dirty = true
	}
}

// Multiplicity computes the schedule weight for a photo of the given age,
// per spec.md §4.2: ceil(max(1, new_multiplicity) * 0.5^(age/half_life)).
func (m *Manager) Multiplicity(age time.Duration) int {
	if age < 0 {
		age = 0
	}
	decay := math.Pow(0.5, age.Seconds()/m.halfLife.Seconds())
	return int(math.Ceil(math.Max(1, m.newMultiplicity) * decay))
}

// rebuildLocked constructs a fresh PlaylistCycle from the Library. Caller
// must hold m.mu.
func (m *Manager) rebuildLocked() {
	now := m.clock.Now()

	// Order ids lexicographically by path so the shuffle input never
	// depends on map iteration order; CreatedAt plays no part in it.
	ids := make([]string, 0, len(m.library))
	for id := range m.library {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.library[ids[i]].Path < m.library[ids[j]].Path
	})

	var pinned []string
	var bulk []string

	// Pinned new arrivals keep their arrival order, not the sorted order.
	arrivalRank := make(map[string]int, len(m.arrival))
	for i, id := range m.arrival {
		arrivalRank[id] = i
	}
	pinnedCandidates := make([]string, 0)
	for _, id := range ids {
		if !m.shown[id] {
			pinnedCandidates = append(pinnedCandidates, id)
		}
	}
	sort.Slice(pinnedCandidates, func(i, j int) bool {
		return arrivalRank[pinnedCandidates[i]] < arrivalRank[pinnedCandidates[j]]
	})
	pinned = pinnedCandidates

	isPinned := make(map[string]bool, len(pinned))
	for _, id := range pinned {
		isPinned[id] = true
	}

	for _, id := range ids {
		ref := m.library[id]
		age := now.Sub(ref.CreatedAt)
		mult := m.Multiplicity(age)
		if isPinned[id] {
			mult-- // one copy already placed at the head
		}
		for i := 0; i < mult; i++ {
			bulk = append(bulk, id)
		}
	}

	m.rng.Shuffle(len(bulk), func(i, j int) { bulk[i], bulk[j] = bulk[j], bulk[i] })

	m.cycle = make([]string, 0, len(pinned)+len(bulk))
	m.cycle = append(m.cycle, pinned...)
	m.cycle = append(m.cycle, bulk...)
	m.dirty = false
}

// IsLive reports whether id is still present in the Library. The loader
// uses this to drop a PreparedImage whose PhotoRef was removed before it
// could be delivered to the viewer (spec.md §4.3).
func (m *Manager) IsLive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.library[id]
	return ok
}

// Snapshot returns a read-only copy of the live Library, for callers that
// need a stable view without serializing through RequestNext.
func (m *Manager) Snapshot() []inventory.PhotoRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]inventory.PhotoRef, 0, len(m.library))
	for _, ref := range m.library {
		out = append(out, ref)
	}
	return out
}
