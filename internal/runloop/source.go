package runloop

import (
	"slices"
	"sync/atomic"
)

// Source is a signalable run-loop source. Signaling it from any goroutine
// marks it pending and wakes the loop; the loop goroutine then runs its
// callback once, however many times it was signaled in between.
type Source struct {
	rl      *RunLoop
	fn      func() int
	pending atomic.Bool
	removed atomic.Bool
}

// AddSource registers fn as a source. The callback reports how many events
// it processed, which counts towards the result of [RunLoop.RunOnce].
func (rl *RunLoop) AddSource(fn func() int) *Source {
	s := &Source{rl: rl, fn: fn}
	rl.sourceMu.Lock()
	rl.sources = append(rl.sources, s)
	rl.sourceMu.Unlock()
	return s
}

// Signal marks the source pending and wakes the loop.
func (s *Source) Signal() {
	if s.removed.Load() {
		return
	}
	s.pending.Store(true)
	s.rl.Wake()
}

// Pending reports whether the source has been signaled but not yet run.
func (s *Source) Pending() bool { return s.pending.Load() }

// Remove detaches the source from its loop.
func (s *Source) Remove() {
	if s.removed.Swap(true) {
		return
	}
	rl := s.rl
	rl.sourceMu.Lock()
	defer rl.sourceMu.Unlock()
	for i, v := range rl.sources {
		if v == s {
			rl.sources = append(rl.sources[:i], rl.sources[i+1:]...)
			break
		}
	}
}

// runSources runs every pending source, returning the sum of the counts they
// report.
func (rl *RunLoop) runSources() (n int) {
	rl.sourceMu.Lock()
	sources := slices.Clone(rl.sources)
	rl.sourceMu.Unlock()

	for _, s := range sources {
		if s.removed.Load() || !s.pending.Swap(false) {
			continue
		}
		rl.safeExecute("source", func() { n += s.fn() })
	}
	return n
}

// anyPending reports whether a source is waiting to run.
func (rl *RunLoop) anyPending() bool {
	rl.sourceMu.Lock()
	defer rl.sourceMu.Unlock()
	for _, s := range rl.sources {
		if s.pending.Load() {
			return true
		}
	}
	return false
}
