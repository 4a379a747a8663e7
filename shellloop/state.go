package shellloop

import (
	"sync/atomic"
)

// LoopState is the run state of an [Implementation].
//
//	StateIdle → StateRunning      [Exec()]
//	StateRunning → StateStopped   [exit requested]
//	StateStopped → StateRunning   [Exec() again, returns at once]
type LoopState uint32

const (
	// StateIdle indicates Exec has not been called.
	StateIdle LoopState = iota
	// StateRunning indicates Exec is in progress.
	StateRunning
	// StateStopped indicates Exec has returned.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// loopState is a CAS state machine.
type loopState struct {
	v atomic.Uint32
}

func (s *loopState) Load() LoopState { return LoopState(s.v.Load()) }

func (s *loopState) Store(state LoopState) { s.v.Store(uint32(state)) }

// TryTransition moves from one state to another, reporting whether the
// current state was from.
func (s *loopState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
