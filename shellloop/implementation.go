package shellloop

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/joeycumines/go-browsershell/internal/runloop"
	"github.com/joeycumines/logiface"
)

// Implementation drives the manager's native run loop on behalf of one
// loop-owning goroutine. It implements [core.Implementation].
type Implementation struct {
	m     *Manager
	state loopState

	exitRequested atomic.Bool
	exitMu        sync.Mutex
	exitCode      int
}

var _ core.Implementation = (*Implementation)(nil)

// Exec runs the native loop until Quit is called, then returns its code. It
// locks the calling goroutine to its OS thread while running. If Quit was
// already called, it returns at once.
//
// Calling Exec while the same implementation is already running is a
// programming error: it logs at critical level and panics with an error
// wrapping [ErrDoubleExec], which the run loop does not recover.
func (x *Implementation) Exec() int {
	if !x.state.TryTransition(StateIdle, StateRunning) && !x.state.TryTransition(StateStopped, StateRunning) {
		x.m.diag.always(logiface.LevelCritical, "shellloop.exec").
			Stringer("state", x.state.Load()).
			Log("shellloop: exec called on a running implementation")
		panic(&runloop.FatalError{Err: ErrDoubleExec})
	}
	defer x.state.Store(StateStopped)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for !x.exitRequested.Load() {
		if _, err := x.m.rl.RunOnce(true); err != nil {
			x.m.diag.always(logiface.LevelCritical, "shellloop.exec").
				Err(err).
				Log("shellloop: native run loop failed, quitting")
			x.Quit(-1)
		}
	}

	return x.ExitCode()
}

// Pump runs one iteration of the native loop, returning the number of
// events processed: timer fires, notifier activations, signal callbacks,
// and posted events delivered. With [core.PumpWaitForEvents] it blocks until
// something arrives or the loop is woken; with [core.PumpDontWaitForEvents]
// it never blocks.
func (x *Implementation) Pump(mode core.PumpMode) int {
	n, err := x.m.rl.RunOnce(mode == core.PumpWaitForEvents)
	if err != nil {
		x.m.diag.limited(logiface.LevelError, "shellloop.pump").
			Err(err).
			Stringer("mode", mode).
			Log("shellloop: pump failed")
	}
	return n
}

// Quit requests that Exec return code, waking it if blocked. It is safe to
// call from any goroutine. Only the first call records its code.
func (x *Implementation) Quit(code int) {
	x.exitMu.Lock()
	if !x.exitRequested.Load() {
		x.exitCode = code
		x.exitRequested.Store(true)
	}
	x.exitMu.Unlock()
	x.Wake()
}

// Wake makes a blocked Exec or Pump return from its wait and re-evaluate
// pending work. It processes nothing itself.
func (x *Implementation) Wake() { x.m.rl.Wake() }

// WasExitRequested reports whether Quit has been called.
func (x *Implementation) WasExitRequested() bool { return x.exitRequested.Load() }

// ExitCode returns the code recorded by the first Quit, or 0.
func (x *Implementation) ExitCode() int {
	x.exitMu.Lock()
	defer x.exitMu.Unlock()
	return x.exitCode
}

// State returns the current run state.
func (x *Implementation) State() LoopState { return x.state.Load() }
