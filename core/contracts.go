package core

// TimerID identifies a registered timer. Identifiers are never reused for
// the lifetime of the issuing Manager.
type TimerID int64

// SignalHandlerID identifies a registered signal handler.
type SignalHandlerID int64

const (
	// InvalidTimerID is returned when a timer cannot be registered.
	InvalidTimerID TimerID = -1

	// InvalidSignalHandlerID is returned when a signal cannot be trapped.
	InvalidSignalHandlerID SignalHandlerID = -1
)

// Valid reports whether the identifier may refer to a live timer.
func (x TimerID) Valid() bool { return x > 0 }

// Valid reports whether the identifier may refer to a live handler.
func (x SignalHandlerID) Valid() bool { return x > 0 }

// PumpMode selects whether a single pump iteration may block.
type PumpMode int

const (
	// PumpWaitForEvents blocks until at least one event arrives, or the loop
	// is woken.
	PumpWaitForEvents PumpMode = iota
	// PumpDontWaitForEvents processes only what is already pending.
	PumpDontWaitForEvents
)

// String returns a human-readable representation of the mode.
func (m PumpMode) String() string {
	switch m {
	case PumpWaitForEvents:
		return "WaitForEvents"
	case PumpDontWaitForEvents:
		return "DontWaitForEvents"
	default:
		return "Unknown"
	}
}

// Manager is the process-wide registry and factory for event loops.
//
// Registration methods are safe to call from any goroutine, and report
// failure through their return values, never by panicking. Unregistering an
// identifier that is not live is a no-op.
type Manager interface {
	// MakeImplementation returns a new loop implementation bound to the
	// native run loop. It never fails.
	MakeImplementation() Implementation

	// RegisterTimer arms a timer that posts a TimerEvent to receiver after
	// intervalMS milliseconds, once or, if shouldReload is set, repeatedly.
	// It returns InvalidTimerID on failure.
	RegisterTimer(receiver *Receiver, intervalMS int, shouldReload bool) TimerID
	// UnregisterTimer cancels a timer.
	UnregisterTimer(id TimerID)

	// RegisterNotifier adds a one-shot readiness watch for the notifier.
	RegisterNotifier(n *Notifier) error
	// UnregisterNotifier removes the watch for the notifier.
	UnregisterNotifier(n *Notifier)

	// DidPostEvent wakes the loop to process newly posted events. It is
	// safe to call from any goroutine.
	DidPostEvent()

	// RegisterSignal installs callback for signum, replacing any previous
	// handler for the same signal. The callback runs on the loop goroutine.
	// It returns InvalidSignalHandlerID on failure.
	RegisterSignal(signum int, callback func(signum int)) SignalHandlerID
	// UnregisterSignal removes a signal handler.
	UnregisterSignal(id SignalHandlerID)
}

// Implementation drives the native run loop for one loop-owning context.
//
// Exec and Pump must only be called by the owning goroutine. Quit, Wake and
// WasExitRequested are safe to call from any goroutine.
type Implementation interface {
	// Exec processes events until Quit is called, returning its code.
	Exec() int
	// Pump processes a single bounded iteration, returning the number of
	// events processed.
	Pump(mode PumpMode) int
	// Quit requests that Exec return code.
	Quit(code int)
	// Wake causes a blocked Exec or Pump to re-evaluate pending work.
	Wake()
	// WasExitRequested reports whether Quit has been called.
	WasExitRequested() bool
}
