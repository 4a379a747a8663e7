// Package runloop implements the native run loop wrapped by the shell's event
// loop adapter.
//
// A [RunLoop] owns one blocking primitive (epoll on Linux, kqueue on Darwin),
// a wake-up descriptor (eventfd on Linux, a self-pipe on Darwin), a deadline
// ordered timer heap, and a set of signalable [Source] values. Each call to
// [RunLoop.RunOnce] fires due timers, runs signaled sources, waits for I/O
// readiness (bounded by the next timer deadline), and then repeats the timer
// and source passes, so anything that woke the wait is handled in the same
// iteration.
//
// # Thread Safety
//
// [RunLoop.Wake], [Source.Signal], and timer and descriptor registration are
// safe to call from any goroutine. [RunLoop.RunOnce] is meant to be driven by
// exactly one goroutine, but may be called again from inside a callback it is
// dispatching (nested loops), since every call uses its own event buffer.
//
// # File Descriptor Watches
//
// Watches are one-shot: after a readiness callback fires the descriptor is
// disarmed until [RunLoop.RearmFD] is called. The dispatch copies the callback
// under a read lock and invokes it outside the lock, so a callback already in
// flight may still run once after [RunLoop.UnwatchFD] returns.
package runloop
