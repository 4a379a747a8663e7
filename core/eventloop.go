package core

// EventLoop is the application's handle on a running loop: one
// Implementation made from a Manager, plus the queue that events are posted
// through. It is what window, network, and IPC code hold on to.
type EventLoop struct {
	manager Manager
	queue   *EventQueue
	impl    Implementation
}

// NewEventLoop makes an implementation from manager, posting events through
// queue, which must be the queue the manager's implementations process.
func NewEventLoop(manager Manager, queue *EventQueue) *EventLoop {
	return &EventLoop{
		manager: manager,
		queue:   queue,
		impl:    manager.MakeImplementation(),
	}
}

// Manager returns the manager the loop was made from.
func (l *EventLoop) Manager() Manager { return l.manager }

// Implementation returns the underlying implementation.
func (l *EventLoop) Implementation() Implementation { return l.impl }

// Exec runs the loop until Quit, returning the exit code.
func (l *EventLoop) Exec() int { return l.impl.Exec() }

// Pump runs one bounded iteration.
func (l *EventLoop) Pump(mode PumpMode) int { return l.impl.Pump(mode) }

// Quit requests that Exec return code.
func (l *EventLoop) Quit(code int) { l.impl.Quit(code) }

// Wake wakes a blocked Exec or Pump.
func (l *EventLoop) Wake() { l.impl.Wake() }

// WasExitRequested reports whether Quit has been called.
func (l *EventLoop) WasExitRequested() bool { return l.impl.WasExitRequested() }

// Post queues ev for r and wakes the loop. It is safe to call from any
// goroutine.
func (l *EventLoop) Post(r *Receiver, ev Event) {
	l.queue.Post(r, ev)
	l.manager.DidPostEvent()
}

// SpinUntil pumps the loop until cond returns true or exit is requested,
// returning whether cond was satisfied. It is the building block for nested
// loops, e.g. a modal dialog waiting on a reply.
func (l *EventLoop) SpinUntil(cond func() bool) bool {
	for !cond() {
		if l.impl.WasExitRequested() {
			return false
		}
		l.impl.Pump(PumpWaitForEvents)
	}
	return true
}
