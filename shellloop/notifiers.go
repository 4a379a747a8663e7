package shellloop

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/joeycumines/go-browsershell/internal/runloop"
	"github.com/joeycumines/logiface"
)

// RegisterNotifier adds a one-shot readiness watch for n. When the
// descriptor becomes ready the notifier is activated once, on the loop
// goroutine, and the watch is disarmed until [Manager.RearmNotifier].
//
// One read and one write notifier may watch the same descriptor.
func (m *Manager) RegisterNotifier(n *core.Notifier) (err error) {
	defer func() {
		if err != nil {
			b := m.registrationFailed("notifier", err)
			if n != nil {
				b = b.Int("fd", n.FD()).Stringer("kind", n.Kind())
			}
			b.Log("shellloop: notifier registration failed")
		}
	}()

	if n == nil {
		return ErrNilNotifier
	}
	if n.FD() < 0 || (n.Kind() != core.NotificationRead && n.Kind() != core.NotificationWrite) {
		return fmt.Errorf("%w: fd %d, kind %s", ErrInvalidNotifier, n.FD(), n.Kind())
	}

	r := &m.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrManagerClosed
	}
	if _, ok := r.notifiers[n]; ok {
		return ErrNotifierRegistered
	}

	fd := n.FD()
	want := interest(n.Kind())

	if e, ok := r.fds[fd]; ok {
		slot := e.slot(n.Kind())
		if *slot != nil {
			return ErrNotifierConflict
		}
		if err := m.rl.RearmFD(fd, e.armed|want); err != nil {
			return fmt.Errorf("shellloop: rearm fd %d: %w", fd, err)
		}
		*slot = n
		e.armed |= want
	} else {
		e := &fdEntry{armed: want}
		*e.slot(n.Kind()) = n
		if err := m.rl.WatchFD(fd, want, func(events runloop.IOEvents) int { return m.notifierReady(fd, events) }); err != nil {
			return fmt.Errorf("shellloop: watch fd %d: %w", fd, err)
		}
		r.fds[fd] = e
	}

	r.notifiers[n] = fd
	r.stats.Notifiers.add()
	return nil
}

// RearmNotifier re-enables the watch for a registered notifier, typically
// from its own callback. Re-arming an armed notifier has no effect.
func (m *Manager) RearmNotifier(n *core.Notifier) error {
	r := &m.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrManagerClosed
	}
	fd, ok := r.notifiers[n]
	if !ok {
		return ErrNotifierNotRegistered
	}
	e := r.fds[fd]
	want := e.armed | interest(n.Kind())
	if want == e.armed {
		return nil
	}
	if err := m.rl.RearmFD(fd, want); err != nil {
		return fmt.Errorf("shellloop: rearm fd %d: %w", fd, err)
	}
	e.armed = want
	return nil
}

// UnregisterNotifier removes the watch for n. Unknown notifiers are ignored.
// An activation already being dispatched is not retracted.
func (m *Manager) UnregisterNotifier(n *core.Notifier) {
	r := &m.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	m.removeNotifierLocked(n)
}

func (m *Manager) removeNotifierLocked(n *core.Notifier) {
	r := &m.reg
	fd, ok := r.notifiers[n]
	if !ok {
		return
	}
	delete(r.notifiers, n)
	r.stats.Notifiers.remove()

	e := r.fds[fd]
	*e.slot(n.Kind()) = nil
	e.armed &^= interest(n.Kind())

	var err error
	switch {
	case e.read == nil && e.write == nil:
		delete(r.fds, fd)
		err = m.rl.UnwatchFD(fd)
	case e.armed != 0:
		err = m.rl.RearmFD(fd, e.armed)
	}
	// the descriptor may be closed already, or the run loop torn down
	if err != nil && !errors.Is(err, runloop.ErrClosed) && !errors.Is(err, runloop.ErrPollerClosed) {
		m.diag.limited(logiface.LevelDebug, "shellloop.notifier.unwatch").
			Err(err).
			Int("fd", fd).
			Log("shellloop: failed to update native watch")
	}
}

// notifierReady is the native watch callback, run on the loop goroutine. It
// returns the number of notifiers activated.
func (m *Manager) notifierReady(fd int, events runloop.IOEvents) int {
	r := &m.reg
	r.mu.Lock()
	e, ok := r.fds[fd]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	ready := e.takeReady(events)
	if e.armed != 0 {
		// the other direction is still wanted
		if err := m.rl.RearmFD(fd, e.armed); err != nil {
			m.diag.limited(logiface.LevelWarning, "shellloop.notifier.rearm").
				Err(err).
				Int("fd", fd).
				Log("shellloop: failed to rearm native watch")
		}
	}
	r.mu.Unlock()

	for _, n := range ready {
		n.Activate()
		if receiver := n.Receiver(); receiver != nil {
			receiver.Dispatch(core.NotifierActivationEvent{FD: fd, Kind: n.Kind()})
		}
	}
	return len(ready)
}
