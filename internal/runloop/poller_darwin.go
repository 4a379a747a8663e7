//go:build darwin

package runloop

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// eventBuf is the per RunOnce call buffer passed to kevent.
type eventBuf [128]unix.Kevent_t

// poller manages I/O event registration using kqueue (Darwin).
//
// User watches use EV_ONESHOT per filter, so each of the read and write
// filters is deleted by the kernel after it fires; rearm adds them again.
type poller struct {
	fdTable
	kq     int
	closed atomic.Bool
}

// init initializes the kqueue instance.
func (p *poller) init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = kq
	p.fds = make([]fdInfo, initialFDs)
	return nil
}

// close closes the kqueue instance, it is idempotent.
func (p *poller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.kq > 0 {
		return unix.Close(p.kq)
	}
	return nil
}

// register adds the filters for fd to the kqueue.
func (p *poller) register(fd int, events IOEvents, cb IOCallback, internal bool) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if err := checkFD(fd); err != nil {
		return err
	}

	p.fdMu.Lock()
	defer p.fdMu.Unlock()

	if err := p.insert(fd, fdInfo{callback: cb, events: events, active: true, internal: internal}); err != nil {
		return err
	}

	// Hold lock across Kevent to prevent race with concurrent unregister.
	if kevents := eventsToKevents(fd, events, addFlags(internal)); len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			p.fds[fd] = fdInfo{} // Rollback
			return err
		}
	}
	return nil
}

// rearm re-adds the one-shot filters for fd, dropping any no longer wanted.
func (p *poller) rearm(fd int, events IOEvents) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if err := checkFD(fd); err != nil {
		return err
	}

	p.fdMu.Lock()
	defer p.fdMu.Unlock()

	info, ok := p.get(fd)
	if !ok {
		return ErrFDNotRegistered
	}
	p.fds[fd].events = events

	if removed := info.events &^ events; removed != 0 {
		// ENOENT is expected for filters that already fired
		_, _ = unix.Kevent(p.kq, eventsToKevents(fd, removed, unix.EV_DELETE), nil, nil)
	}
	if kevents := eventsToKevents(fd, events, addFlags(info.internal)); len(kevents) > 0 {
		if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// unregister removes the filters for fd from the kqueue.
func (p *poller) unregister(fd int) error {
	if err := checkFD(fd); err != nil {
		return err
	}

	p.fdMu.Lock()
	defer p.fdMu.Unlock()

	info, ok := p.get(fd)
	if !ok {
		return ErrFDNotRegistered
	}
	if !p.closed.Load() {
		if kevents := eventsToKevents(fd, info.events, unix.EV_DELETE); len(kevents) > 0 {
			_, _ = unix.Kevent(p.kq, kevents, nil, nil) // Ignore errors on delete
		}
	}
	p.fds[fd] = fdInfo{}
	return nil
}

// wait blocks for up to timeoutMs (-1 for indefinitely), dispatching any
// ready callbacks inline. It returns the sum of the counts reported by the
// non-internal callbacks it invoked.
func (p *poller) wait(buf *eventBuf, timeoutMs int, exec func(func())) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(p.kq, nil, buf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	var dispatched int
	for i := 0; i < n; i++ {
		fd := int(buf[i].Ident)
		if fd < 0 {
			continue
		}
		info := p.lookup(fd)
		if !info.active || info.callback == nil {
			continue
		}
		events := keventToEvents(&buf[i])
		if info.internal {
			info.callback(events)
			continue
		}
		exec(func() { dispatched += info.callback(events) })
	}
	return dispatched, nil
}

func addFlags(internal bool) uint16 {
	if internal {
		return unix.EV_ADD | unix.EV_ENABLE
	}
	return unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT
}

// eventsToKevents converts IOEvents to kqueue kevent structures.
func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t

	if events&EventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}

	if events&EventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}

	return kevents
}

// keventToEvents converts kqueue event to IOEvents.
func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
