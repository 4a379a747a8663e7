//go:build linux

package runloop

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// eventBuf is the per RunOnce call buffer passed to epoll_wait.
type eventBuf [128]unix.EpollEvent

// poller manages I/O event registration using epoll (Linux).
//
// User watches are registered with EPOLLONESHOT, so the kernel disarms the
// descriptor after delivering one readiness event; rearm re-enables it.
type poller struct {
	fdTable
	epfd   int
	closed atomic.Bool
}

// init initializes the epoll instance.
func (p *poller) init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = epfd
	p.fds = make([]fdInfo, initialFDs)
	return nil
}

// close closes the epoll instance, it is idempotent.
func (p *poller) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.epfd > 0 {
		return unix.Close(p.epfd)
	}
	return nil
}

// register adds fd to the epoll set.
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

	ev := unix.EpollEvent{
		Events: eventsToEpoll(events, !internal),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		p.fds[fd] = fdInfo{} // Rollback
		return err
	}
	return nil
}

// rearm re-enables a one-shot watch, with a possibly different interest set.
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

	ev := unix.EpollEvent{
		Events: eventsToEpoll(events, !info.internal),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// unregister removes fd from the epoll set.
func (p *poller) unregister(fd int) error {
	if err := checkFD(fd); err != nil {
		return err
	}

	p.fdMu.Lock()
	if _, ok := p.get(fd); !ok {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}
	p.fds[fd] = fdInfo{}
	p.fdMu.Unlock()

	if p.closed.Load() {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks for up to timeoutMs (-1 for indefinitely), dispatching any
// ready callbacks inline. It returns the sum of the counts reported by the
// non-internal callbacks it invoked.
func (p *poller) wait(buf *eventBuf, timeoutMs int, exec func(func())) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	n, err := unix.EpollWait(p.epfd, buf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	var dispatched int
	for i := 0; i < n; i++ {
		fd := int(buf[i].Fd)
		if fd < 0 {
			continue
		}
		info := p.lookup(fd)
		if !info.active || info.callback == nil {
			continue
		}
		events := epollToEvents(buf[i].Events)
		if info.internal {
			info.callback(events)
			continue
		}
		exec(func() { dispatched += info.callback(events) })
	}
	return dispatched, nil
}

// eventsToEpoll converts IOEvents to epoll event flags.
func eventsToEpoll(events IOEvents, oneShot bool) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	if oneShot {
		epollEvents |= unix.EPOLLONESHOT
	}
	return epollEvents
}

// epollToEvents converts epoll event flags to IOEvents.
func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
