package runloop

import (
	"errors"
	"sync"
)

// initialFDs is the starting size of the descriptor table, it grows on demand.
const initialFDs = 256

// MaxFDLimit is the maximum FD value we support for dynamic growth.
const MaxFDLimit = 100000000

// IOEvents represents the type of I/O events to monitor.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// Standard errors.
var (
	ErrFDOutOfRange        = errors.New("runloop: fd out of range (max 100000000)")
	ErrFDAlreadyRegistered = errors.New("runloop: fd already registered")
	ErrFDNotRegistered     = errors.New("runloop: fd not registered")
	ErrPollerClosed        = errors.New("runloop: poller closed")
)

// IOCallback is the callback type for I/O events. It returns the number of
// events it actually processed.
type IOCallback func(IOEvents) int

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback IOCallback
	events   IOEvents
	active   bool
	// internal watches (the wake-up descriptor) are level-triggered, stay
	// armed, and are not counted as processed events
	internal bool
}

// fdTable is the platform independent half of the poller, indexing callbacks
// by descriptor.
type fdTable struct {
	fds  []fdInfo
	fdMu sync.RWMutex
}

func checkFD(fd int) error {
	if fd < 0 || fd >= MaxFDLimit {
		return ErrFDOutOfRange
	}
	return nil
}

// insert must be called with fdMu held.
func (t *fdTable) insert(fd int, info fdInfo) error {
	if fd >= len(t.fds) {
		newSize := max(fd*2+1, initialFDs)
		if newSize > MaxFDLimit {
			newSize = MaxFDLimit + 1
		}
		newFds := make([]fdInfo, newSize)
		copy(newFds, t.fds)
		t.fds = newFds
	}
	if t.fds[fd].active {
		return ErrFDAlreadyRegistered
	}
	t.fds[fd] = info
	return nil
}

// get must be called with fdMu held (read or write).
func (t *fdTable) get(fd int) (fdInfo, bool) {
	if fd < 0 || fd >= len(t.fds) || !t.fds[fd].active {
		return fdInfo{}, false
	}
	return t.fds[fd], true
}

// lookup copies the info for fd under the read lock.
func (t *fdTable) lookup(fd int) fdInfo {
	t.fdMu.RLock()
	info, _ := t.get(fd)
	t.fdMu.RUnlock()
	return info
}

// count reports the number of active descriptors, including internal ones.
func (t *fdTable) count() (n int) {
	t.fdMu.RLock()
	defer t.fdMu.RUnlock()
	for i := range t.fds {
		if t.fds[i].active {
			n++
		}
	}
	return n
}
