package shellloop

import (
	"errors"
	"maps"
	"os"
	"os/signal"
	"slices"

	"github.com/joeycumines/go-browsershell/core"
	"golang.org/x/sys/unix"
)

// maxSignal bounds the signal numbers accepted by RegisterSignal.
const maxSignal = 65

var (
	errNilSignalCallback = errors.New("shellloop: nil signal callback")
	errInvalidSignal     = errors.New("shellloop: invalid signal number")
	errUntrappableSignal = errors.New("shellloop: signal cannot be trapped")
)

func checkSignal(signum int, callback func(int)) error {
	switch {
	case callback == nil:
		return errNilSignalCallback
	case signum <= 0 || signum >= maxSignal:
		return errInvalidSignal
	case signum == int(unix.SIGKILL) || signum == int(unix.SIGSTOP):
		return errUntrappableSignal
	}
	return nil
}

// RegisterSignal traps signum, running callback on the loop goroutine each
// time it is delivered. Registering a signal that is already trapped
// replaces its callback, and invalidates the previous identifier.
//
// It returns [core.InvalidSignalHandlerID] for signal numbers outside
// 1..64, SIGKILL and SIGSTOP, a nil callback, or a closed manager.
func (m *Manager) RegisterSignal(signum int, callback func(signum int)) core.SignalHandlerID {
	err := checkSignal(signum, callback)

	r := &m.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil && r.closed {
		err = ErrManagerClosed
	}
	if err != nil {
		m.registrationFailed("signal", err).
			Int("signal", signum).
			Log("shellloop: signal registration failed")
		return core.InvalidSignalHandlerID
	}

	r.lastSignalID++
	id := r.lastSignalID

	if e, ok := r.signals[signum]; ok {
		// same trap, new handler
		e.id = id
		e.callback = callback
		r.stats.Signals.remove()
		r.stats.Signals.add()
		return id
	}

	e := &signalEntry{
		id:       id,
		signum:   signum,
		callback: callback,
		ch:       make(chan os.Signal, m.signalBuffer),
		done:     make(chan struct{}),
	}
	signal.Notify(e.ch, unix.Signal(signum))
	go m.forwardSignals(e)

	r.signals[signum] = e
	r.stats.Signals.add()
	return id
}

// UnregisterSignal removes the handler, restoring the default disposition of
// its signal. Unknown or superseded identifiers are ignored.
func (m *Manager) UnregisterSignal(id core.SignalHandlerID) {
	r := &m.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.signals {
		if e.id == id {
			r.stopSignalLocked(e)
			return
		}
	}
}

func (r *registry) stopSignalLocked(e *signalEntry) {
	signal.Stop(e.ch)
	close(e.done)
	delete(r.signals, e.signum)
	delete(r.pendingSignals, e.signum)
	r.stats.Signals.remove()
}

// forwardSignals marshals deliveries of one signal onto the loop goroutine.
func (m *Manager) forwardSignals(e *signalEntry) {
	for {
		select {
		case <-e.done:
			return
		case <-e.ch:
		}
		r := &m.reg
		r.mu.Lock()
		if r.signals[e.signum] == e {
			r.pendingSignals[e.signum]++
		}
		r.mu.Unlock()
		m.signals.Signal()
	}
}

// dispatchSignals is the signal source, run on the loop goroutine. Pending
// deliveries run in signal number order, each against whichever callback is
// registered at the time.
func (m *Manager) dispatchSignals() (n int) {
	r := &m.reg
	r.mu.Lock()
	pending := maps.Clone(r.pendingSignals)
	clear(r.pendingSignals)
	r.mu.Unlock()

	for _, signum := range slices.Sorted(maps.Keys(pending)) {
		for range pending[signum] {
			r.mu.Lock()
			var callback func(int)
			if e, ok := r.signals[signum]; ok {
				callback = e.callback
			}
			r.mu.Unlock()
			if callback == nil {
				break
			}
			m.diag.logger.Debug().
				Int("signal", signum).
				Log("shellloop: dispatching signal")
			callback(signum)
			n++
		}
	}
	return n
}
