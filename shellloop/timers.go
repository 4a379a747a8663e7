package shellloop

import (
	"errors"
	"time"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/joeycumines/logiface"
)

var (
	errNilReceiver      = errors.New("shellloop: nil receiver")
	errNegativeInterval = errors.New("shellloop: negative timer interval")
)

// RegisterTimer arms a native timer that delivers a [core.TimerEvent] to
// receiver after intervalMS milliseconds, and every intervalMS thereafter if
// shouldReload is set. An interval of 0 fires as soon as the loop is idle.
//
// Only a weak reference to receiver is kept. Once it is destroyed or
// collected the timer stops delivering and is retired. It returns
// [core.InvalidTimerID] if receiver is nil, intervalMS is negative, or the
// manager is closed.
func (m *Manager) RegisterTimer(receiver *core.Receiver, intervalMS int, shouldReload bool) core.TimerID {
	var err error
	switch {
	case receiver == nil:
		err = errNilReceiver
	case intervalMS < 0:
		err = errNegativeInterval
	}
	if err != nil {
		m.registrationFailed("timer", err).
			Int("interval_ms", intervalMS).
			Log("shellloop: timer registration failed")
		return core.InvalidTimerID
	}

	r := &m.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		m.registrationFailed("timer", ErrManagerClosed).
			Str("receiver", receiver.Name()).
			Log("shellloop: timer registration failed")
		return core.InvalidTimerID
	}

	id := r.lastTimerID + 1
	interval := time.Duration(intervalMS) * time.Millisecond
	native, err := m.rl.AddTimer(interval, shouldReload, func() int { return m.fireTimer(id) })
	if err != nil {
		m.registrationFailed("timer", err).
			Str("receiver", receiver.Name()).
			Log("shellloop: timer registration failed")
		return core.InvalidTimerID
	}

	r.lastTimerID = id
	r.timers[id] = &timerEntry{
		id:       id,
		native:   native,
		receiver: core.MakeWeak(receiver),
	}
	r.stats.Timers.add()

	return id
}

// UnregisterTimer cancels the timer. Unknown or retired identifiers are
// ignored. A fire already being dispatched is not retracted.
func (m *Manager) UnregisterTimer(id core.TimerID) {
	r := &m.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.timers[id]; ok {
		r.retireTimerLocked(e)
	}
}

// fireTimer is the native timer callback, run on the loop goroutine. It
// returns 1 if the event reached a live receiver.
func (m *Manager) fireTimer(id core.TimerID) int {
	r := &m.reg
	r.mu.Lock()
	e, ok := r.timers[id]
	if !ok {
		r.mu.Unlock()
		return 0
	}
	receiver := e.receiver.Get()
	if receiver == nil || !e.native.Repeats() {
		r.retireTimerLocked(e)
	}
	r.mu.Unlock()

	if receiver == nil {
		m.diag.limited(logiface.LevelDebug, "shellloop.timer.lost_receiver").
			Int64("timer_id", int64(id)).
			Log("shellloop: timer receiver gone, fire dropped")
		return 0
	}

	if !receiver.Dispatch(core.TimerEvent{TimerID: id}) {
		return 0
	}
	return 1
}
