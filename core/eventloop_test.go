package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeImplementation struct {
	pumps    []PumpMode
	onPump   func()
	exitCode int
	exit     bool
	wakes    int
}

func (x *fakeImplementation) Exec() int { return x.exitCode }

func (x *fakeImplementation) Pump(mode PumpMode) int {
	x.pumps = append(x.pumps, mode)
	if x.onPump != nil {
		x.onPump()
	}
	return 1
}

func (x *fakeImplementation) Quit(code int) {
	x.exit = true
	x.exitCode = code
}

func (x *fakeImplementation) Wake() { x.wakes++ }

func (x *fakeImplementation) WasExitRequested() bool { return x.exit }

type fakeManager struct {
	impl   *fakeImplementation
	posted int
}

func (x *fakeManager) MakeImplementation() Implementation { return x.impl }

func (x *fakeManager) RegisterTimer(*Receiver, int, bool) TimerID { return InvalidTimerID }

func (x *fakeManager) UnregisterTimer(TimerID) {}

func (x *fakeManager) RegisterNotifier(*Notifier) error { return nil }

func (x *fakeManager) UnregisterNotifier(*Notifier) {}

func (x *fakeManager) DidPostEvent() { x.posted++ }

func (x *fakeManager) RegisterSignal(int, func(int)) SignalHandlerID {
	return InvalidSignalHandlerID
}

func (x *fakeManager) UnregisterSignal(SignalHandlerID) {}

func TestEventLoop_PostWakesManager(t *testing.T) {
	m := &fakeManager{impl: &fakeImplementation{}}
	q := NewEventQueue()
	l := NewEventLoop(m, q)
	assert.Same(t, m, l.Manager())

	l.Post(NewReceiver("r", nil), CustomEvent{Kind: 1})
	assert.Equal(t, 1, m.posted)
	assert.Equal(t, 1, q.Pending())

	l.Quit(3)
	assert.True(t, l.WasExitRequested())
	assert.Equal(t, 3, l.Exec())
	l.Wake()
	assert.Equal(t, 1, m.impl.wakes)
}

func TestEventLoop_SpinUntil(t *testing.T) {
	impl := &fakeImplementation{}
	l := NewEventLoop(&fakeManager{impl: impl}, NewEventQueue())

	var n int
	impl.onPump = func() { n++ }
	assert.True(t, l.SpinUntil(func() bool { return n == 3 }))
	assert.Equal(t, []PumpMode{PumpWaitForEvents, PumpWaitForEvents, PumpWaitForEvents}, impl.pumps)

	impl.onPump = func() { impl.Quit(1) }
	assert.False(t, l.SpinUntil(func() bool { return false }))
}

func TestIdentifiers(t *testing.T) {
	assert.False(t, InvalidTimerID.Valid())
	assert.False(t, TimerID(0).Valid())
	assert.True(t, TimerID(1).Valid())
	assert.False(t, InvalidSignalHandlerID.Valid())
	assert.Equal(t, "DontWaitForEvents", PumpDontWaitForEvents.String())
	assert.Equal(t, "Timer", EventTypeTimer.String())
	assert.Equal(t, "Write", NotificationWrite.String())
}
