package shellloop

import (
	"os"
	"sync"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/joeycumines/go-browsershell/internal/runloop"
)

// Counts tracks the lifetime of one kind of registry entry. Registered is
// always Unregistered + Live.
type Counts struct {
	Registered   uint64
	Unregistered uint64
	Live         uint64
}

func (c *Counts) add() {
	c.Registered++
	c.Live++
}

func (c *Counts) remove() {
	c.Unregistered++
	c.Live--
}

// Stats is a snapshot of the registry counters, see [Manager.Stats].
type Stats struct {
	Timers    Counts
	Notifiers Counts
	Signals   Counts
}

type timerEntry struct {
	native   *runloop.Timer
	receiver core.WeakReceiver
	id       core.TimerID
}

// fdEntry multiplexes up to one read and one write notifier onto the single
// native watch for a descriptor. armed is the interest currently enabled.
type fdEntry struct {
	read  *core.Notifier
	write *core.Notifier
	armed runloop.IOEvents
}

func (e *fdEntry) slot(kind core.NotificationType) **core.Notifier {
	if kind == core.NotificationWrite {
		return &e.write
	}
	return &e.read
}

type signalEntry struct {
	callback func(signum int)
	done     chan struct{}
	ch       chan os.Signal
	id       core.SignalHandlerID
	signum   int
}

// registry is the table of live timers, notifiers, and signal handlers. All
// fields are guarded by mu, which is never held while user code runs.
type registry struct {
	timers         map[core.TimerID]*timerEntry
	notifiers      map[*core.Notifier]int
	fds            map[int]*fdEntry
	signals        map[int]*signalEntry
	pendingSignals map[int]int
	stats          Stats
	mu             sync.Mutex
	lastTimerID    core.TimerID
	lastSignalID   core.SignalHandlerID
	closed         bool
}

func (r *registry) init() {
	r.timers = make(map[core.TimerID]*timerEntry)
	r.notifiers = make(map[*core.Notifier]int)
	r.fds = make(map[int]*fdEntry)
	r.signals = make(map[int]*signalEntry)
	r.pendingSignals = make(map[int]int)
}

// retireTimerLocked removes the entry and invalidates its native timer.
func (r *registry) retireTimerLocked(e *timerEntry) {
	if _, ok := r.timers[e.id]; !ok {
		return
	}
	delete(r.timers, e.id)
	e.native.Invalidate()
	r.stats.Timers.remove()
}

// interest maps a notification type to the native readiness it needs.
func interest(kind core.NotificationType) runloop.IOEvents {
	if kind == core.NotificationWrite {
		return runloop.EventWrite
	}
	return runloop.EventRead
}

// takeReady returns the armed notifiers that events satisfy, disarming them.
// Errors and hangups satisfy both kinds, so the owner gets to observe them.
func (e *fdEntry) takeReady(events runloop.IOEvents) []*core.Notifier {
	const failed = runloop.EventError | runloop.EventHangup
	var ready []*core.Notifier
	if e.read != nil && e.armed&runloop.EventRead != 0 && events&(runloop.EventRead|failed) != 0 {
		ready = append(ready, e.read)
		e.armed &^= runloop.EventRead
	}
	if e.write != nil && e.armed&runloop.EventWrite != 0 && events&(runloop.EventWrite|failed) != 0 {
		ready = append(ready, e.write)
		e.armed &^= runloop.EventWrite
	}
	return ready
}
