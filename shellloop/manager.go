package shellloop

import (
	"fmt"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/joeycumines/go-browsershell/internal/runloop"
	"github.com/joeycumines/logiface"
)

// Manager owns the native run loop and the registry of everything armed on
// it. It implements [core.Manager].
//
// There is meant to be one Manager per process, constructed at startup and
// passed to whatever needs it. All methods other than Close are safe to call
// from any goroutine.
type Manager struct {
	// Prevent copying
	_ [0]func()

	rl      *runloop.RunLoop
	queue   *core.EventQueue
	posted  *runloop.Source
	signals *runloop.Source
	diag    diagnostics
	reg     registry

	eventBudget  int
	signalBuffer int
}

var _ core.Manager = (*Manager)(nil)

// NewManager creates the native run loop. A non-nil error means the process
// has no usable run loop, which callers should treat as fatal.
func NewManager(opts ...Option) (*Manager, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	rl, err := runloop.New(
		runloop.WithLogger(cfg.logger),
		runloop.WithLimiter(cfg.limiter),
		runloop.WithMaxWait(cfg.maxWait),
	)
	if err != nil {
		cfg.logger.Crit().
			Err(err).
			Log("shellloop: failed to create native run loop")
		return nil, fmt.Errorf("shellloop: create run loop: %w", err)
	}

	m := &Manager{
		rl:           rl,
		queue:        core.NewEventQueue(),
		diag:         diagnostics{logger: cfg.logger, limiter: cfg.limiter},
		eventBudget:  cfg.eventBudget,
		signalBuffer: cfg.signalBuffer,
	}
	m.reg.init()
	m.posted = rl.AddSource(m.processPosted)
	m.signals = rl.AddSource(m.dispatchSignals)

	return m, nil
}

// MakeImplementation returns a new, idle implementation driving the
// manager's run loop. Several may exist at once, e.g. a nested loop run by
// a modal dialog; each keeps its own exit state.
func (m *Manager) MakeImplementation() core.Implementation {
	return &Implementation{m: m}
}

// EventQueue returns the queue that implementations deliver posted events
// from. Posting to it directly must be followed by DidPostEvent.
func (m *Manager) EventQueue() *core.EventQueue { return m.queue }

// DidPostEvent wakes the loop to deliver newly posted events.
func (m *Manager) DidPostEvent() { m.posted.Signal() }

// Post queues ev for r and wakes the loop.
func (m *Manager) Post(r *core.Receiver, ev core.Event) {
	m.queue.Post(r, ev)
	m.DidPostEvent()
}

// processPosted is the posted event source, run on the loop goroutine.
func (m *Manager) processPosted() int {
	defer func() {
		// budget exhausted, or a handler panicked part way through
		if m.queue.Pending() > 0 {
			m.posted.Signal()
		}
	}()
	delivered, _ := m.queue.Process(m.eventBudget)
	return delivered
}

// Stats returns a snapshot of the registry counters.
func (m *Manager) Stats() Stats {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	return m.reg.stats
}

// Close unregisters every outstanding timer, notifier, and signal handler,
// then releases the native run loop. It is idempotent. It must not be called
// while an implementation is executing.
func (m *Manager) Close() error {
	r := &m.reg
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	for _, e := range r.timers {
		r.retireTimerLocked(e)
	}
	for n := range r.notifiers {
		m.removeNotifierLocked(n)
	}
	for _, e := range r.signals {
		r.stopSignalLocked(e)
	}
	stats := r.stats
	r.mu.Unlock()

	m.posted.Remove()
	m.signals.Remove()

	err := m.rl.Close()

	m.diag.logger.Debug().
		Uint64("timers", stats.Timers.Registered).
		Uint64("notifiers", stats.Notifiers.Registered).
		Uint64("signals", stats.Signals.Registered).
		Uint64("dropped_events", m.queue.Dropped()).
		Log("shellloop: manager closed")

	if err != nil {
		return fmt.Errorf("shellloop: close run loop: %w", err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (m *Manager) Closed() bool {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	return m.reg.closed
}

func (m *Manager) registrationFailed(kind string, err error) *logiface.Builder[logiface.Event] {
	return m.diag.always(logiface.LevelWarning, "shellloop."+kind+".register").Err(err)
}
