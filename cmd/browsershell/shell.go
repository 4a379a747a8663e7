package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/joeycumines/go-browsershell/internal/config"
	"github.com/joeycumines/go-browsershell/shellloop"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sys/unix"
)

// eventKindLine tags a CustomEvent carrying one line of stdin.
const eventKindLine = 1

type runOptions struct {
	configPath string
	exitAfter  time.Duration
	stdinFD    int // -1 = not watched
	stdout     io.Writer
	stderr     io.Writer
}

// loadConfig loads and validates the configuration, the defaults if path
// is empty.
func loadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// shell is the application context: the event loop, and the one receiver
// standing in for the window and tab machinery.
type shell struct {
	manager  *shellloop.Manager
	loop     *core.EventLoop
	logger   *logiface.Logger[logiface.Event]
	receiver *core.Receiver
	stdout   io.Writer

	heartbeat core.TimerID
	deadline  core.TimerID
	signals   []core.SignalHandlerID
	stdin     *core.Notifier
	partial   []byte
	lines     int
}

// runShell builds the manager once, wires signals, timers, and stdin into
// it, runs the loop to completion, and tears everything down. It returns
// the loop's exit code.
func runShell(opts runOptions) (int, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return 1, err
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := newLogger(opts.stderr, level)

	m, err := shellloop.NewManager(
		shellloop.WithLogger(logger),
		shellloop.WithMaxWait(cfg.Loop.MaxWait.Duration),
		shellloop.WithEventBudget(cfg.Loop.EventBudget),
		shellloop.WithSignalBuffer(cfg.Signals.Buffer),
		shellloop.WithDiagnosticRates(cfg.DiagnosticRates()),
	)
	if err != nil {
		return 1, err
	}

	s := &shell{
		manager:   m,
		loop:      core.NewEventLoop(m, m.EventQueue()),
		logger:    logger,
		stdout:    opts.stdout,
		heartbeat: core.InvalidTimerID,
		deadline:  core.InvalidTimerID,
	}
	s.receiver = core.NewReceiver("shell", s.handle)

	if err := s.install(cfg, opts); err != nil {
		s.teardown()
		return 1, err
	}

	logger.Info().
		Int("quit_signals", len(s.signals)).
		Dur("heartbeat", cfg.Shell.Heartbeat.Duration).
		Dur("exit_after", opts.exitAfter).
		Bool("watch_stdin", s.stdin != nil).
		Log("browsershell: running")

	code := s.loop.Exec()

	logger.Info().
		Int("code", code).
		Int("lines", s.lines).
		Log("browsershell: exiting")

	if err := s.teardown(); err != nil {
		return code, err
	}
	return code, nil
}

func (s *shell) install(cfg *config.Config, opts runOptions) error {
	sigs, err := cfg.QuitSignals()
	if err != nil {
		return err
	}
	for _, sig := range sigs {
		id := s.manager.RegisterSignal(int(sig), s.onQuitSignal)
		if !id.Valid() {
			return fmt.Errorf("browsershell: cannot trap %s", unix.SignalName(sig))
		}
		s.signals = append(s.signals, id)
	}

	if d := cfg.Shell.Heartbeat.Duration; d > 0 {
		s.heartbeat = s.manager.RegisterTimer(s.receiver, int(d/time.Millisecond), true)
		if !s.heartbeat.Valid() {
			return errors.New("browsershell: cannot register heartbeat timer")
		}
	}

	if opts.exitAfter > 0 {
		s.deadline = s.manager.RegisterTimer(s.receiver, int(opts.exitAfter/time.Millisecond), false)
		if !s.deadline.Valid() {
			return errors.New("browsershell: cannot register exit timer")
		}
	}

	if opts.stdinFD >= 0 {
		s.stdin = core.NewNotifier(opts.stdinFD, core.NotificationRead, s.onStdinReady)
		if err := s.manager.RegisterNotifier(s.stdin); err != nil {
			s.stdin = nil
			return err
		}
	}

	return nil
}

func (s *shell) teardown() error {
	for _, id := range s.signals {
		s.manager.UnregisterSignal(id)
	}
	s.manager.UnregisterTimer(s.heartbeat)
	s.manager.UnregisterTimer(s.deadline)
	if s.stdin != nil {
		s.manager.UnregisterNotifier(s.stdin)
	}

	stats := s.manager.Stats()
	err := s.manager.Close()
	s.logger.Debug().
		Uint64("timers_registered", stats.Timers.Registered).
		Uint64("timers_live", stats.Timers.Live).
		Uint64("notifiers_live", stats.Notifiers.Live).
		Uint64("signals_live", stats.Signals.Live).
		Log("browsershell: torn down")
	return err
}

// handle is the shell receiver, run on the loop goroutine.
func (s *shell) handle(ev core.Event) {
	switch ev := ev.(type) {
	case core.TimerEvent:
		switch ev.TimerID {
		case s.deadline:
			s.logger.Info().Log("browsershell: exit timer fired")
			s.loop.Quit(0)
		case s.heartbeat:
			stats := s.manager.Stats()
			s.logger.Info().
				Uint64("timers", stats.Timers.Live).
				Uint64("notifiers", stats.Notifiers.Live).
				Uint64("signals", stats.Signals.Live).
				Int("pending", s.manager.EventQueue().Pending()).
				Log("browsershell: heartbeat")
		}
	case core.CustomEvent:
		if ev.Kind == eventKindLine {
			s.lines++
			fmt.Fprintf(s.stdout, "line %d: %s\n", s.lines, ev.Payload)
		}
	}
}

func (s *shell) onQuitSignal(signum int) {
	s.logger.Notice().
		Str("signal", unix.SignalName(unix.Signal(signum))).
		Log("browsershell: quit signal received")
	s.loop.Quit(128 + signum)
}

// onStdinReady reads what is available, posting each complete line as an
// event, and re-arms until end of file.
func (s *shell) onStdinReady(n *core.Notifier) {
	var buf [4096]byte
	k, err := unix.Read(n.FD(), buf[:])
	if err == unix.EAGAIN || err == unix.EINTR {
		s.rearmStdin(n)
		return
	}
	if err != nil || k == 0 {
		if len(s.partial) > 0 {
			s.loop.Post(s.receiver, core.CustomEvent{Kind: eventKindLine, Payload: string(s.partial)})
			s.partial = nil
		}
		b := s.logger.Info()
		if err != nil {
			b = b.Err(err)
		}
		b.Log("browsershell: stdin closed")
		s.manager.UnregisterNotifier(n)
		return
	}

	data := append(s.partial, buf[:k]...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.loop.Post(s.receiver, core.CustomEvent{Kind: eventKindLine, Payload: string(data[:i])})
		data = data[i+1:]
	}
	s.partial = append(s.partial[:0:0], data...)
	s.rearmStdin(n)
}

func (s *shell) rearmStdin(n *core.Notifier) {
	if err := s.manager.RearmNotifier(n); err != nil {
		s.logger.Err().
			Err(err).
			Log("browsershell: cannot rearm stdin")
	}
}
