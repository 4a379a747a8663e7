package runloop

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Standard errors.
var (
	// ErrClosed is returned when operations are attempted on a closed run loop.
	ErrClosed = errors.New("runloop: run loop is closed")
)

// FatalError is a panic value that callbacks use to abort the loop. Unlike
// other panics it is not recovered, and unwinds out of RunOnce.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// RunLoop is the native run loop: a poller, a wake-up descriptor, a timer
// heap, and a list of sources, driven one iteration at a time by RunOnce.
type RunLoop struct {
	// Prevent copying
	_ [0]func()

	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter

	bufPool sync.Pool

	poller poller

	timers  timerHeap
	timerMu sync.Mutex

	sources  []*Source
	sourceMu sync.Mutex

	// Wake-up mechanism
	wakePipe      int
	wakePipeWrite int
	wakePending   atomic.Uint32

	maxWait time.Duration

	depth     atomic.Int32
	closeOnce sync.Once
	closed    atomic.Bool
}

// New creates a run loop, acquiring its poller and wake-up descriptors.
func New(opts ...Option) (*RunLoop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeFd, wakeWriteFd, err := createWakeFd()
	if err != nil {
		return nil, fmt.Errorf("runloop: create wake fd: %w", err)
	}

	rl := &RunLoop{
		logger:        cfg.logger,
		limiter:       cfg.limiter,
		maxWait:       cfg.maxWait,
		wakePipe:      wakeFd,
		wakePipeWrite: wakeWriteFd,
	}
	rl.bufPool.New = func() any { return new(eventBuf) }

	if err := rl.poller.init(); err != nil {
		rl.closeWakeFDs()
		return nil, fmt.Errorf("runloop: init poller: %w", err)
	}

	if err := rl.poller.register(wakeFd, EventRead, func(IOEvents) int {
		rl.drainWakeUpPipe()
		return 0
	}, true); err != nil {
		_ = rl.poller.close()
		rl.closeWakeFDs()
		return nil, fmt.Errorf("runloop: register wake fd: %w", err)
	}

	return rl, nil
}

// RunOnce runs a single iteration: due timers, pending sources, one wait for
// I/O readiness, then timers and sources again. If wait is set and nothing
// was processed before the wait, it blocks until a descriptor becomes ready,
// a timer falls due, or [RunLoop.Wake] is called; otherwise the wait does not
// block. It returns the number of events processed.
func (rl *RunLoop) RunOnce(wait bool) (int, error) {
	if rl.closed.Load() {
		return 0, ErrClosed
	}

	rl.depth.Add(1)
	defer rl.depth.Add(-1)

	n := rl.runTimers()
	n += rl.runSources()

	timeout := 0
	if wait && n == 0 && !rl.anyPending() {
		timeout = rl.nextTimeout()
	}

	buf := rl.bufPool.Get().(*eventBuf)
	k, err := rl.poller.wait(buf, timeout, func(fn func()) {
		rl.safeExecute("fd", fn)
	})
	rl.bufPool.Put(buf)
	if err != nil {
		return n, fmt.Errorf("runloop: poll: %w", err)
	}
	n += k

	n += rl.runTimers()
	n += rl.runSources()

	return n, nil
}

// Depth reports how many RunOnce calls are currently in progress, which is
// greater than one while a nested loop runs from inside a callback.
func (rl *RunLoop) Depth() int { return int(rl.depth.Load()) }

// Wake causes a blocked RunOnce to return from its wait. It is safe to call
// from any goroutine, and repeated calls before the loop drains the wake-up
// descriptor write it only once.
func (rl *RunLoop) Wake() {
	if rl.closed.Load() {
		return
	}
	if !rl.wakePending.CompareAndSwap(0, 1) {
		return
	}
	if err := rl.submitWakeup(); err != nil {
		// Reset pending flag on failure so future Wake() can retry
		rl.wakePending.Store(0)
	}
}

// submitWakeup writes to the wake-up descriptor.
func (rl *RunLoop) submitWakeup() error {
	// PERFORMANCE: Native endianness, eventfd requires 8 bytes
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := writeFD(rl.wakePipeWrite, buf)
	return err
}

// drainWakeUpPipe drains the wake-up descriptor, then clears the pending
// flag. A Wake that lands before the flag is cleared is absorbed by the
// iteration that is already awake.
func (rl *RunLoop) drainWakeUpPipe() {
	rl.readWakeUpPipe()
	rl.wakePending.Store(0)
}

func (rl *RunLoop) readWakeUpPipe() {
	var buf [8]byte
	for {
		if _, err := readFD(rl.wakePipe, buf[:]); err != nil {
			break
		}
	}
}

// WatchFD registers a one-shot readiness watch on fd. After cb runs once the
// watch is disarmed until RearmFD. Only one watch per descriptor is allowed.
func (rl *RunLoop) WatchFD(fd int, events IOEvents, cb IOCallback) error {
	if rl.closed.Load() {
		return ErrClosed
	}
	if fd == rl.wakePipe || fd == rl.wakePipeWrite {
		return ErrFDAlreadyRegistered
	}
	return rl.poller.register(fd, events, cb, false)
}

// RearmFD re-enables the watch on fd, for the given interest set.
func (rl *RunLoop) RearmFD(fd int, events IOEvents) error {
	if rl.closed.Load() {
		return ErrClosed
	}
	if fd == rl.wakePipe {
		return ErrFDNotRegistered
	}
	return rl.poller.rearm(fd, events)
}

// UnwatchFD removes the watch on fd. A callback already being dispatched may
// still run once after this returns.
func (rl *RunLoop) UnwatchFD(fd int) error {
	if fd == rl.wakePipe {
		return ErrFDNotRegistered
	}
	return rl.poller.unregister(fd)
}

// WatchCount returns the number of descriptors being watched, excluding the
// loop's own wake-up descriptor.
func (rl *RunLoop) WatchCount() int {
	return rl.poller.count() - 1
}

// Close releases the poller and wake-up descriptors. It is idempotent, and
// must not be called while RunOnce is in progress.
func (rl *RunLoop) Close() error {
	var err error
	rl.closeOnce.Do(func() {
		rl.closed.Store(true)

		rl.timerMu.Lock()
		for _, t := range rl.timers {
			t.valid = false
			t.index = -1
		}
		rl.timers = nil
		rl.timerMu.Unlock()

		rl.sourceMu.Lock()
		for _, s := range rl.sources {
			s.removed.Store(true)
		}
		rl.sources = nil
		rl.sourceMu.Unlock()

		err = rl.poller.close()
		rl.closeWakeFDs()
	})
	return err
}

// Closed reports whether Close has been called.
func (rl *RunLoop) Closed() bool { return rl.closed.Load() }

func (rl *RunLoop) closeWakeFDs() {
	_ = closeFD(rl.wakePipe)
	if rl.wakePipeWrite != rl.wakePipe {
		_ = closeFD(rl.wakePipeWrite)
	}
}

// safeExecute executes a callback with panic recovery.
func (rl *RunLoop) safeExecute(kind string, fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*FatalError); ok {
				panic(r)
			}
			rl.logPanic(kind, r)
		}
	}()

	fn()
}

func (rl *RunLoop) logPanic(kind string, r any) {
	b := rl.logger.Err()
	if b == nil {
		return
	}
	category := "runloop.panic." + kind
	if _, ok := rl.limiter.Allow(category); !ok {
		b.Release()
		return
	}
	b.Str("category", category).
		Any("panic", r).
		Log("runloop: callback panicked")
}
