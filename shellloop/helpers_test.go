package shellloop

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (x *lockedBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.b.Write(p)
}

func (x *lockedBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.b.String()
}

func newTestLogger(w *lockedBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

// recorder is a receiver that records what it is sent. It is only touched
// by the loop goroutine.
type recorder struct {
	*core.Receiver
	events []core.Event
	times  []time.Time
}

func newRecorder(name string) *recorder {
	x := &recorder{}
	x.Receiver = core.NewReceiver(name, func(ev core.Event) {
		x.events = append(x.events, ev)
		x.times = append(x.times, time.Now())
	})
	return x
}

// pumpUntil pumps without blocking until cond is satisfied, failing the test
// after timeout.
func pumpUntil(t *testing.T, impl core.Implementation, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		impl.Pump(core.PumpDontWaitForEvents)
		time.Sleep(time.Millisecond)
	}
}

// pumpFor pumps without blocking for d.
func pumpFor(impl core.Implementation, d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		impl.Pump(core.PumpDontWaitForEvents)
		time.Sleep(time.Millisecond)
	}
}

func newTestPipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func requireCountsBalanced(t *testing.T, c Counts) {
	t.Helper()
	require.Equal(t, c.Registered, c.Unregistered+c.Live, "registered == unregistered + live")
}
