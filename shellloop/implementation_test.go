package shellloop

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-browsershell/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPump_WakeFromOtherGoroutine(t *testing.T) {
	m := newTestManager(t, WithMaxWait(time.Minute))
	impl := m.MakeImplementation()

	woke := make(chan time.Time, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		woke <- time.Now()
		impl.Wake()
	}()

	n := impl.Pump(core.PumpWaitForEvents)
	returned := time.Now()
	assert.Equal(t, 0, n, "wake processes nothing")
	select {
	case at := <-woke:
		assert.Less(t, returned.Sub(at), 100*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("Pump returned without Wake")
	}
}

func TestPump_DontWaitNeverBlocks(t *testing.T) {
	m := newTestManager(t, WithMaxWait(time.Minute))
	impl := m.MakeImplementation()

	rec := newRecorder("far")
	require.True(t, m.RegisterTimer(rec.Receiver, 60_000, false).Valid())

	start := time.Now()
	assert.Equal(t, 0, impl.Pump(core.PumpDontWaitForEvents))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestExec_QuitBeforeExecReturnsImmediately(t *testing.T) {
	m := newTestManager(t, WithMaxWait(time.Minute))
	impl := m.MakeImplementation()

	impl.Quit(42)
	assert.True(t, impl.WasExitRequested())

	start := time.Now()
	assert.Equal(t, 42, impl.Exec())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, StateStopped, impl.(*Implementation).State())

	// sticky
	impl.Quit(1)
	assert.Equal(t, 42, impl.Exec())
}

func TestExec_QuitFromOtherGoroutine(t *testing.T) {
	m := newTestManager(t, WithMaxWait(time.Minute))
	impl := m.MakeImplementation()

	quitAt := make(chan time.Time, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		quitAt <- time.Now()
		impl.Quit(7)

		// duplicates never overwrite the first code
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				impl.Quit(100 + i)
			}()
		}
		wg.Wait()
	}()

	assert.Equal(t, StateIdle, impl.(*Implementation).State())
	code := impl.Exec()
	returned := time.Now()
	assert.Equal(t, 7, code)
	assert.Less(t, returned.Sub(<-quitAt), 100*time.Millisecond)
	assert.Equal(t, 7, impl.(*Implementation).ExitCode())
}

func TestQuit_ConcurrentFirstWriterWins(t *testing.T) {
	m := newTestManager(t)
	impl := m.MakeImplementation().(*Implementation)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		order []int
	)
	start := make(chan struct{})
	for i := 1; i <= 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			mu.Lock()
			impl.Quit(i)
			order = append(order, i)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, order, 32)
	assert.Equal(t, order[0], impl.ExitCode())
	assert.Equal(t, order[0], impl.Exec())
}

func TestExec_DoubleExecPanics(t *testing.T) {
	m := newTestManager(t)
	impl := m.MakeImplementation()

	rec := core.NewReceiver("reentrant", func(core.Event) {
		impl.Exec()
	})
	require.True(t, m.RegisterTimer(rec, 0, false).Valid())

	require.PanicsWithError(t, ErrDoubleExec.Error(), func() { impl.Exec() })
	runtime.KeepAlive(rec)
	assert.Equal(t, StateStopped, impl.(*Implementation).State())
}

func TestExec_DispatchesUntilQuit(t *testing.T) {
	m := newTestManager(t)
	impl := m.MakeImplementation()

	var ticks int
	rec := core.NewReceiver("ticker", func(core.Event) {
		ticks++
		if ticks == 5 {
			impl.Quit(3)
		}
	})
	require.True(t, m.RegisterTimer(rec, 1, true).Valid())

	assert.Equal(t, 3, impl.Exec())
	runtime.KeepAlive(rec)
	assert.Equal(t, 5, ticks)
}

func TestExec_NestedImplementations(t *testing.T) {
	m := newTestManager(t)
	outer := m.MakeImplementation()

	var innerCode int
	var inner core.Implementation
	closeDialog := core.NewReceiver("dialog", func(core.Event) {
		inner.Quit(9)
	})
	openDialog := core.NewReceiver("opener", func(core.Event) {
		inner = m.MakeImplementation()
		require.True(t, m.RegisterTimer(closeDialog, 5, false).Valid())
		innerCode = inner.Exec()
		assert.False(t, outer.WasExitRequested())
		outer.Quit(1)
	})
	require.True(t, m.RegisterTimer(openDialog, 0, false).Valid())

	assert.Equal(t, 1, outer.Exec())
	runtime.KeepAlive(openDialog)
	runtime.KeepAlive(closeDialog)
	assert.Equal(t, 9, innerCode)
	assert.Equal(t, StateStopped, inner.(*Implementation).State())
}

func TestExec_AfterCloseQuits(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	impl := m.MakeImplementation()
	require.NoError(t, m.Close())

	assert.Equal(t, -1, impl.Exec())
	assert.Equal(t, 0, impl.Pump(core.PumpWaitForEvents))
}
