// Package shellloop adapts the native run loop to the application-wide event
// loop contracts of package core.
//
// A [Manager] is constructed once at startup with [NewManager], handed to
// everything that needs to schedule timers, watch descriptors, or trap
// signals, and torn down with [Manager.Close] at shutdown. Its registry keys
// every live timer, notifier, and signal handler, and arranges for the
// native run loop to call back into it when they fire. Callbacks only ever
// run on the goroutine driving an [Implementation], via [Implementation.Exec]
// or [Implementation.Pump].
//
// # Usage
//
//	m, err := shellloop.NewManager(shellloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	impl := m.MakeImplementation()
//	m.RegisterSignal(int(unix.SIGINT), func(int) { impl.Quit(130) })
//	os.Exit(impl.Exec())
//
// # Cancellation
//
// Unregistering prevents future firings, but a callback the loop goroutine
// has already picked up for dispatch may still run once afterwards.
package shellloop
