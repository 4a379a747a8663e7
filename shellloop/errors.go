package shellloop

import (
	"errors"
)

// Standard errors.
var (
	// ErrManagerClosed is returned by registrations on a closed Manager.
	ErrManagerClosed = errors.New("shellloop: manager is closed")

	// ErrDoubleExec is wrapped by the panic value when Exec is called on an
	// implementation that is already running.
	ErrDoubleExec = errors.New("shellloop: exec called on a running implementation")

	// ErrNilNotifier is returned when registering a nil notifier.
	ErrNilNotifier = errors.New("shellloop: nil notifier")

	// ErrInvalidNotifier is returned for a negative descriptor or an unknown
	// notification type.
	ErrInvalidNotifier = errors.New("shellloop: invalid notifier")

	// ErrNotifierRegistered is returned when the notifier is already registered.
	ErrNotifierRegistered = errors.New("shellloop: notifier already registered")

	// ErrNotifierNotRegistered is returned when re-arming an unknown notifier.
	ErrNotifierNotRegistered = errors.New("shellloop: notifier not registered")

	// ErrNotifierConflict is returned when another notifier already watches
	// the same descriptor for the same readiness.
	ErrNotifierConflict = errors.New("shellloop: descriptor already watched for this notification type")
)
