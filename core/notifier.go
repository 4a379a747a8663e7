package core

import (
	"fmt"
)

// NotificationType is the readiness a Notifier watches for.
type NotificationType uint8

const (
	NotificationRead NotificationType = 1 << iota
	NotificationWrite
)

// String returns a human-readable representation of the type.
func (t NotificationType) String() string {
	switch t {
	case NotificationRead:
		return "Read"
	case NotificationWrite:
		return "Write"
	default:
		return fmt.Sprintf("NotificationType(%d)", uint8(t))
	}
}

// Notifier is a watch on a file descriptor for read or write readiness. It
// is owned by whoever created it; a Manager only associates with it while it
// is registered.
//
// Watches are one-shot. The callback runs once per readiness event, on the
// loop goroutine, and must re-arm the watch (see shellloop.Manager) if it
// wants to keep watching.
type Notifier struct {
	callback func(n *Notifier)
	receiver WeakReceiver
	fd       int
	kind     NotificationType
}

// NewNotifier returns a notifier for fd. The callback may be nil, if the
// notifier only posts events to a receiver (see SetReceiver).
func NewNotifier(fd int, kind NotificationType, callback func(n *Notifier)) *Notifier {
	return &Notifier{fd: fd, kind: kind, callback: callback}
}

// FD returns the watched descriptor.
func (n *Notifier) FD() int { return n.fd }

// Kind returns the readiness being watched.
func (n *Notifier) Kind() NotificationType { return n.kind }

// SetReceiver makes each activation also post a NotifierActivationEvent to
// r, which is referenced weakly. It must be called before registration.
func (n *Notifier) SetReceiver(r *Receiver) *Notifier {
	n.receiver = MakeWeak(r)
	return n
}

// Receiver returns the receiver set by SetReceiver, or nil if it is gone.
func (n *Notifier) Receiver() *Receiver { return n.receiver.Get() }

// Activate runs the notifier's callback. It is called by the loop when the
// descriptor becomes ready.
func (n *Notifier) Activate() {
	if n.callback != nil {
		n.callback(n)
	}
}
