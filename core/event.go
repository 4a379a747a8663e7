package core

import (
	"fmt"
)

// EventType discriminates the events delivered to a Receiver.
type EventType int

const (
	EventTypeInvalid EventType = iota
	EventTypeTimer
	EventTypeNotifierActivation
	EventTypeCustom
)

// String returns a human-readable representation of the type.
func (t EventType) String() string {
	switch t {
	case EventTypeTimer:
		return "Timer"
	case EventTypeNotifierActivation:
		return "NotifierActivation"
	case EventTypeCustom:
		return "Custom"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is an application-level event.
type Event interface {
	Type() EventType
}

// TimerEvent is posted to a receiver each time one of its timers fires.
type TimerEvent struct {
	TimerID TimerID
}

// Type implements Event.
func (TimerEvent) Type() EventType { return EventTypeTimer }

// NotifierActivationEvent is posted when a notifier's descriptor becomes
// ready, for receivers that prefer events over notifier callbacks.
type NotifierActivationEvent struct {
	FD   int
	Kind NotificationType
}

// Type implements Event.
func (NotifierActivationEvent) Type() EventType { return EventTypeNotifierActivation }

// CustomEvent carries an arbitrary application payload, e.g. a navigation
// request posted by tab lifecycle code, or data from an IPC reader.
type CustomEvent struct {
	Payload any
	Kind    int
}

// Type implements Event.
func (CustomEvent) Type() EventType { return EventTypeCustom }
