package core

import (
	"sync/atomic"
	"weak"
)

// Receiver is an event target. The loop machinery only holds it through a
// [WeakReceiver], so it is considered gone once Destroy is called or it is
// garbage collected, whichever happens first.
type Receiver struct {
	handler   func(Event)
	name      string
	destroyed atomic.Bool
}

// NewReceiver returns a live receiver that passes events to handler.
func NewReceiver(name string, handler func(Event)) *Receiver {
	return &Receiver{name: name, handler: handler}
}

// Name returns the diagnostic name of the receiver.
func (r *Receiver) Name() string {
	if r == nil {
		return ""
	}
	return r.name
}

// Destroy marks the receiver as gone. Pending and future deliveries to it
// are dropped.
func (r *Receiver) Destroy() {
	if r != nil {
		r.destroyed.Store(true)
	}
}

// Alive reports whether the receiver can still receive events.
func (r *Receiver) Alive() bool {
	return r != nil && !r.destroyed.Load()
}

// Dispatch delivers ev to the handler, returning false if the receiver is
// gone.
func (r *Receiver) Dispatch(ev Event) bool {
	if !r.Alive() {
		return false
	}
	if r.handler != nil {
		r.handler(ev)
	}
	return true
}

// WeakReceiver is a non-owning, liveness-checked reference to a Receiver.
type WeakReceiver struct {
	p weak.Pointer[Receiver]
}

// MakeWeak returns a weak reference to r.
func MakeWeak(r *Receiver) WeakReceiver {
	return WeakReceiver{p: weak.Make(r)}
}

// Get returns the receiver, or nil if it was destroyed or collected.
func (w WeakReceiver) Get() *Receiver {
	r := w.p.Value()
	if !r.Alive() {
		return nil
	}
	return r
}
