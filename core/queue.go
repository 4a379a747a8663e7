package core

import (
	"sync"
	"sync/atomic"
)

type queuedEvent struct {
	event    Event
	receiver WeakReceiver
}

// EventQueue holds application events posted from any goroutine, until the
// loop goroutine delivers them in FIFO order.
type EventQueue struct {
	queue   []queuedEvent
	mu      sync.Mutex
	dropped atomic.Uint64
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Post queues ev for r. Only a weak reference to r is kept.
func (q *EventQueue) Post(r *Receiver, ev Event) {
	q.mu.Lock()
	q.queue = append(q.queue, queuedEvent{event: ev, receiver: MakeWeak(r)})
	q.mu.Unlock()
}

// Pending returns the number of queued events.
func (q *EventQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Dropped returns the number of events discarded because their receiver was
// gone by the time they were delivered.
func (q *EventQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Process delivers up to budget queued events (all of them if budget <= 0),
// returning how many were delivered and whether more remain. Events posted
// while processing wait for the next call. It must only be called by the
// loop goroutine. If a handler panics, the undelivered remainder of the
// batch is put back at the front of the queue before the panic continues.
func (q *EventQueue) Process(budget int) (delivered int, more bool) {
	q.mu.Lock()
	n := len(q.queue)
	if budget > 0 && budget < n {
		n = budget
	}
	batch := make([]queuedEvent, n)
	copy(batch, q.queue)
	q.queue = append(q.queue[:0], q.queue[n:]...)
	q.mu.Unlock()

	var next int
	defer func() {
		if next < len(batch) {
			q.mu.Lock()
			q.queue = append(batch[next:len(batch):len(batch)], q.queue...)
			q.mu.Unlock()
		}
	}()

	for next < len(batch) {
		item := batch[next]
		next++
		if r := item.receiver.Get(); r != nil && r.Dispatch(item.event) {
			delivered++
		} else {
			q.dropped.Add(1)
		}
	}

	return delivered, q.Pending() > 0
}
