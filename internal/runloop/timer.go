package runloop

import (
	"container/heap"
	"time"
)

// Timer is a native timer armed on a [RunLoop]. It fires its callback on the
// loop goroutine once its deadline passes, and again every interval if it
// repeats, until invalidated.
type Timer struct {
	rl       *RunLoop
	fn       func() int
	when     time.Time
	interval time.Duration
	index    int // heap index, -1 when not scheduled
	repeat   bool
	valid    bool // guarded by rl.timerMu
}

// Interval returns the period the timer was armed with.
func (t *Timer) Interval() time.Duration { return t.interval }

// Repeats reports whether the timer is recurring.
func (t *Timer) Repeats() bool { return t.repeat }

// Valid reports whether the timer may still fire.
func (t *Timer) Valid() bool {
	t.rl.timerMu.Lock()
	defer t.rl.timerMu.Unlock()
	return t.valid
}

// Invalidate disarms the timer. It is idempotent. A fire that is already
// being dispatched on the loop goroutine is not retracted.
func (t *Timer) Invalidate() {
	t.rl.timerMu.Lock()
	defer t.rl.timerMu.Unlock()
	if !t.valid {
		return
	}
	t.valid = false
	if t.index >= 0 {
		heap.Remove(&t.rl.timers, t.index)
	}
}

// timerHeap is a min-heap of timers, ordered by deadline.
type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// AddTimer arms a timer that fires after interval, and then every interval
// if repeat is set. A zero interval fires on the next iteration. Negative
// intervals are treated as zero. The callback returns the number of events
// it actually processed.
func (rl *RunLoop) AddTimer(interval time.Duration, repeat bool, fn func() int) (*Timer, error) {
	if rl.closed.Load() {
		return nil, ErrClosed
	}
	if interval < 0 {
		interval = 0
	}
	t := &Timer{
		rl:       rl,
		fn:       fn,
		interval: interval,
		repeat:   repeat,
		index:    -1,
		valid:    true,
	}

	rl.timerMu.Lock()
	t.when = time.Now().Add(interval)
	heap.Push(&rl.timers, t)
	earliest := t.index == 0
	rl.timerMu.Unlock()

	if earliest {
		// a blocked wait may be sleeping past the new deadline
		rl.Wake()
	}
	return t, nil
}

// TimerCount returns the number of scheduled timers.
func (rl *RunLoop) TimerCount() int {
	rl.timerMu.Lock()
	defer rl.timerMu.Unlock()
	return len(rl.timers)
}

// runTimers executes every timer that was due at the start of the call, and
// reschedules the recurring ones. Timers rescheduled during the pass are not
// fired again until the next pass, so zero interval repeats cannot starve the
// iteration. It returns the sum of the counts reported by the callbacks.
func (rl *RunLoop) runTimers() int {
	now := time.Now()

	rl.timerMu.Lock()
	var due []*Timer
	for len(rl.timers) > 0 && !rl.timers[0].when.After(now) {
		due = append(due, heap.Pop(&rl.timers).(*Timer))
	}
	rl.timerMu.Unlock()

	var fired int
	for _, t := range due {
		rl.timerMu.Lock()
		valid := t.valid
		if valid && !t.repeat {
			t.valid = false
		}
		rl.timerMu.Unlock()
		if !valid {
			continue
		}

		rl.safeExecute("timer", func() { fired += t.fn() })

		if !t.repeat {
			continue
		}
		rl.timerMu.Lock()
		if t.valid && t.index < 0 {
			next := t.when.Add(t.interval)
			if !next.After(now) {
				next = now.Add(t.interval)
			}
			t.when = next
			heap.Push(&rl.timers, t)
		}
		rl.timerMu.Unlock()
	}
	return fired
}

// nextTimeout determines how long to block in poll, in milliseconds.
func (rl *RunLoop) nextTimeout() int {
	maxDelay := rl.maxWait

	rl.timerMu.Lock()
	if len(rl.timers) > 0 {
		delay := time.Until(rl.timers[0].when)
		if delay < 0 {
			delay = 0
		}
		if delay < maxDelay {
			maxDelay = delay
		}
	}
	rl.timerMu.Unlock()

	// Ceiling rounding: if 0 < delta < 1ms, round up to 1ms
	if maxDelay > 0 && maxDelay < time.Millisecond {
		return 1
	}
	return int(maxDelay.Milliseconds())
}
