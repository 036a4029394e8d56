// Package timer implements the hierarchical-by-tick timer wheel used for
// recurring and one-shot maintenance callbacks (spec.md §4.5): log/klog
// flush on the admin thread, and TTL-driven housekeeping. Grounded on the
// teacher's callback-dispatch style in internal/ctrl/control.go (named
// callbacks invoked with a caller-supplied arg) and on
// original_source's timing wheel described in spec.md's "Timer wheel" row.
package timer

import (
	"fmt"
	"time"
)

// Callback is invoked when a timer event fires. arg is whatever was
// passed to Insert.
type Callback func(arg interface{})

type event struct {
	cb     Callback
	arg    interface{}
	recur  bool
	ticks  uint64 // delay expressed in ticks, used to reinsert recurring events
	cancel bool
}

// state is the wheel's run state.
type state int

const (
	idle state = iota
	running
	stopped
)

// Wheel is a single-level timer wheel with N slots advanced one tick at
// a time. insert places an event ⌈delay/tick⌉ slots ahead of the current
// slot; execute drains due slots, firing callbacks in insertion order and
// reinserting recurring ones.
type Wheel struct {
	tick    time.Duration
	nslots  int
	maxTick int

	slots   [][]*event
	current int
	st      state
}

// New builds a wheel with the given tick granularity and slot count
// (constants.TimerTickDefault / constants.TimerSlotsDefault by default).
func New(tick time.Duration, nslots int, maxTicksPerExec int) *Wheel {
	w := &Wheel{
		tick:    tick,
		nslots:  nslots,
		maxTick: maxTicksPerExec,
		slots:   make([][]*event, nslots),
	}
	return w
}

// Start transitions the wheel from idle to running. Mirrors
// original_source's recording of "next due timestamp = now + delta";
// here the wheel is purely tick-driven so Start just flips the state.
func (w *Wheel) Start() {
	w.st = running
}

// Stop transitions the wheel to stopped; Execute becomes a no-op.
func (w *Wheel) Stop() {
	w.st = stopped
}

// Insert schedules cb to fire after delay ticks (an error if delay is 0
// or delay >= nslots, per spec.md §4.5). If recur is true, the event is
// reinserted delay ticks after each firing.
func (w *Wheel) Insert(delay int, recur bool, cb Callback, arg interface{}) (*Handle, error) {
	if delay == 0 {
		return nil, fmt.Errorf("timer: delay must be > 0")
	}
	if delay >= w.nslots {
		return nil, fmt.Errorf("timer: delay %d exceeds wheel span %d", delay, w.nslots)
	}
	ev := &event{cb: cb, arg: arg, recur: recur, ticks: uint64(delay)}
	slot := (w.current + delay) % w.nslots
	w.slots[slot] = append(w.slots[slot], ev)
	return &Handle{ev: ev}, nil
}

// Handle lets a caller cancel a previously inserted event.
type Handle struct {
	ev *event
}

// Cancel marks the event so it's skipped (and not reinserted) the next
// time its slot is drained.
func (h *Handle) Cancel() {
	if h != nil && h.ev != nil {
		h.ev.cancel = true
	}
}

// Execute advances the wheel by at most maxTicksPerExec ticks, draining
// each advanced slot and firing its callbacks in insertion order.
// Recurring, non-cancelled events are reinserted ⌈delay/tick⌉ slots
// ahead of the NEW current slot.
func (w *Wheel) Execute() {
	if w.st != running {
		return
	}
	for i := 0; i < w.maxTick; i++ {
		w.advanceOne()
	}
}

func (w *Wheel) advanceOne() {
	w.current = (w.current + 1) % w.nslots
	due := w.slots[w.current]
	w.slots[w.current] = nil

	for _, ev := range due {
		if ev.cancel {
			continue
		}
		ev.cb(ev.arg)
		if ev.recur {
			slot := (w.current + int(ev.ticks)) % w.nslots
			w.slots[slot] = append(w.slots[slot], ev)
		}
	}
}

// Flush fires every remaining event in the wheel regardless of slot,
// in slot order starting from the current slot, then clears the wheel.
// Mirrors original_source's full-drain semantics used at shutdown.
func (w *Wheel) Flush() {
	for i := 0; i < w.nslots; i++ {
		idx := (w.current + i) % w.nslots
		for _, ev := range w.slots[idx] {
			if !ev.cancel {
				ev.cb(ev.arg)
			}
		}
		w.slots[idx] = nil
	}
}
