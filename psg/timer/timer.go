// Package timer implements the divider and programmable countdown
// peripheral: a free-running DIV register plus a TIMA counter that
// reloads from TMA and raises an interrupt on overflow.
package timer

import (
	"github.com/valerio/go-psg/psg/addr"
	"github.com/valerio/go-psg/psg/bit"
	"github.com/valerio/go-psg/psg/sched"
)

// divPeriod is the number of CPU cycles between visible DIV increments
// (16384 Hz at the 4 MiHz core clock).
const divPeriod = 256

// tacPeriods maps the TAC clock select (bits 1-0) to the TIMA increment
// period in CPU cycles:
//
//	00 -> 1024 (4096 Hz)
//	01 -> 16   (262144 Hz)
//	10 -> 64   (65536 Hz)
//	11 -> 256  (16384 Hz)
var tacPeriods = [4]int32{1024, 16, 64, 256}

// Timer is the timer peripheral. It participates in the event scheduler
// protocol: ProcessEvents catches up on elapsed cycles and returns the
// minimum remaining deadline, which the caller propagates to the clock.
type Timer struct {
	clock *sched.Clock
	irq   func()

	nextDiv    int32
	nextTima   sched.Deadline
	nextEvent  int32
	eventDiff  int32
	timaPeriod int32

	div  uint8
	tima uint8
	tma  uint8
	tac  uint8
}

// New creates a timer bound to the driving clock. The passed function
// is called whenever TIMA overflows, and should be wired to raise the
// timer interrupt request line.
func New(clock *sched.Clock, irq func()) *Timer {
	t := &Timer{clock: clock, irq: irq}
	t.Reset()
	return t
}

// Reset restores power-on state: DIV rescheduled from zero, TIMA
// stopped.
func (t *Timer) Reset() {
	t.nextDiv = divPeriod
	t.nextTima = sched.Never()
	t.nextEvent = divPeriod
	t.eventDiff = 0
	t.timaPeriod = 1024
	t.div = 0
	t.tima = 0
	t.tma = 0
	t.tac = 0
}

// ProcessEvents accounts for elapsed cycles, performing every divider
// and timer increment whose deadline has passed. Sub-deadlines keep
// their phase across multiple zero crossings, so one large burst is
// indistinguishable from the same cycles split across calls.
func (t *Timer) ProcessEvents(cycles int32) sched.Deadline {
	t.eventDiff += cycles
	t.nextEvent -= cycles
	for t.nextEvent <= 0 {
		t.nextDiv -= t.eventDiff
		for t.nextDiv <= 0 {
			t.div++
			t.nextDiv += divPeriod
		}
		t.nextEvent = t.nextDiv

		if t.nextTima.Scheduled() {
			t.nextTima = t.nextTima.Elapse(t.eventDiff)
			for t.nextTima.Due() {
				t.tima++
				if t.tima == 0 {
					t.tima = t.tma
					if t.irq != nil {
						t.irq()
					}
				}
				t.nextTima = sched.In(t.nextTima.Cycles() + t.timaPeriod)
			}
			if t.nextTima.Cycles() < t.nextEvent {
				t.nextEvent = t.nextTima.Cycles()
			}
		}
		t.eventDiff = 0
	}
	return sched.In(t.nextEvent)
}

// Read returns the visible value of a timer register.
func (t *Timer) Read(address uint16) uint8 {
	switch address {
	case addr.DIV:
		return t.div
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac
	default:
		return 0xFF
	}
}

// Write decodes a write to a timer register.
func (t *Timer) Write(address uint16, value uint8) {
	switch address {
	case addr.DIV:
		t.writeDIV()
	case addr.TIMA:
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.writeTAC(value)
	}
}

// writeDIV resets the visible divider and reschedules its deadline
// relative to the clock's live cycle position.
func (t *Timer) writeDIV() {
	t.div = 0
	t.nextDiv = t.eventDiff + t.clock.Cycles() + divPeriod
	if t.eventDiff+divPeriod < t.nextEvent {
		t.nextEvent = t.eventDiff + divPeriod
		t.clock.Constrain(sched.In(t.nextEvent))
	}
}

// writeTAC selects the TIMA period and starts or stops the countdown.
// A stopped timer keeps an unscheduled deadline rather than dropping
// out of the minimum computation.
func (t *Timer) writeTAC(value uint8) {
	t.tac = value & 0x07
	if bit.IsSet(2, t.tac) {
		t.timaPeriod = tacPeriods[t.tac&0x03]
		t.rescheduleTIMA()
	} else {
		t.nextTima = sched.Never()
	}
}

// rescheduleTIMA arms the TIMA deadline relative to the clock's live
// cycle position and constrains the CPU's next stop.
func (t *Timer) rescheduleTIMA() {
	t.nextTima = sched.In(t.eventDiff + t.clock.Cycles() + t.timaPeriod)
	if t.eventDiff+t.timaPeriod < t.nextEvent {
		t.nextEvent = t.eventDiff + t.timaPeriod
		t.clock.Constrain(sched.In(t.nextEvent))
	}
}
