// Package sched holds the event scheduling contract shared by the
// peripherals: deadlines measured in emulated clock cycles, and the
// cycle accounting of the CPU collaborator that drives them.
package sched

// Deadline is the number of emulated cycles until a scheduled event, or
// absent when the event is not scheduled at all. The zero value is
// unscheduled. A disabled sub-event keeps an unscheduled Deadline rather
// than being dropped, so minimum computations stay uniform.
type Deadline struct {
	cycles    int32
	scheduled bool
}

// In returns a Deadline due after the given number of cycles.
func In(cycles int32) Deadline {
	return Deadline{cycles: cycles, scheduled: true}
}

// Never returns an unscheduled Deadline.
func Never() Deadline {
	return Deadline{}
}

// Scheduled reports whether the event is scheduled at all.
func (d Deadline) Scheduled() bool {
	return d.scheduled
}

// Cycles returns the remaining cycles until the event. It may be
// negative inside a catch-up loop. Calling it on an unscheduled
// Deadline returns 0.
func (d Deadline) Cycles() int32 {
	return d.cycles
}

// Elapse accounts for cycles having passed.
func (d Deadline) Elapse(cycles int32) Deadline {
	if !d.scheduled {
		return d
	}
	d.cycles -= cycles
	return d
}

// Due reports whether the deadline has been reached or passed.
func (d Deadline) Due() bool {
	return d.scheduled && d.cycles <= 0
}

// Sooner returns whichever of the two deadlines comes first. An
// unscheduled deadline never comes first.
func (d Deadline) Sooner(other Deadline) Deadline {
	if !d.scheduled {
		return other
	}
	if !other.scheduled || d.cycles <= other.cycles {
		return d
	}
	return other
}

// Peripheral is the event scheduler contract: accumulate the elapsed
// cycles, perform every unit of work whose deadline has been reached
// (possibly several, after a long uninterrupted burst), and return the
// minimum remaining deadline. Callers must propagate the returned
// deadline to the driving Clock so the CPU never steps past it.
type Peripheral interface {
	ProcessEvents(cycles int32) Deadline
}

// Clock is the peripherals' view of the CPU collaborator: a cycle
// counter that increases monotonically between event syncs, and the
// cycle count at which the next mandatory stop occurs.
type Clock struct {
	cycles    int32
	nextEvent Deadline
}

// Cycles returns the cycles executed since the last event sync.
func (c *Clock) Cycles() int32 {
	return c.cycles
}

// Advance adds executed cycles to the counter.
func (c *Clock) Advance(cycles int32) {
	c.cycles += cycles
}

// NextEvent returns the current next mandatory stop.
func (c *Clock) NextEvent() Deadline {
	return c.nextEvent
}

// Constrain lowers the next mandatory stop to the given deadline if it
// comes sooner. Deadlines are relative to the last event sync, like the
// cycle counter itself.
func (c *Clock) Constrain(d Deadline) {
	c.nextEvent = c.nextEvent.Sooner(d)
}

// EventDue reports whether the counter has reached the next stop.
func (c *Clock) EventDue() bool {
	return c.nextEvent.Scheduled() && c.cycles >= c.nextEvent.Cycles()
}

// Lap returns the cycles accumulated since the last event sync and
// resets the counter and the next stop, ready to be re-armed by the
// peripherals' returned deadlines.
func (c *Clock) Lap() int32 {
	cycles := c.cycles
	c.cycles = 0
	c.nextEvent = Never()
	return cycles
}

// Reset zeroes the counter and forgets the next stop.
func (c *Clock) Reset() {
	c.cycles = 0
	c.nextEvent = Never()
}
