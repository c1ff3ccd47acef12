package audio

// SquareControl is the timing state shared by the two square channels:
// an 11-bit frequency value, the length counter, and the current phase.
type SquareControl struct {
	frequency uint16
	length    int
	stop      bool
	hi        bool
}

// update flips the output phase and returns the cycles until the next
// flip for the given duty setting. The base period is 4*(2048 - f);
// asymmetric duties split it unevenly between the high and low phases.
func (c *SquareControl) update(duty uint8) int32 {
	c.hi = !c.hi
	period := 4 * (2048 - int32(c.frequency))
	switch duty {
	case 0: // 12.5%
		if c.hi {
			return period
		}
		return period * 7
	case 1: // 25%
		if c.hi {
			return period * 2
		}
		return period * 6
	case 3: // 75%
		if c.hi {
			return period * 6
		}
		return period * 2
	default: // 50%
		return period * 4
	}
}

// SquareChannel is one of the two square-wave voices. The sweep fields
// are wired up for channel 1 only; channel 2 leaves them idle.
type SquareChannel struct {
	envelope Envelope
	control  SquareControl
	sample   int16

	// frequency sweep
	shift         uint8
	decrease      bool
	time          uint8 // sweep step period in sequencer ticks; 8 means off
	sweepStep     uint8
	sweepEnable   bool
	sweepOccurred bool
	realFrequency int32
}

// update advances the phase and refreshes the output sample from the
// current envelope volume.
func (ch *SquareChannel) update() int32 {
	timing := ch.control.update(ch.envelope.duty)
	ch.sample = ch.phase() * int16(ch.envelope.volume)
	return timing
}

// phase returns the signed unit amplitude of the current output phase.
func (ch *SquareChannel) phase() int16 {
	if ch.control.hi {
		return 8
	}
	return -8
}

// updateSweep computes one frequency sweep step and reports whether the
// channel stays enabled. The initial pass run at trigger time validates
// overflow without committing a new frequency; a committed increase
// immediately re-validates the step after it.
func (ch *SquareChannel) updateSweep(initial bool) bool {
	if initial || ch.time != 8 {
		frequency := ch.realFrequency
		if ch.decrease {
			frequency -= frequency >> ch.shift
			if !initial && frequency >= 0 {
				ch.control.frequency = uint16(frequency)
				ch.realFrequency = frequency
			}
		} else {
			frequency += frequency >> ch.shift
			if frequency < 2048 {
				if !initial && ch.shift != 0 {
					ch.control.frequency = uint16(frequency)
					ch.realFrequency = frequency
					if !ch.updateSweep(true) {
						return false
					}
				}
			} else {
				return false
			}
		}
		ch.sweepOccurred = true
	}
	ch.sweepStep = ch.time
	return true
}
