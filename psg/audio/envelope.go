package audio

import "github.com/valerio/go-psg/psg/bit"

// Envelope dead states. A dead envelope is skipped by the frame
// sequencer until a register write revives it.
const (
	envActive = iota
	envHeld   // volume can no longer move but the channel still sounds
	envSilent // volume reached zero with no way back up
)

// Envelope holds the volume envelope and duty/length-load fields shared
// by the square and noise channels (NRx1/NRx2).
type Envelope struct {
	length   uint8
	duty     uint8
	stepTime uint8
	increase bool
	initial  uint8

	volume   int
	nextStep uint8
	dead     int
}

// writeDuty decodes the duty/length register (NRx1).
func (e *Envelope) writeDuty(value uint8) {
	e.length = bit.ExtractBits(value, 5, 0)
	e.duty = bit.ExtractBits(value, 7, 6)
}

// writeControl decodes the volume envelope register (NRx2) and reports
// whether the channel's DAC stays powered. Writing it outside a trigger
// recomputes the dead state against the current volume.
func (e *Envelope) writeControl(value uint8) bool {
	e.stepTime = bit.ExtractBits(value, 2, 0)
	e.increase = bit.IsSet(3, value)
	e.initial = bit.ExtractBits(value, 7, 4)
	if e.stepTime == 0 {
		if e.volume != 0 {
			e.dead = envHeld
		} else {
			e.dead = envSilent
		}
	} else if !e.increase && e.volume == 0 {
		e.dead = envSilent
	} else if e.increase && e.volume == 15 {
		e.dead = envHeld
	} else {
		e.dead = envActive
	}
	e.nextStep = e.stepTime
	return e.initial != 0 || e.increase
}

// trigger restarts the envelope from its initial volume and reports
// whether the channel's DAC stays powered.
func (e *Envelope) trigger() bool {
	e.volume = int(e.initial)
	if e.stepTime != 0 {
		e.dead = envActive
	} else if e.volume != 0 {
		e.dead = envHeld
	} else {
		e.dead = envSilent
	}
	e.nextStep = e.stepTime
	return e.initial != 0 || e.increase
}

// step applies one envelope tick. Volume is clamped into [0, 15];
// hitting a rail marks the envelope dead.
func (e *Envelope) step() {
	if e.increase {
		e.volume++
	} else {
		e.volume--
	}
	if e.volume >= 15 {
		e.volume = 15
		e.dead = envHeld
	} else if e.volume <= 0 {
		e.volume = 0
		e.dead = envSilent
	} else {
		e.nextStep = e.stepTime
	}
}
