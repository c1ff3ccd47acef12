package main

import (
	"github.com/valerio/go-psg/psg"
	"github.com/valerio/go-psg/psg/addr"
)

// squareNote converts a tone frequency in Hz to the 11-bit register
// value of the square channels (tone = 131072 / (2048 - value)).
func squareNote(hz float64) uint16 {
	return 2048 - uint16(131072/hz+0.5)
}

// waveNote is the same conversion for the wavetable channel, which runs
// an octave lower for a given register value.
func waveNote(hz float64) uint16 {
	return 2048 - uint16(65536/hz+0.5)
}

var (
	noteC4 = squareNote(261.63)
	noteD4 = squareNote(293.66)
	noteE4 = squareNote(329.63)
	noteG4 = squareNote(392.00)
	noteA4 = squareNote(440.00)
	noteC5 = squareNote(523.25)

	bassA2 = waveNote(110.00)
	bassF2 = waveNote(87.31)
	bassG2 = waveNote(98.00)
	bassC2 = waveNote(65.41)
)

// lead holds the channel 1 pattern; zero means rest.
var lead = [16]uint16{
	noteC4, 0, noteE4, 0, noteG4, 0, noteC5, 0,
	noteA4, 0, noteG4, noteE4, noteD4, 0, noteC4, 0,
}

// echo trails the lead by one step on channel 2, quieter.
var echo = [16]uint16{
	0, noteC4, 0, noteE4, 0, noteG4, 0, noteC5,
	0, noteA4, 0, noteG4, noteE4, noteD4, 0, noteC4,
}

// bass holds the channel 3 pattern, one note per beat.
var bass = [16]uint16{
	bassC2, 0, 0, 0, bassA2, 0, 0, 0,
	bassF2, 0, 0, 0, bassG2, 0, 0, 0,
}

// triangleTable is the wavetable loaded at startup: a plain triangle
// ramp, two 4-bit samples per byte.
var triangleTable = [16]uint8{
	0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF,
	0xFE, 0xDC, 0xBA, 0x98, 0x76, 0x54, 0x32, 0x10,
}

// ticksPerStep divides the 256 Hz timer tick down to 8 steps per
// second.
const ticksPerStep = 32

// sequencer plays the built-in tune. It is driven entirely by timer
// overflow interrupts, so it only ever runs on the machine's worker
// goroutine.
type sequencer struct {
	m    *psg.Machine
	tick int
	step int
}

func newSequencer(m *psg.Machine) *sequencer {
	return &sequencer{m: m}
}

// restart powers the sound generator, loads the wavetable and arms the
// timer that drives the pattern. Must run on the worker.
func (s *sequencer) restart() {
	s.tick = 0
	s.step = 0

	s.m.WriteRegister(addr.NR52, 0x80)
	s.m.WriteRegister(addr.NR50, 0x77) // full volume both sides
	s.m.WriteRegister(addr.NR51, 0xFF) // every channel on both sides

	for i, b := range triangleTable {
		s.m.WriteRegister(addr.WaveRAMStart+uint16(i), b)
	}
	s.m.WriteRegister(addr.NR30, 0x80)
	s.m.WriteRegister(addr.NR32, 0x20) // full wavetable volume

	// 256 Hz tick: 64 cycles per increment, overflow every 256.
	s.m.WriteRegister(addr.TMA, 0x00)
	s.m.WriteRegister(addr.TIMA, 0x00)
	s.m.WriteRegister(addr.TAC, 0x06)
}

// onTimerIRQ advances the pattern. Called from the timer's overflow
// handler on the worker goroutine.
func (s *sequencer) onTimerIRQ() {
	s.tick++
	if s.tick < ticksPerStep {
		return
	}
	s.tick = 0

	step := s.step
	s.step = (s.step + 1) % len(lead)

	if note := lead[step]; note != 0 {
		s.m.WriteRegister(addr.NR11, 0x80)              // 50% duty
		s.m.WriteRegister(addr.NR12, 0xA3)              // volume 10, decay 3
		s.m.WriteRegister(addr.NR13, uint8(note))       // frequency low
		s.m.WriteRegister(addr.NR14, 0x80|uint8(note>>8))
	}

	if note := echo[step]; note != 0 {
		s.m.WriteRegister(addr.NR21, 0x40) // 25% duty
		s.m.WriteRegister(addr.NR22, 0x62) // volume 6, decay 2
		s.m.WriteRegister(addr.NR23, uint8(note))
		s.m.WriteRegister(addr.NR24, 0x80|uint8(note>>8))
	}

	if note := bass[step]; note != 0 {
		s.m.WriteRegister(addr.NR31, 0x00)
		s.m.WriteRegister(addr.NR33, uint8(note))
		s.m.WriteRegister(addr.NR34, 0x80|uint8(note>>8))
	}

	switch {
	case step%8 == 0:
		// Kick: low, wide noise.
		s.m.WriteRegister(addr.NR42, 0xD1)
		s.m.WriteRegister(addr.NR43, 0x51)
		s.m.WriteRegister(addr.NR44, 0x80)
	case step%2 == 0:
		// Hat: short, bright noise.
		s.m.WriteRegister(addr.NR42, 0x61)
		s.m.WriteRegister(addr.NR43, 0x24)
		s.m.WriteRegister(addr.NR44, 0x80)
	}
}
