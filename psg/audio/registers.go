package audio

import (
	"github.com/valerio/go-psg/psg/addr"
	"github.com/valerio/go-psg/psg/bit"
)

// readMasks holds the bits of each register that read back as 1
// regardless of their written value, indexed by address - NR10.
var readMasks = [0x20]uint8{
	addr.NR10 - addr.NR10: 0x80,
	addr.NR11 - addr.NR10: 0x3F,
	addr.NR12 - addr.NR10: 0x00,
	addr.NR13 - addr.NR10: 0xFF,
	addr.NR14 - addr.NR10: 0xBF,
	0x05:                  0xFF, // unused
	addr.NR21 - addr.NR10: 0x3F,
	addr.NR22 - addr.NR10: 0x00,
	addr.NR23 - addr.NR10: 0xFF,
	addr.NR24 - addr.NR10: 0xBF,
	addr.NR30 - addr.NR10: 0x7F,
	addr.NR31 - addr.NR10: 0xFF,
	addr.NR32 - addr.NR10: 0x9F,
	addr.NR33 - addr.NR10: 0xFF,
	addr.NR34 - addr.NR10: 0xBF,
	0x0F:                  0xFF, // unused
	addr.NR41 - addr.NR10: 0xFF,
	addr.NR42 - addr.NR10: 0x00,
	addr.NR43 - addr.NR10: 0x00,
	addr.NR44 - addr.NR10: 0xBF,
	addr.NR50 - addr.NR10: 0x00,
	addr.NR51 - addr.NR10: 0x00,
	addr.NR52 - addr.NR10: 0x70,
	0x17:                  0xFF,
	0x18:                  0xFF,
	0x19:                  0xFF,
	0x1A:                  0xFF,
	0x1B:                  0xFF,
	0x1C:                  0xFF,
	0x1D:                  0xFF,
	0x1E:                  0xFF,
	0x1F:                  0xFF,
}

// WriteRegister decodes a write to any register in the audio range.
func (a *APU) WriteRegister(address uint16, value uint8) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		a.WriteWaveRAM(address, value)
		return
	}
	switch address {
	case addr.NR10:
		a.WriteNR10(value)
	case addr.NR11:
		a.WriteNR11(value)
	case addr.NR12:
		a.WriteNR12(value)
	case addr.NR13:
		a.WriteNR13(value)
	case addr.NR14:
		a.WriteNR14(value)
	case addr.NR21:
		a.WriteNR21(value)
	case addr.NR22:
		a.WriteNR22(value)
	case addr.NR23:
		a.WriteNR23(value)
	case addr.NR24:
		a.WriteNR24(value)
	case addr.NR30:
		a.WriteNR30(value)
	case addr.NR31:
		a.WriteNR31(value)
	case addr.NR32:
		a.WriteNR32(value)
	case addr.NR33:
		a.WriteNR33(value)
	case addr.NR34:
		a.WriteNR34(value)
	case addr.NR41:
		a.WriteNR41(value)
	case addr.NR42:
		a.WriteNR42(value)
	case addr.NR43:
		a.WriteNR43(value)
	case addr.NR44:
		a.WriteNR44(value)
	case addr.NR50:
		a.WriteNR50(value)
	case addr.NR51:
		a.WriteNR51(value)
	case addr.NR52:
		a.WriteNR52(value)
		return
	default:
		a.logger.Debug("unmapped audio register write",
			"address", address, "value", value)
		return
	}
	a.regs[address-addr.NR10] = value
}

// ReadRegister returns the visible value of any register in the audio
// range. Write-only bits read back as 1.
func (a *APU) ReadRegister(address uint16) uint8 {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		return a.ReadWaveRAM(address)
	}
	if address < addr.NR10 || address > addr.AudioEnd {
		return 0xFF
	}
	if address == addr.NR52 {
		return a.status | readMasks[addr.NR52-addr.NR10]
	}
	return a.regs[address-addr.NR10] | readMasks[address-addr.NR10]
}

// WriteNR10 decodes the channel 1 sweep register. Flipping the sweep
// out of decrease mode after a decrease-mode sweep has been computed
// since the last trigger disables the channel.
func (a *APU) WriteNR10(value uint8) {
	ch := &a.ch1
	ch.shift = bit.ExtractBits(value, 2, 0)
	wasDecrease := ch.decrease
	ch.decrease = bit.IsSet(3, value)
	if ch.sweepOccurred && wasDecrease && !ch.decrease {
		a.playing[0] = false
	}
	ch.sweepOccurred = false
	ch.time = bit.ExtractBits(value, 6, 4)
	if ch.time == 0 {
		ch.time = 8
	}
	a.updateStatus()
}

func (a *APU) WriteNR11(value uint8) {
	a.ch1.envelope.writeDuty(value)
	a.ch1.control.length = 64 - int(a.ch1.envelope.length)
}

func (a *APU) WriteNR12(value uint8) {
	if !a.ch1.envelope.writeControl(value) {
		a.playing[0] = false
		a.updateStatus()
	}
}

func (a *APU) WriteNR13(value uint8) {
	a.ch1.control.frequency = a.ch1.control.frequency&0x700 | uint16(value)
}

func (a *APU) WriteNR14(value uint8) {
	ch := &a.ch1
	ch.control.frequency = ch.control.frequency&0xFF | uint16(value&0x07)<<8
	a.writeStop(&ch.control.stop, &ch.control.length, 0, value)
	if bit.IsSet(7, value) {
		if !a.nextEvent.Scheduled() {
			a.eventDiff = 0
		}
		if a.playing[0] {
			ch.control.hi = !ch.control.hi
		}
		a.nextCh1 = a.eventDiff
		a.playing[0] = ch.envelope.trigger()
		ch.realFrequency = int32(ch.control.frequency)
		ch.sweepStep = ch.time
		ch.sweepEnable = ch.time != 8 || ch.shift != 0
		ch.sweepOccurred = false
		if a.playing[0] && ch.shift > 0 {
			a.playing[0] = ch.updateSweep(true)
		}
		a.reloadLength(&ch.control.length, ch.control.stop, 64)
		a.scheduleEvent()
	}
	a.updateStatus()
}

func (a *APU) WriteNR21(value uint8) {
	a.ch2.envelope.writeDuty(value)
	a.ch2.control.length = 64 - int(a.ch2.envelope.length)
}

func (a *APU) WriteNR22(value uint8) {
	if !a.ch2.envelope.writeControl(value) {
		a.playing[1] = false
		a.updateStatus()
	}
}

func (a *APU) WriteNR23(value uint8) {
	a.ch2.control.frequency = a.ch2.control.frequency&0x700 | uint16(value)
}

func (a *APU) WriteNR24(value uint8) {
	ch := &a.ch2
	ch.control.frequency = ch.control.frequency&0xFF | uint16(value&0x07)<<8
	a.writeStop(&ch.control.stop, &ch.control.length, 1, value)
	if bit.IsSet(7, value) {
		if !a.nextEvent.Scheduled() {
			a.eventDiff = 0
		}
		if a.playing[1] {
			ch.control.hi = !ch.control.hi
		}
		a.nextCh2 = a.eventDiff
		a.playing[1] = ch.envelope.trigger()
		a.reloadLength(&ch.control.length, ch.control.stop, 64)
		a.scheduleEvent()
	}
	a.updateStatus()
}

func (a *APU) WriteNR30(value uint8) {
	a.ch3.enable = bit.IsSet(7, value)
	if a.style != StyleDMG {
		a.ch3.size = bit.IsSet(5, value)
		a.ch3.bank = int(bit.GetBitValue(6, value))
	}
	if !a.ch3.enable {
		a.playing[2] = false
		a.updateStatus()
	}
}

func (a *APU) WriteNR31(value uint8) {
	a.ch3.length = 256 - int(value)
}

func (a *APU) WriteNR32(value uint8) {
	a.ch3.volume = bit.ExtractBits(value, 6, 5)
}

func (a *APU) WriteNR33(value uint8) {
	a.ch3.rate = a.ch3.rate&0x700 | uint16(value)
}

func (a *APU) WriteNR34(value uint8) {
	ch := &a.ch3
	ch.rate = ch.rate&0xFF | uint16(value&0x07)<<8
	a.writeStop(&ch.stop, &ch.length, 2, value)
	wasPlaying := a.playing[2]
	if bit.IsSet(7, value) {
		a.playing[2] = ch.enable
		a.reloadLength(&ch.length, ch.stop, 256)

		if a.style == StyleDMG && wasPlaying && a.playing[2] && ch.readable {
			// Retriggering while the wavetable is being fetched corrupts
			// the start of the table with the bytes around the current
			// window.
			if ch.window < 8 {
				ch.wavedata[0] = ch.wavedata[ch.window>>1]
			} else {
				base := int(ch.window>>1) &^ 3
				copy(ch.wavedata[0:4], ch.wavedata[base:base+4])
			}
		}
		ch.window = 0
		if a.playing[2] {
			if !a.nextEvent.Scheduled() {
				a.eventDiff = 0
			}
			ch.readable = a.style != StyleDMG
			a.scheduleEvent()
			// The first fetch is delayed four cycles past the nominal
			// period.
			a.nextCh3 = a.eventDiff + a.nextEvent.Cycles() + 4 + 2*(2048-int32(ch.rate))
		}
	}
	a.updateStatus()
}

func (a *APU) WriteNR41(value uint8) {
	a.ch4.envelope.writeDuty(value)
	a.ch4.length = 64 - int(a.ch4.envelope.length)
}

func (a *APU) WriteNR42(value uint8) {
	if !a.ch4.envelope.writeControl(value) {
		a.playing[3] = false
		a.updateStatus()
	}
}

func (a *APU) WriteNR43(value uint8) {
	a.ch4.ratio = bit.ExtractBits(value, 2, 0)
	a.ch4.narrow = bit.IsSet(3, value)
	a.ch4.frequency = bit.ExtractBits(value, 7, 4)
}

func (a *APU) WriteNR44(value uint8) {
	ch := &a.ch4
	a.writeStop(&ch.stop, &ch.length, 3, value)
	if bit.IsSet(7, value) {
		if !a.nextEvent.Scheduled() {
			a.eventDiff = 0
		}
		a.nextCh4 = a.eventDiff
		ch.reseed()
		ch.sample = 0
		a.playing[3] = ch.envelope.trigger()
		a.reloadLength(&ch.length, ch.stop, 64)
		a.scheduleEvent()
	}
	a.updateStatus()
}

func (a *APU) WriteNR50(value uint8) {
	a.volumeRight = int32(bit.ExtractBits(value, 2, 0))
	a.volumeLeft = int32(bit.ExtractBits(value, 6, 4))
}

func (a *APU) WriteNR51(value uint8) {
	for i := uint8(0); i < 4; i++ {
		a.rightEnable[i] = bit.IsSet(i, value)
		a.leftEnable[i] = bit.IsSet(i+4, value)
	}
}

// WriteNR52 toggles master power. Powering off silences every voice and
// clears the register file, except the length registers on the original
// hardware; powering on restarts the frame sequencer at step 0.
func (a *APU) WriteNR52(value uint8) {
	enable := bit.IsSet(7, value)
	if !enable && a.enable {
		a.playing = [4]bool{}
		a.enable = false

		a.WriteNR10(0)
		a.WriteNR12(0)
		a.WriteNR13(0)
		a.WriteNR14(0)
		a.WriteNR22(0)
		a.WriteNR23(0)
		a.WriteNR24(0)
		a.WriteNR30(0)
		a.WriteNR32(0)
		a.WriteNR33(0)
		a.WriteNR34(0)
		a.WriteNR42(0)
		a.WriteNR43(0)
		a.WriteNR44(0)
		a.WriteNR50(0)
		a.WriteNR51(0)
		if a.style != StyleDMG {
			a.WriteNR11(0)
			a.WriteNR21(0)
			a.WriteNR31(0)
			a.WriteNR41(0)
		}
		for i := range a.regs {
			if a.style == StyleDMG {
				switch uint16(i) + addr.NR10 {
				case addr.NR11, addr.NR21, addr.NR31, addr.NR41:
					continue
				}
			}
			a.regs[i] = 0
		}
	} else if enable && !a.enable {
		a.enable = true
		a.frame = 7
	}
	a.status = a.status&0x0F | value&0x80
	a.updateStatus()
}

// WriteWaveRAM stores one byte of the wavetable. On the original
// hardware a write while the channel plays lands at the current window
// position, and only during the brief readable period after a fetch.
func (a *APU) WriteWaveRAM(address uint16, value uint8) {
	i := int(address - addr.WaveRAMStart)
	switch {
	case a.style != StyleDMG:
		// CPU accesses target the bank not selected for playback.
		word := &a.ch3.wavedata32[(a.ch3.bank^1)*4+i>>2]
		shift := uint(i&3) * 8
		*word = *word&^(0xFF<<shift) | uint32(value)<<shift
	case !a.playing[2]:
		a.ch3.wavedata[i] = value
	case a.ch3.readable:
		a.ch3.wavedata[a.ch3.window>>1] = value
	}
}

// ReadWaveRAM returns one byte of the wavetable, subject to the same
// window rules as writes.
func (a *APU) ReadWaveRAM(address uint16) uint8 {
	i := int(address - addr.WaveRAMStart)
	switch {
	case a.style != StyleDMG:
		word := a.ch3.wavedata32[(a.ch3.bank^1)*4+i>>2]
		return uint8(word >> (uint(i&3) * 8))
	case !a.playing[2]:
		return a.ch3.wavedata[i]
	case a.ch3.readable:
		return a.ch3.wavedata[a.ch3.window>>1]
	default:
		return 0xFF
	}
}

// Status returns the visible NR52 value.
func (a *APU) Status() uint8 {
	return a.status | 0x70
}

// writeStop decodes the length-enable bit common to the NRx4 registers.
// Setting it on an even sequencer frame clocks the length counter once
// immediately.
func (a *APU) writeStop(stop *bool, length *int, idx int, value uint8) {
	wasStop := *stop
	*stop = bit.IsSet(6, value)
	if !wasStop && *stop && *length > 0 && a.frame&1 == 0 {
		*length--
		if *length == 0 {
			a.playing[idx] = false
		}
	}
}

// reloadLength arms an expired length counter on trigger. Triggering on
// an even sequencer frame with length enabled loses one tick.
func (a *APU) reloadLength(length *int, stop bool, max int) {
	if *length == 0 {
		*length = max
		if stop && a.frame&1 == 0 {
			*length--
		}
	}
}
