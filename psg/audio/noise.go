package audio

// NoiseChannel is the pseudo-random voice: an LFSR clocked by a divisor
// ratio and shift, feeding the shared volume envelope.
type NoiseChannel struct {
	envelope Envelope

	ratio     uint8
	frequency uint8
	narrow    bool // 7-bit feedback instead of 15-bit
	length    int
	stop      bool

	lfsr   uint16
	sample int16
}

// update clocks the LFSR once and returns the cycles until the next
// clock. The register bit that was shifted out feeds back into bit 6,
// and additionally bit 14 in wide mode; the output level comes from the
// new low bit.
func (ch *NoiseChannel) update() int32 {
	lsb := ch.lfsr & 1
	ch.lfsr >>= 1
	if lsb != 0 {
		ch.lfsr ^= 0x40
		if !ch.narrow {
			ch.lfsr ^= 0x4000
		}
	}

	out := int16(-8)
	if ch.lfsr&1 != 0 {
		out = 8
	}
	ch.sample = out * int16(ch.envelope.volume)

	timing := int32(1)
	if ch.ratio != 0 {
		timing = 2 * int32(ch.ratio)
	}
	timing <<= ch.frequency
	return timing * 8
}

// reseed loads the LFSR with the mode's all-ones-equivalent seed.
func (ch *NoiseChannel) reseed() {
	if ch.narrow {
		ch.lfsr = 0x40
	} else {
		ch.lfsr = 0x4000
	}
}
