package audio

// waveVolumeFactors maps the 2-bit volume code to an amplitude
// multiplier: mute, full, half, quarter.
var waveVolumeFactors = [4]int16{0, 4, 2, 1}

// WaveChannel is the wavetable voice. The table is held in two layouts:
// a 16-byte window-indexed image for the original hardware and a pair of
// 32-bit banks that rotate a nibble per step for the later revision.
type WaveChannel struct {
	enable   bool
	size     bool // GBA: play both banks as one 64-sample table
	bank     int
	length   int
	volume   uint8
	rate     uint16
	stop     bool
	window   uint8
	readable bool
	sample   int16

	wavedata   [16]uint8
	wavedata32 [8]uint32
}

// update steps the wavetable one sample and returns the cycles until
// the next step, 2*(2048 - rate).
func (ch *WaveChannel) update(style Style) int32 {
	var sample int16
	switch style {
	case StyleDMG:
		ch.window++
		ch.window &= 0x1F
		sample = int16(ch.wavedata[ch.window>>1])
		if ch.window&1 == 0 {
			sample >>= 4
		}
		sample &= 0xF
	default:
		// Rotate one nibble through the active bank, carrying the top
		// nibble of each word into the next. The carried-out nibble is
		// the sample.
		start, end := 3, 0
		if ch.size {
			start, end = 7, 0
		} else if ch.bank != 0 {
			start, end = 7, 4
		}
		carry := ch.wavedata32[end] & 0x000000F0
		for i := start; i >= end; i-- {
			bits := ch.wavedata32[i] & 0x000000F0
			ch.wavedata32[i] = ((ch.wavedata32[i] & 0x0F0F0F0F) << 4) |
				((ch.wavedata32[i] & 0xF0F0F000) >> 12)
			ch.wavedata32[i] |= carry << 20
			carry = bits
		}
		sample = int16(carry >> 4)
	}
	sample -= 8
	ch.sample = sample * waveVolumeFactors[ch.volume] * 4
	return 2 * (2048 - int32(ch.rate))
}
