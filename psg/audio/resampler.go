package audio

// Fixed-point layout of the resampler position accumulator. The integer
// part of the frame offset doubles as the available sample count.
const (
	timeBits = 32
	fracBits = 16
	fracUnit = 1 << fracBits
)

// Resampler converts a stream of amplitude deltas at emulated clock
// resolution into bandlimited-ish output samples at the host rate. Each
// delta is split linearly across the two output samples surrounding its
// exact time; reading integrates the deltas back into levels.
type Resampler struct {
	factor     uint64
	offset     uint64
	buf        []int64
	integrator int64
}

// NewResampler creates a resampler with room for capacity pending output
// samples.
func NewResampler(capacity int) *Resampler {
	return &Resampler{buf: make([]int64, capacity)}
}

// SetRates fixes the clock-to-output conversion ratio and clears any
// pending samples.
func (r *Resampler) SetRates(clockRate, sampleRate int) {
	r.factor = (uint64(sampleRate) << timeBits) / uint64(clockRate)
	r.Clear()
}

// AddDelta records an amplitude change at the given clock time within
// the current frame. Deltas that would land past the buffer are dropped.
func (r *Resampler) AddDelta(time int32, delta int32) {
	pos := r.offset + uint64(time)*r.factor
	idx := int(pos >> timeBits)
	if idx+1 >= len(r.buf) {
		return
	}
	frac := int64((pos >> (timeBits - fracBits)) & (fracUnit - 1))
	r.buf[idx] += int64(delta) * (fracUnit - frac)
	r.buf[idx+1] += int64(delta) * frac
}

// EndFrame commits the given number of clock cycles, making the output
// samples they span available for reading. Subsequent delta times are
// relative to the new frame start. Samples past the buffer capacity are
// dropped.
func (r *Resampler) EndFrame(cycles int32) {
	r.offset += uint64(cycles) * r.factor
	if max := uint64(len(r.buf) - 1); r.offset>>timeBits > max {
		r.offset = max<<timeBits | r.offset&(1<<timeBits-1)
	}
}

// SamplesAvail returns the number of committed output samples.
func (r *Resampler) SamplesAvail() int {
	return int(r.offset >> timeBits)
}

// ReadSamples drains up to len(out) committed samples into out and
// returns how many were written.
func (r *Resampler) ReadSamples(out []int16) int {
	n := r.SamplesAvail()
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		r.integrator += r.buf[i]
		s := r.integrator >> fracBits
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i] = int16(s)
	}
	copy(r.buf, r.buf[n:])
	for i := len(r.buf) - n; i < len(r.buf); i++ {
		r.buf[i] = 0
	}
	r.offset -= uint64(n) << timeBits
	return n
}

// Clear drops all pending samples and resets the output level to zero.
func (r *Resampler) Clear() {
	r.offset = 0
	r.integrator = 0
	for i := range r.buf {
		r.buf[i] = 0
	}
}
