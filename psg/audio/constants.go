package audio

// ClockFrequency is the emulated core clock in Hz.
const ClockFrequency = 0x400000

// VolumeMax is the unit master volume. Values below it attenuate the
// final mix, which is scaled as (sample * volume) >> 6.
const VolumeMax = 0x100

const (
	// frameCycles is the frame sequencer period: 512 Hz at the core clock.
	frameCycles = ClockFrequency >> 9

	// defaultSampleInterval is the number of cycles between generated
	// stereo sample frames (32768 Hz).
	defaultSampleInterval = 128

	// resampleFrameCycles is how many cycles of deltas accumulate in the
	// resamplers before a frame boundary is committed.
	resampleFrameCycles = 0x1000

	// resamplerCapacity over-provisions the resampler buffers so the host
	// quota can be resized without reallocating.
	resamplerCapacity = 0x4000

	defaultSampleRate = 96000
	defaultSamples    = 512
)

// Style selects the hardware generation being modeled. The generations
// differ in wavetable memory behavior and in which registers survive a
// power-off.
type Style int

const (
	// StyleDMG models the original hardware, including the wavetable
	// retrigger corruption quirk and the read window fade.
	StyleDMG Style = iota
	// StyleGBA models the later revision: dual-bank rotating wavetable,
	// no retrigger corruption.
	StyleGBA
)
