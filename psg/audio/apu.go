// Package audio implements the four-voice programmable sound generator:
// two square channels (one with frequency sweep), a wavetable channel
// and a noise channel, mixed to stereo and resampled for the host.
package audio

import (
	"log/slog"

	"github.com/valerio/go-psg/psg/exec"
	"github.com/valerio/go-psg/psg/sched"
)

// Stream receives host sink callbacks from the sample pipeline. Both
// methods are invoked on the goroutine driving the APU.
type Stream interface {
	// PostSampleFrame is called for every generated stereo sample frame.
	PostSampleFrame(left, right int16)
	// PostAudioBuffer is called whenever the resamplers reach the host
	// quota. The receiver may drain them.
	PostAudioBuffer(left, right *Resampler)
}

// Option configures an APU.
type Option func(*APU)

// WithStyle selects the modeled hardware generation.
func WithStyle(style Style) Option {
	return func(a *APU) { a.style = style }
}

// WithLogger sets the APU's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *APU) { a.logger = logger }
}

// WithStream registers a host sample sink.
func WithStream(stream Stream) Option {
	return func(a *APU) { a.stream = stream }
}

// WithSampleRate sets the host output rate in Hz.
func WithSampleRate(rate int) Option {
	return func(a *APU) { a.sampleRate = rate }
}

// WithSamples sets the host buffer quota in sample frames.
func WithSamples(samples int) Option {
	return func(a *APU) { a.samples = samples }
}

// APU is the programmable sound generator. It participates in the event
// scheduler protocol: ProcessEvents catches up on elapsed cycles and
// returns the minimum remaining deadline.
type APU struct {
	style  Style
	clock  *sched.Clock
	sync   *exec.Sync
	stream Stream
	logger *slog.Logger

	enable bool
	status uint8
	regs   [0x20]uint8

	ch1 SquareChannel
	ch2 SquareChannel
	ch3 WaveChannel
	ch4 NoiseChannel

	playing      [4]bool
	forceDisable [4]bool
	leftEnable   [4]bool
	rightEnable  [4]bool

	frame     int
	nextFrame int32
	nextEvent sched.Deadline
	eventDiff int32

	nextCh1, nextCh2, nextCh3, nextCh4 int32
	fadeCh3                            sched.Deadline

	nextSample     int32
	sampleInterval int32

	volumeLeft   int32
	volumeRight  int32
	masterVolume int32

	sampleRate         int
	samples            int
	clockAcc           int32
	lastLeft, lastRight int16
	left, right        *Resampler
}

// New creates an APU bound to the driving clock.
func New(clock *sched.Clock, opts ...Option) *APU {
	a := &APU{
		style:        StyleDMG,
		clock:        clock,
		logger:       slog.Default(),
		masterVolume: VolumeMax,
		sampleRate:   defaultSampleRate,
		samples:      defaultSamples,
		left:         NewResampler(resamplerCapacity),
		right:        NewResampler(resamplerCapacity),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.left.SetRates(ClockFrequency, a.sampleRate)
	a.right.SetRates(ClockFrequency, a.sampleRate)
	a.Reset()
	return a
}

// SetSync attaches the synchronization layer shared with the host.
// Without one the sample pipeline runs free, never applying
// backpressure.
func (a *APU) SetSync(s *exec.Sync) {
	a.sync = s
}

// Reset restores power-on state. Host-facing settings (style, sample
// rate, quota, channel mutes, master volume) survive a reset.
func (a *APU) Reset() {
	a.enable = false
	a.status = 0
	a.regs = [0x20]uint8{}

	a.ch1 = SquareChannel{}
	a.ch2 = SquareChannel{}
	a.ch3 = WaveChannel{}
	a.ch4 = NoiseChannel{}
	a.ch1.envelope.dead = envSilent
	a.ch2.envelope.dead = envSilent
	a.ch4.envelope.dead = envSilent

	a.playing = [4]bool{}
	a.leftEnable = [4]bool{}
	a.rightEnable = [4]bool{}
	a.volumeLeft = 0
	a.volumeRight = 0

	a.frame = 7
	a.nextFrame = frameCycles
	a.nextEvent = sched.In(0)
	a.eventDiff = 0
	a.nextCh1 = 0
	a.nextCh2 = 0
	a.nextCh3 = 0
	a.nextCh4 = 0
	a.fadeCh3 = sched.Never()

	a.nextSample = 0
	a.sampleInterval = defaultSampleInterval
	a.clockAcc = 0
	a.lastLeft = 0
	a.lastRight = 0
	a.left.Clear()
	a.right.Clear()
}

// ProcessEvents accounts for elapsed cycles, performing every frame
// sequencer tick, channel phase update and sample whose deadline has
// passed, and returns the minimum remaining deadline.
func (a *APU) ProcessEvents(cycles int32) sched.Deadline {
	if !a.nextEvent.Scheduled() {
		return sched.Never()
	}
	a.nextEvent = a.nextEvent.Elapse(cycles)
	a.eventDiff += cycles

	for a.nextEvent.Due() {
		a.nextEvent = sched.Never()
		if a.enable {
			a.nextFrame -= a.eventDiff
			frame := -1
			if a.nextFrame <= 0 {
				frame = (a.frame + 1) & 7
				a.frame = frame
				a.nextFrame += frameCycles
			}
			a.nextEvent = a.nextEvent.Sooner(sched.In(a.nextFrame))

			a.stepSquare(0, &a.ch1, &a.nextCh1, frame)
			a.stepSquare(1, &a.ch2, &a.nextCh2, frame)
			a.stepWave(frame)
			a.stepNoise(frame)
		}
		a.updateStatus()

		a.nextSample -= a.eventDiff
		if a.nextSample <= 0 {
			a.sample(a.sampleInterval)
			a.nextSample += a.sampleInterval
		}
		a.nextEvent = a.nextEvent.Sooner(sched.In(a.nextSample))

		a.eventDiff = 0
	}
	return a.nextEvent
}

// stepSquare runs one event iteration for a square voice: envelope tick
// on frame 7, sweep on frames 2 and 6 (channel 1 only), phase update
// when due, and the length counter on even frames.
func (a *APU) stepSquare(idx int, ch *SquareChannel, next *int32, frame int) {
	if a.playing[idx] {
		*next -= a.eventDiff
		if ch.envelope.dead == envActive && frame == 7 {
			ch.envelope.nextStep--
			if ch.envelope.nextStep == 0 {
				phase := ch.phase()
				ch.envelope.step()
				ch.sample = phase * int16(ch.envelope.volume)
			}
		}

		if idx == 0 && ch.sweepEnable && frame&3 == 2 {
			ch.sweepStep--
			if ch.sweepStep == 0 {
				a.playing[0] = ch.updateSweep(false)
			}
		}

		if ch.envelope.dead != envSilent {
			if *next <= 0 {
				*next += ch.update()
			}
			a.nextEvent = a.nextEvent.Sooner(sched.In(*next))
		}
	}

	if ch.control.length > 0 && ch.control.stop && frame&1 == 0 {
		ch.control.length--
		if ch.control.length == 0 {
			a.playing[idx] = false
		}
	}
}

func (a *APU) stepWave(frame int) {
	if a.playing[2] {
		a.nextCh3 -= a.eventDiff
		a.fadeCh3 = a.fadeCh3.Elapse(a.eventDiff)
		if a.fadeCh3.Due() {
			a.ch3.readable = false
			a.fadeCh3 = sched.Never()
		}
		if a.nextCh3 <= 0 {
			if a.style == StyleDMG {
				// The read window stays open for two cycles after a
				// fetch.
				a.fadeCh3 = sched.In(a.nextCh3 + 2)
			}
			a.nextCh3 += a.ch3.update(a.style)
			a.ch3.readable = true
		}
		a.nextEvent = a.nextEvent.Sooner(a.fadeCh3)
		a.nextEvent = a.nextEvent.Sooner(sched.In(a.nextCh3))
	}

	if a.ch3.length > 0 && a.ch3.stop && frame&1 == 0 {
		a.ch3.length--
		if a.ch3.length == 0 {
			a.playing[2] = false
		}
	}
}

// stepNoise runs the envelope and length for the noise voice. The LFSR
// itself is clocked lazily at sample time; at typical divisor settings
// it would dominate the event loop otherwise.
func (a *APU) stepNoise(frame int) {
	ch := &a.ch4
	if a.playing[3] {
		a.nextCh4 -= a.eventDiff
		if ch.envelope.dead == envActive && frame == 7 {
			ch.envelope.nextStep--
			if ch.envelope.nextStep == 0 {
				// A non-negative latched sample refreshes to zero until
				// the next LFSR clock.
				phase := int16(0)
				if ch.sample < 0 {
					phase = -8
				}
				ch.envelope.step()
				ch.sample = phase * int16(ch.envelope.volume)
			}
		}
	}

	if ch.length > 0 && ch.stop && frame&1 == 0 {
		ch.length--
		if ch.length == 0 {
			a.playing[3] = false
		}
	}
}

// samplePSG mixes the four voices into one stereo sample frame,
// catching the noise LFSR up to the present first.
func (a *APU) samplePSG() (int16, int16) {
	if a.playing[3] && a.ch4.envelope.dead != envSilent {
		for a.nextCh4 <= 0 {
			a.nextCh4 += a.ch4.update()
		}
	}

	var left, right int32
	samples := [4]int16{a.ch1.sample, a.ch2.sample, a.ch3.sample, a.ch4.sample}
	for i, s := range samples {
		if !a.playing[i] || a.forceDisable[i] {
			continue
		}
		if a.leftEnable[i] {
			left += int32(s)
		}
		if a.rightEnable[i] {
			right += int32(s)
		}
	}
	left *= 1 + a.volumeLeft
	right *= 1 + a.volumeRight
	return int16(left), int16(right)
}

// sample generates one stereo sample frame, feeds the resamplers and
// applies host backpressure when the quota is reached.
func (a *APU) sample(cycles int32) {
	left, right := a.samplePSG()
	left = int16((int32(left) * a.masterVolume) >> 6)
	right = int16((int32(right) * a.masterVolume) >> 6)

	if a.sync != nil {
		a.sync.LockAudio()
	}
	if a.left.SamplesAvail() < a.samples {
		a.left.AddDelta(a.clockAcc, int32(left)-int32(a.lastLeft))
		a.right.AddDelta(a.clockAcc, int32(right)-int32(a.lastRight))
		a.lastLeft = left
		a.lastRight = right
		a.clockAcc += cycles
		if a.clockAcc >= resampleFrameCycles {
			a.left.EndFrame(a.clockAcc)
			a.right.EndFrame(a.clockAcc)
			a.clockAcc = 0
		}
	}
	produced := a.left.SamplesAvail()

	if a.stream != nil {
		a.stream.PostSampleFrame(left, right)
	}

	wait := produced >= a.samples
	if a.sync != nil {
		a.sync.ProduceAudio(wait)
	}
	if wait && a.stream != nil {
		a.stream.PostAudioBuffer(a.left, a.right)
	}
}

// ReadSamples drains up to min(len(left), len(right)) committed sample
// frames into the two slices and returns how many were written. It is
// the host-side consume operation: a producer parked on backpressure is
// released.
func (a *APU) ReadSamples(left, right []int16) int {
	if len(right) < len(left) {
		left = left[:len(right)]
	}
	if a.sync != nil {
		a.sync.LockAudio()
	}
	n := a.left.ReadSamples(left)
	a.right.ReadSamples(right[:n])
	if a.sync != nil {
		a.sync.ConsumeAudio()
	}
	return n
}

// SamplesAvail returns the number of committed sample frames without
// consuming them.
func (a *APU) SamplesAvail() int {
	if a.sync != nil {
		a.sync.LockAudio()
		defer a.sync.UnlockAudio()
	}
	return a.left.SamplesAvail()
}

// SetBufferSize resizes the host quota and drops any pending samples.
func (a *APU) SetBufferSize(samples int) {
	if a.sync != nil {
		a.sync.LockAudio()
	}
	a.samples = samples
	a.left.Clear()
	a.right.Clear()
	a.clockAcc = 0
	a.lastLeft = 0
	a.lastRight = 0
	if a.sync != nil {
		a.sync.ConsumeAudio()
	}
}

// SetSampleRate changes the host output rate, dropping pending samples.
func (a *APU) SetSampleRate(rate int) {
	if a.sync != nil {
		a.sync.LockAudio()
	}
	a.sampleRate = rate
	a.left.SetRates(ClockFrequency, rate)
	a.right.SetRates(ClockFrequency, rate)
	a.clockAcc = 0
	a.lastLeft = 0
	a.lastRight = 0
	if a.sync != nil {
		a.sync.ConsumeAudio()
	}
}

// SampleRate returns the host output rate in Hz.
func (a *APU) SampleRate() int {
	return a.sampleRate
}

// ForceDisableChannel mutes or unmutes one voice in the mix without
// touching its register-visible state.
func (a *APU) ForceDisableChannel(channel int, disable bool) {
	a.forceDisable[channel] = disable
}

// ChannelDisabled reports whether a voice is muted in the mix.
func (a *APU) ChannelDisabled(channel int) bool {
	return a.forceDisable[channel]
}

// ChannelPlaying reports whether a voice is currently active.
func (a *APU) ChannelPlaying(channel int) bool {
	return a.playing[channel]
}

// Enabled reports the master power bit.
func (a *APU) Enabled() bool {
	return a.enable
}

// updateStatus refreshes the per-channel active bits of the status
// register.
func (a *APU) updateStatus() {
	s := a.status & 0xF0
	for i, p := range a.playing {
		if p {
			s |= 1 << i
		}
	}
	a.status = s
}

// scheduleEvent forces the next event to the clock's live cycle
// position so a register side effect takes hold immediately.
func (a *APU) scheduleEvent() {
	a.nextEvent = sched.In(a.clock.Cycles())
	a.clock.Constrain(a.nextEvent)
}
