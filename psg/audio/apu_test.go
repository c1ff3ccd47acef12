package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-psg/psg/addr"
	"github.com/valerio/go-psg/psg/sched"
)

func newTestAPU(opts ...Option) *APU {
	return New(&sched.Clock{}, opts...)
}

func TestAPU_PowerOnSetsStatusBit(t *testing.T) {
	a := newTestAPU()

	assert.False(t, a.Enabled())
	assert.Equal(t, uint8(0x70), a.ReadRegister(addr.NR52))

	a.WriteRegister(addr.NR52, 0x80)
	assert.True(t, a.Enabled())
	assert.Equal(t, uint8(0xF0), a.ReadRegister(addr.NR52))
}

func TestAPU_ReadMasks(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	tests := []struct {
		address uint16
		write   uint8
		read    uint8
	}{
		{addr.NR10, 0x00, 0x80},
		{addr.NR11, 0x40, 0x7F}, // only the duty bits read back
		{addr.NR13, 0x55, 0xFF}, // write-only
		{addr.NR30, 0x00, 0x7F},
		{addr.NR32, 0x20, 0xBF},
		{addr.NR50, 0x77, 0x77},
		{addr.NR51, 0x21, 0x21},
	}

	for _, tt := range tests {
		a.WriteRegister(tt.address, tt.write)
		assert.Equal(t, tt.read, a.ReadRegister(tt.address), "register %#04x", tt.address)
	}

	assert.Equal(t, uint8(0xFF), a.ReadRegister(0xFF27), "unmapped register")
}

func TestAPU_TriggerMarksChannelActive(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR12, 0xF0) // full volume, no envelope step
	a.WriteRegister(addr.NR14, 0x80)

	assert.True(t, a.ChannelPlaying(0))
	assert.Equal(t, uint8(0x01), a.ReadRegister(addr.NR52)&0x0F)
}

func TestAPU_TriggerWithDeadDACStaysSilent(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR12, 0x00) // zero volume, decreasing
	a.WriteRegister(addr.NR14, 0x80)

	assert.False(t, a.ChannelPlaying(0))
}

func TestAPU_SquareDutyTimings(t *testing.T) {
	tests := []struct {
		duty   uint8
		hi, lo int32
	}{
		{0, 1, 7},
		{1, 2, 6},
		{2, 4, 4},
		{3, 6, 2},
	}

	for _, tt := range tests {
		ch := SquareChannel{}
		ch.control.frequency = 2047 // base period 4
		ch.envelope.duty = tt.duty

		first := ch.update()
		second := ch.update()
		assert.Equal(t, tt.hi*4, first, "duty %d high phase", tt.duty)
		assert.Equal(t, tt.lo*4, second, "duty %d low phase", tt.duty)
	}
}

func TestAPU_EnvelopeStepsOnFrame7(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR12, 0xA1) // volume 10, decrease, period 1
	a.WriteRegister(addr.NR14, 0x80)
	require.Equal(t, 10, a.ch1.envelope.volume)

	// Power-on leaves the sequencer at step 7, so step 7 recurs on the
	// eighth tick.
	a.ProcessEvents(7 * frameCycles)
	assert.Equal(t, 10, a.ch1.envelope.volume)

	a.ProcessEvents(frameCycles)
	assert.Equal(t, 9, a.ch1.envelope.volume)

	a.ProcessEvents(8 * frameCycles)
	assert.Equal(t, 8, a.ch1.envelope.volume)
}

func TestAPU_EnvelopeDeadStates(t *testing.T) {
	e := Envelope{}

	e.writeControl(0xF0) // volume 15, no period
	e.trigger()
	assert.Equal(t, envHeld, e.dead)

	e.writeControl(0x00)
	e.trigger()
	assert.Equal(t, envSilent, e.dead)

	e.writeControl(0xF1)
	e.trigger()
	assert.Equal(t, envActive, e.dead)

	// Decreasing from 1 hits the silent rail.
	e.writeControl(0x11)
	e.trigger()
	e.step()
	assert.Equal(t, envSilent, e.dead)
	assert.Equal(t, 0, e.volume)

	// Increasing into 15 holds.
	e.writeControl(0xE9) // volume 14, increase, period 1
	e.trigger()
	e.step()
	assert.Equal(t, envHeld, e.dead)
	assert.Equal(t, 15, e.volume)
}

func TestAPU_LengthCounterStopsChannel(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR11, 0x3F) // length counter = 1
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR14, 0xC0) // trigger with length enabled
	require.True(t, a.ChannelPlaying(0))

	// The first sequencer tick lands on step 0, which clocks lengths.
	a.ProcessEvents(frameCycles)
	assert.False(t, a.ChannelPlaying(0))
	assert.Equal(t, uint8(0), a.ReadRegister(addr.NR52)&0x0F)
}

func TestAPU_SweepDecreasesFrequency(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR10, 0x19) // period 1, decrease, shift 1
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR13, 100)
	a.WriteRegister(addr.NR14, 0x80)
	require.True(t, a.ChannelPlaying(0))
	require.Equal(t, uint16(100), a.ch1.control.frequency, "initial pass must not commit")

	// Sweep clocks on steps 2 and 6; step 2 is the third tick.
	a.ProcessEvents(3 * frameCycles)
	assert.Equal(t, uint16(50), a.ch1.control.frequency)
	assert.True(t, a.ChannelPlaying(0))
}

func TestAPU_SweepOverflowDisablesChannel(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR10, 0x10) // period 1, increase, shift 0
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR13, 0x00)
	a.WriteRegister(addr.NR14, 0x84) // trigger, frequency 1024
	require.True(t, a.ChannelPlaying(0))

	a.ProcessEvents(3 * frameCycles)
	assert.False(t, a.ChannelPlaying(0), "1024 + 1024 overflows the 11-bit frequency")
}

func TestAPU_SweepInitialOverflowCheck(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR10, 0x11) // period 1, increase, shift 1
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR13, 0xFF)
	a.WriteRegister(addr.NR14, 0x87) // trigger, frequency 2047

	assert.False(t, a.ChannelPlaying(0), "trigger-time sweep validation fails immediately")
}

func TestAPU_SweepDirectionHazard(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR10, 0x19) // decrease, shift 1
	a.WriteRegister(addr.NR12, 0xF0)
	a.WriteRegister(addr.NR13, 100)
	a.WriteRegister(addr.NR14, 0x80)
	require.True(t, a.ChannelPlaying(0))

	// The trigger-time pass counts as a sweep; leaving decrease mode
	// afterwards kills the channel.
	a.WriteRegister(addr.NR10, 0x11)
	assert.False(t, a.ChannelPlaying(0))
}

func TestAPU_NoiseReseed(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR42, 0xF0)
	a.WriteRegister(addr.NR43, 0x00) // wide mode
	a.WriteRegister(addr.NR44, 0x80)
	assert.Equal(t, uint16(0x4000), a.ch4.lfsr)

	a.WriteRegister(addr.NR43, 0x08) // narrow mode
	a.WriteRegister(addr.NR44, 0x80)
	assert.Equal(t, uint16(0x40), a.ch4.lfsr)
}

func TestAPU_NoiseStep(t *testing.T) {
	ch := NoiseChannel{}
	ch.envelope.volume = 15
	ch.lfsr = 0x4000

	// Low bit is clear: plain shift, output from the new low bit.
	timing := ch.update()
	assert.Equal(t, int32(8), timing, "ratio 0, shift 0")
	assert.Equal(t, uint16(0x2000), ch.lfsr)
	assert.Equal(t, int16(-8*15), ch.sample)

	// A set low bit feeds back into bit 6 (and bit 14 in wide mode).
	ch.lfsr = 0x0001
	ch.update()
	assert.Equal(t, uint16(0x4040), ch.lfsr)
	assert.Equal(t, int16(-8*15), ch.sample)

	ch.narrow = true
	ch.lfsr = 0x0001
	ch.update()
	assert.Equal(t, uint16(0x40), ch.lfsr)

	ch.ratio = 3
	ch.frequency = 4
	assert.Equal(t, int32(2*3*8<<4), ch.update())
}

func TestAPU_NoiseEnvelopeTickRefreshesPhase(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.playing[3] = true
	a.ch4.envelope.volume = 10
	a.ch4.envelope.stepTime = 3
	a.ch4.envelope.nextStep = 1
	a.ch4.envelope.dead = envActive

	// A non-negative latched sample reads as the zero phase.
	a.ch4.sample = 80
	a.stepNoise(7)
	assert.Equal(t, int16(0), a.ch4.sample)
	assert.Equal(t, 9, a.ch4.envelope.volume)

	a.ch4.envelope.nextStep = 1
	a.ch4.sample = -80
	a.stepNoise(7)
	assert.Equal(t, int16(-8*8), a.ch4.sample)
}

func TestAPU_PowerOffClearsRegisters(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR11, 0x40)
	a.WriteRegister(addr.NR12, 0xF3)
	a.WriteRegister(addr.NR51, 0xFF)
	a.WriteRegister(addr.NR14, 0x80)
	require.True(t, a.ChannelPlaying(0))

	a.WriteRegister(addr.NR52, 0x00)

	assert.False(t, a.Enabled())
	assert.False(t, a.ChannelPlaying(0))
	assert.Equal(t, uint8(0x70), a.ReadRegister(addr.NR52))
	assert.Equal(t, uint8(0x00), a.ReadRegister(addr.NR12))
	assert.Equal(t, uint8(0x00), a.ReadRegister(addr.NR51))
	// The original hardware keeps length registers across power-off.
	assert.Equal(t, uint8(0x7F), a.ReadRegister(addr.NR11))
}

func TestAPU_PowerOffClearsLengthsOnLaterHardware(t *testing.T) {
	a := newTestAPU(WithStyle(StyleGBA))
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR11, 0x40)
	a.WriteRegister(addr.NR52, 0x00)

	assert.Equal(t, uint8(0x3F), a.ReadRegister(addr.NR11))
}

func TestAPU_PowerOnRestartsSequencer(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)
	a.ProcessEvents(5 * frameCycles)
	a.WriteRegister(addr.NR52, 0x00)
	a.WriteRegister(addr.NR52, 0x80)

	assert.Equal(t, 7, a.frame, "sequencer restarts so the next tick is step 0")
}

func TestAPU_WaveChannelPlaysTable(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR30, 0x80)
	for i := 0; i < 16; i++ {
		a.WriteRegister(addr.WaveRAMStart+uint16(i), 0xAB)
	}
	a.WriteRegister(addr.NR32, 0x20) // full volume
	a.WriteRegister(addr.NR33, 0xFF)
	a.WriteRegister(addr.NR34, 0x87) // trigger, rate 2047
	require.True(t, a.ChannelPlaying(2))
	require.False(t, a.ch3.readable)

	// First fetch lands 4 cycles late: period 2, so 6 cycles in.
	a.ProcessEvents(6)
	assert.Equal(t, uint8(1), a.ch3.window)
	assert.True(t, a.ch3.readable)
	// Window 1 is the low nibble of byte 0: (0xB - 8) * 16.
	assert.Equal(t, int16(48), a.ch3.sample)
}

func TestAPU_WaveVolumeCodes(t *testing.T) {
	tests := []struct {
		code   uint8
		sample int16
	}{
		{0, 0},
		{1, (0xB - 8) * 16},
		{2, (0xB - 8) * 8},
		{3, (0xB - 8) * 4},
	}

	for _, tt := range tests {
		ch := WaveChannel{volume: tt.code}
		for i := range ch.wavedata {
			ch.wavedata[i] = 0xAB
		}
		ch.update(StyleDMG)
		assert.Equal(t, tt.sample, ch.sample, "volume code %d", tt.code)
	}
}

func TestAPU_WaveRetriggerCorruptsTableLow(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR30, 0x80)
	for i := 0; i < 16; i++ {
		a.WriteRegister(addr.WaveRAMStart+uint16(i), uint8(i))
	}
	a.WriteRegister(addr.NR34, 0x80)
	require.True(t, a.ChannelPlaying(2))

	a.ch3.window = 5
	a.ch3.readable = true
	a.WriteRegister(addr.NR34, 0x80)

	assert.Equal(t, uint8(2), a.ch3.wavedata[0], "byte at window>>1 replaces byte 0")
	assert.Equal(t, uint8(0), a.ch3.window)
}

func TestAPU_WaveRetriggerCorruptsTableHigh(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR30, 0x80)
	for i := 0; i < 16; i++ {
		a.WriteRegister(addr.WaveRAMStart+uint16(i), uint8(i))
	}
	a.WriteRegister(addr.NR34, 0x80)

	a.ch3.window = 18 // byte 9, second aligned group
	a.ch3.readable = true
	a.WriteRegister(addr.NR34, 0x80)

	assert.Equal(t, [4]uint8{8, 9, 10, 11}, [4]uint8(a.ch3.wavedata[0:4]))
}

func TestAPU_WaveRAMAccessWhilePlaying(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.WriteRegister(addr.NR30, 0x80)
	a.WriteRegister(addr.WaveRAMStart, 0x12)
	a.WriteRegister(addr.NR34, 0x80)
	require.True(t, a.ChannelPlaying(2))

	a.ch3.readable = false
	assert.Equal(t, uint8(0xFF), a.ReadRegister(addr.WaveRAMStart))
	a.WriteRegister(addr.WaveRAMStart, 0x99) // dropped
	a.ch3.window = 0
	a.ch3.readable = true
	assert.Equal(t, uint8(0x12), a.ReadRegister(addr.WaveRAMStart))
}

func TestAPU_MixerRoutingAndVolume(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)

	a.playing[0] = true
	a.ch1.sample = 100
	a.WriteRegister(addr.NR51, 0x10) // channel 1 left only
	a.WriteRegister(addr.NR50, 0x70) // left volume 7, right 0

	left, right := a.samplePSG()
	assert.Equal(t, int16(800), left)
	assert.Equal(t, int16(0), right)

	a.ForceDisableChannel(0, true)
	left, right = a.samplePSG()
	assert.Equal(t, int16(0), left)
	assert.Equal(t, int16(0), right)
}

func TestAPU_ProcessEventsIsSplitIndependent(t *testing.T) {
	setup := func() *APU {
		a := newTestAPU()
		a.WriteRegister(addr.NR52, 0x80)
		a.WriteRegister(addr.NR10, 0x19)
		a.WriteRegister(addr.NR11, 0x82)
		a.WriteRegister(addr.NR12, 0xA3)
		a.WriteRegister(addr.NR13, 0xC0)
		a.WriteRegister(addr.NR14, 0x80)
		a.WriteRegister(addr.NR22, 0x93)
		a.WriteRegister(addr.NR24, 0xC3)
		a.WriteRegister(addr.NR42, 0xF2)
		a.WriteRegister(addr.NR43, 0x25)
		a.WriteRegister(addr.NR44, 0x80)
		a.WriteRegister(addr.NR51, 0xFF)
		a.WriteRegister(addr.NR50, 0x77)
		return a
	}

	const total = 1 << 20

	whole := setup()
	whole.ProcessEvents(total)

	chunked := setup()
	for done := int32(0); done < total; {
		step := int32(137)
		if total-done < step {
			step = total - done
		}
		chunked.ProcessEvents(step)
		done += step
	}

	assert.Equal(t, whole.frame, chunked.frame)
	assert.Equal(t, whole.playing, chunked.playing)
	assert.Equal(t, whole.ch1.control.frequency, chunked.ch1.control.frequency)
	assert.Equal(t, whole.ch1.envelope.volume, chunked.ch1.envelope.volume)
	assert.Equal(t, whole.ch2.envelope.volume, chunked.ch2.envelope.volume)
	assert.Equal(t, whole.ch4.lfsr, chunked.ch4.lfsr)
	assert.Equal(t, whole.Status(), chunked.Status())
	assert.Equal(t, whole.left.SamplesAvail(), chunked.left.SamplesAvail())
}

func TestAPU_DisabledAPUIgnoresSequencer(t *testing.T) {
	a := newTestAPU()

	frame := a.frame
	a.ProcessEvents(64 * frameCycles)
	assert.Equal(t, frame, a.frame, "sequencer is frozen while powered off")
}

func TestAPU_SamplePipelineProducesAtHostRate(t *testing.T) {
	a := newTestAPU(WithSampleRate(32768), WithSamples(512))
	a.WriteRegister(addr.NR52, 0x80)

	// One emulated second, drained as it is produced.
	left := make([]int16, 512)
	right := make([]int16, 512)
	total := 0
	for i := 0; i < 1024; i++ {
		a.ProcessEvents(ClockFrequency / 1024)
		total += a.ReadSamples(left, right)
	}

	assert.InDelta(t, 32768, total, 64, "one emulated second of samples")
}

func TestAPU_QuotaCapsProduction(t *testing.T) {
	a := newTestAPU(WithSamples(256))
	a.WriteRegister(addr.NR52, 0x80)

	// Without a consumer, production stalls once the quota is filled
	// rather than growing without bound.
	a.ProcessEvents(ClockFrequency)
	got := a.SamplesAvail()
	assert.GreaterOrEqual(t, got, 256)
	assert.Less(t, got, 512)
}

func TestAPU_SetBufferSizeDropsPending(t *testing.T) {
	a := newTestAPU()
	a.WriteRegister(addr.NR52, 0x80)
	a.ProcessEvents(1 << 16)

	a.SetBufferSize(1024)
	assert.Equal(t, 0, a.SamplesAvail())
}

func TestAPU_ResetKeepsHostSettings(t *testing.T) {
	a := newTestAPU(WithSampleRate(48000))
	a.ForceDisableChannel(2, true)
	a.WriteRegister(addr.NR52, 0x80)
	a.ProcessEvents(12345)

	a.Reset()
	assert.False(t, a.Enabled())
	assert.Equal(t, 48000, a.SampleRate())
	assert.True(t, a.ChannelDisabled(2))
	assert.Equal(t, 0, a.SamplesAvail())
}
