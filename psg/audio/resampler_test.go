package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResampler_StepIsCarriedAcrossFrame(t *testing.T) {
	r := NewResampler(256)
	r.SetRates(ClockFrequency, 65536) // 64:1, exact

	r.AddDelta(0, 100)
	assert.Equal(t, 0, r.SamplesAvail(), "nothing available before EndFrame")

	r.EndFrame(resampleFrameCycles)
	assert.Equal(t, 64, r.SamplesAvail())

	out := make([]int16, 64)
	n := r.ReadSamples(out)
	assert.Equal(t, 64, n)
	assert.Equal(t, int16(100), out[0])
	assert.Equal(t, int16(100), out[63], "level holds until the next delta")
	assert.Equal(t, 0, r.SamplesAvail())

	// The integrator carries the level into the next frame.
	r.EndFrame(resampleFrameCycles)
	r.ReadSamples(out[:1])
	assert.Equal(t, int16(100), out[0])
}

func TestResampler_DeltaTimingMapsToOutputPosition(t *testing.T) {
	r := NewResampler(256)
	r.SetRates(ClockFrequency, 65536)

	// 64 cycles per output sample: a delta at cycle 128 lands exactly at
	// output sample 2.
	r.AddDelta(128, 100)
	r.EndFrame(resampleFrameCycles)

	out := make([]int16, 4)
	r.ReadSamples(out)
	assert.Equal(t, []int16{0, 0, 100, 100}, out)
}

func TestResampler_OppositeDeltasCancel(t *testing.T) {
	r := NewResampler(256)
	r.SetRates(ClockFrequency, 65536)

	r.AddDelta(0, 1000)
	r.AddDelta(256, -1000)
	r.EndFrame(resampleFrameCycles)

	out := make([]int16, 64)
	r.ReadSamples(out)
	assert.Equal(t, int16(1000), out[0])
	assert.Equal(t, int16(0), out[63], "level returns to zero after the negative delta")
}

func TestResampler_OutputClamps(t *testing.T) {
	r := NewResampler(256)
	r.SetRates(ClockFrequency, 65536)

	r.AddDelta(0, 30000)
	r.AddDelta(1, 30000)
	r.EndFrame(resampleFrameCycles)

	out := make([]int16, 8)
	r.ReadSamples(out)
	assert.Equal(t, int16(32767), out[4])
}

func TestResampler_CapacityBoundsAvail(t *testing.T) {
	r := NewResampler(64)
	r.SetRates(ClockFrequency, 65536)

	for i := 0; i < 10; i++ {
		r.EndFrame(resampleFrameCycles)
	}
	assert.LessOrEqual(t, r.SamplesAvail(), 64)
}

func TestResampler_ClearDropsEverything(t *testing.T) {
	r := NewResampler(256)
	r.SetRates(ClockFrequency, 65536)

	r.AddDelta(0, 500)
	r.EndFrame(resampleFrameCycles)
	r.Clear()

	assert.Equal(t, 0, r.SamplesAvail())
	r.EndFrame(resampleFrameCycles)
	out := make([]int16, 4)
	r.ReadSamples(out)
	assert.Equal(t, []int16{0, 0, 0, 0}, out)
}
