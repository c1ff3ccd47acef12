package psg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-psg/psg/addr"
	"github.com/valerio/go-psg/psg/exec"
)

// burnCore spends every cycle it is offered.
type burnCore struct {
	limits []int32
	resets int
}

func (c *burnCore) Advance(limit int32) int32 {
	c.limits = append(c.limits, limit)
	return limit
}

func (c *burnCore) Reset() { c.resets++ }

func TestMachine_AdvanceIsBoundedByDeadlines(t *testing.T) {
	core := &burnCore{}
	m := New(core)

	core.limits = nil
	m.RunLoop()

	require.NotEmpty(t, core.limits)
	// The sample pipeline runs every 128 cycles, so no slice may be
	// longer than that.
	for _, limit := range core.limits {
		assert.LessOrEqual(t, limit, int32(128))
		assert.Positive(t, limit)
	}

	var total int32
	for _, limit := range core.limits {
		total += limit
	}
	assert.Equal(t, int32(CyclesPerFrame), total)
	assert.Equal(t, uint64(1), m.Frames())
}

func TestMachine_TimerIRQsFireDuringRunLoop(t *testing.T) {
	irqs := 0
	core := &burnCore{}
	m := New(core, WithTimerIRQ(func() { irqs++ }))

	m.WriteRegister(addr.TAC, 0x05) // run at 16 cycles per increment

	// With TMA=0 the counter overflows every 256 increments: 4096
	// cycles. One frame fits 17 of those.
	m.RunLoop()
	assert.Equal(t, 17, irqs)
}

func TestMachine_RegisterDispatch(t *testing.T) {
	m := New(&burnCore{})

	m.WriteRegister(addr.NR52, 0x80)
	assert.True(t, m.APU().Enabled())
	assert.Equal(t, uint8(0xF0), m.ReadRegister(addr.NR52))

	m.WriteRegister(addr.TMA, 0x42)
	assert.Equal(t, uint8(0x42), m.ReadRegister(addr.TMA))

	assert.Equal(t, uint8(0xFF), m.ReadRegister(0xFF00))
}

func TestMachine_RunLoopPostsFrame(t *testing.T) {
	m := New(&burnCore{})
	m.SetSync(exec.NewSync(false, false))

	m.RunLoop()
	require.True(t, m.Sync().WaitFrameStart())
	m.Sync().WaitFrameEnd()
}

func TestMachine_ResetRestartsEverything(t *testing.T) {
	core := &burnCore{}
	m := New(core)

	m.WriteRegister(addr.NR52, 0x80)
	m.WriteRegister(addr.TAC, 0x07)
	m.RunLoop()
	m.RunLoop()
	require.Equal(t, uint64(2), m.Frames())

	resets := core.resets
	m.Reset()
	assert.Equal(t, resets+1, core.resets)
	assert.Equal(t, uint64(0), m.Frames())
	assert.False(t, m.APU().Enabled())
	assert.Equal(t, uint8(0), m.ReadRegister(addr.DIV))
}
