package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeadline_ZeroValueIsUnscheduled(t *testing.T) {
	var d Deadline
	assert.False(t, d.Scheduled())
	assert.False(t, d.Due())
}

func TestDeadline_ElapseAndDue(t *testing.T) {
	d := In(100)
	d = d.Elapse(40)
	assert.False(t, d.Due())
	assert.Equal(t, int32(60), d.Cycles())

	d = d.Elapse(60)
	assert.True(t, d.Due())

	// Over-elapsing goes negative inside a catch-up loop.
	d = d.Elapse(10)
	assert.Equal(t, int32(-10), d.Cycles())
	assert.True(t, d.Due())
}

func TestDeadline_ElapseNeverStaysNever(t *testing.T) {
	d := Never().Elapse(1000)
	assert.False(t, d.Scheduled())
	assert.False(t, d.Due())
}

func TestDeadline_Sooner(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Deadline
		expected Deadline
	}{
		{"both scheduled", In(10), In(20), In(10)},
		{"both scheduled reversed", In(20), In(10), In(10)},
		{"never loses to scheduled", Never(), In(5), In(5)},
		{"scheduled beats never", In(5), Never(), In(5)},
		{"both never", Never(), Never(), Never()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Sooner(tt.b))
		})
	}
}

func TestClock_ConstrainKeepsMinimum(t *testing.T) {
	var c Clock
	c.Constrain(In(500))
	c.Constrain(In(200))
	c.Constrain(In(300))
	assert.Equal(t, int32(200), c.NextEvent().Cycles())
}

func TestClock_EventDue(t *testing.T) {
	var c Clock
	assert.False(t, c.EventDue(), "no event scheduled")

	c.Constrain(In(100))
	c.Advance(99)
	assert.False(t, c.EventDue())
	c.Advance(1)
	assert.True(t, c.EventDue())
}

func TestClock_Lap(t *testing.T) {
	var c Clock
	c.Constrain(In(64))
	c.Advance(80)
	assert.Equal(t, int32(80), c.Lap())
	assert.Equal(t, int32(0), c.Cycles())
	assert.False(t, c.NextEvent().Scheduled())
}
