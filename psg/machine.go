// Package psg glues the sound generator, the timer peripheral and a CPU
// collaborator into one machine driven by the event scheduler protocol.
package psg

import (
	"log/slog"

	"github.com/valerio/go-psg/psg/addr"
	"github.com/valerio/go-psg/psg/audio"
	"github.com/valerio/go-psg/psg/exec"
	"github.com/valerio/go-psg/psg/logging"
	"github.com/valerio/go-psg/psg/sched"
	"github.com/valerio/go-psg/psg/timer"
)

// CyclesPerFrame is the length of one video frame in core clock cycles.
const CyclesPerFrame = 70224

// Core is the CPU collaborator. Advance executes instructions for at
// most limit cycles and returns how many were actually spent; it must
// execute at least one cycle when limit is positive. The machine never
// lets a call run past the next peripheral deadline.
type Core interface {
	Advance(limit int32) int32
	Reset()
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine's base logger. Peripheral loggers derive
// from it with their category names attached.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// WithAPUOptions forwards options to the sound generator.
func WithAPUOptions(opts ...audio.Option) Option {
	return func(m *Machine) { m.apuOpts = append(m.apuOpts, opts...) }
}

// WithTimerIRQ installs the handler invoked when TIMA overflows. The
// handler runs on the goroutine driving the machine.
func WithTimerIRQ(fn func()) Option {
	return func(m *Machine) { m.timerIRQ = fn }
}

// Machine owns the clock, the peripherals and the CPU collaborator, and
// implements exec.Runner so it can be driven by a Controller.
type Machine struct {
	core   Core
	clock  *sched.Clock
	apu    *audio.APU
	timer  *timer.Timer
	sync   *exec.Sync
	logger *slog.Logger

	registry *logging.Registry
	apuOpts  []audio.Option
	timerIRQ func()

	frames uint64
}

// New creates a machine around the given CPU collaborator.
func New(core Core, opts ...Option) *Machine {
	m := &Machine{
		core:     core,
		clock:    &sched.Clock{},
		logger:   slog.Default(),
		registry: logging.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	apuCat := m.registry.Register("audio")
	m.registry.Register("timer")
	apuOpts := append([]audio.Option{
		audio.WithLogger(m.registry.Logger(m.logger, apuCat)),
	}, m.apuOpts...)

	m.apu = audio.New(m.clock, apuOpts...)
	m.timer = timer.New(m.clock, func() {
		if m.timerIRQ != nil {
			m.timerIRQ()
		}
	})
	m.Reset()
	return m
}

// APU returns the sound generator, for host-side draining and mutes.
func (m *Machine) APU() *audio.APU {
	return m.apu
}

// Timer returns the timer peripheral.
func (m *Machine) Timer() *timer.Timer {
	return m.timer
}

// Registry returns the machine's log category registry.
func (m *Machine) Registry() *logging.Registry {
	return m.registry
}

// SetSync attaches the synchronization layer. The Controller calls this
// on its worker before the first RunLoop.
func (m *Machine) SetSync(s *exec.Sync) {
	m.sync = s
	m.apu.SetSync(s)
}

// Sync returns the attached synchronization layer, or nil.
func (m *Machine) Sync() *exec.Sync {
	return m.sync
}

// Reset restores power-on state on the collaborator and all peripherals
// and re-arms the clock from their initial deadlines.
func (m *Machine) Reset() {
	m.core.Reset()
	m.clock.Reset()
	m.apu.Reset()
	m.timer.Reset()
	m.frames = 0
	m.processEvents()
}

// RunLoop advances the machine by one frame: the collaborator executes
// up to the next deadline, due peripherals catch up, repeat. A finished
// frame is posted to the sync layer.
func (m *Machine) RunLoop() {
	for frame := int32(0); frame < CyclesPerFrame; {
		limit := CyclesPerFrame - frame
		if next := m.clock.NextEvent(); next.Scheduled() {
			if until := next.Cycles() - m.clock.Cycles(); until < limit {
				limit = until
			}
		}
		if limit < 1 {
			limit = 1
		}

		executed := m.core.Advance(limit)
		if executed < 1 {
			executed = limit
		}
		m.clock.Advance(executed)
		frame += executed

		if m.clock.EventDue() {
			m.processEvents()
		}
	}
	m.frames++

	if m.sync != nil {
		m.sync.PostFrame()
	}
}

// processEvents distributes the elapsed cycles to every peripheral and
// re-arms the clock with the minimum returned deadline.
func (m *Machine) processEvents() {
	cycles := m.clock.Lap()
	next := m.apu.ProcessEvents(cycles)
	next = next.Sooner(m.timer.ProcessEvents(cycles))
	m.clock.Constrain(next)
}

// Frames returns how many full frames RunLoop has completed since the
// last reset.
func (m *Machine) Frames() uint64 {
	return m.frames
}

// WriteRegister dispatches a register write to the owning peripheral.
// Writes must happen on the goroutine driving the machine (use
// Controller.RunOn from elsewhere).
func (m *Machine) WriteRegister(address uint16, value uint8) {
	switch {
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.apu.WriteRegister(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		m.timer.Write(address, value)
	default:
		m.logger.Debug("unmapped register write", "address", address, "value", value)
	}
}

// ReadRegister dispatches a register read to the owning peripheral.
func (m *Machine) ReadRegister(address uint16) uint8 {
	switch {
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.apu.ReadRegister(address)
	case address >= addr.DIV && address <= addr.TAC:
		return m.timer.Read(address)
	default:
		return 0xFF
	}
}

var _ exec.Runner = (*Machine)(nil)
